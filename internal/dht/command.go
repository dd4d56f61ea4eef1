package dht

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/dep2p/go-kadkv/pkg/lib/log"
)

var commandLogger = log.Logger("dht/command")

// ============================================================================
//                              命令解析
// ============================================================================

// CommandKind 命令类型
type CommandKind uint8

const (
	// CommandGet GET <key>
	CommandGet CommandKind = iota + 1
	// CommandPut PUT <key> <value>
	CommandPut
)

// Command 已解析的本地命令
type Command struct {
	Kind  CommandKind
	Key   string
	Value string
}

// Usage 命令用法说明
const Usage = "usage: GET <key> | PUT <key> <value>"

// cutToken 取出行首的一个词
//
// 剥去前导空白后返回第一个词和其后剩余内容（剩余内容已剥去前导空白）。
func cutToken(s string) (token, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

// ParseCommand 解析一行命令文本
//
// PUT 的值取键之后的整段原始文本（仅剥去首尾空白），值内部的
// 空白原样保留。其他起始词或缺失参数返回 ErrCommandSyntax，
// 调用方不发起任何查询。
func ParseCommand(line string) (Command, error) {
	verb, rest := cutToken(line)
	if verb == "" {
		return Command{}, fmt.Errorf("%w: empty command", ErrCommandSyntax)
	}

	switch strings.ToUpper(verb) {
	case "GET":
		key, tail := cutToken(rest)
		if key == "" || tail != "" {
			return Command{}, fmt.Errorf("%w: GET expects exactly one key", ErrCommandSyntax)
		}
		return Command{Kind: CommandGet, Key: key}, nil
	case "PUT":
		key, value := cutToken(rest)
		value = strings.TrimRightFunc(value, unicode.IsSpace)
		if key == "" || value == "" {
			return Command{}, fmt.Errorf("%w: PUT expects a key and a value", ErrCommandSyntax)
		}
		return Command{Kind: CommandPut, Key: key, Value: value}, nil
	default:
		return Command{}, fmt.Errorf("%w: unknown command %q", ErrCommandSyntax, verb)
	}
}

// ============================================================================
//                              命令接口
// ============================================================================

// CommandInterface 命令接口
//
// 把本地命令转换为查询引擎操作并打印结果。在调度循环内运行；
// 查询结果由引擎在同一循环内回调打印。
type CommandInterface struct {
	engine *Engine
	out    io.Writer
	errOut io.Writer
}

// NewCommandInterface 创建命令接口
func NewCommandInterface(engine *Engine, out, errOut io.Writer) *CommandInterface {
	return &CommandInterface{engine: engine, out: out, errOut: errOut}
}

// Execute 执行一条命令
func (ci *CommandInterface) Execute(cmd Command) {
	switch cmd.Kind {
	case CommandGet:
		ci.engine.StartGet(cmd.Key, ci.printGetResult)
	case CommandPut:
		ci.engine.StartPut(cmd.Key, []byte(cmd.Value), ci.printPutResult)
	default:
		fmt.Fprintln(ci.errOut, Usage)
	}
}

// printGetResult 打印 GET 结果
//
// 多个节点对同一键返回了不同值时，每个观察到的值各打印一行，
// 不由引擎或本层悄悄挑选其一。
func (ci *CommandInterface) printGetResult(q *Query, err error) {
	if err != nil {
		fmt.Fprintf(ci.errOut, "failed to get record %s: %v\n", q.Key, err)
		return
	}

	seen := make(map[string]struct{}, len(q.Observed))
	distinct := 0
	for _, obs := range q.Observed {
		v := string(obs.Record.Value)
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		distinct++
		fmt.Fprintf(ci.out, "got record %s %s\n", q.Key, v)
	}
	if distinct > 1 {
		commandLogger.Warn("GET 观察到冲突的值", "key", q.Key, "distinct", distinct)
	}
}

// printPutResult 打印 PUT 结果
func (ci *CommandInterface) printPutResult(q *Query, err error) {
	if err != nil {
		fmt.Fprintf(ci.errOut, "failed to put record %s: %v\n", q.Key, err)
		return
	}
	fmt.Fprintf(ci.out, "put record %s\n", q.Key)
}
