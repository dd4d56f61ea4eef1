package dht

import (
	"errors"
	"fmt"
)

// 预定义错误
var (
	// ErrRoutingTableEmpty 路由表为空，没有可联系的节点
	ErrRoutingTableEmpty = errors.New("dht: routing table empty")

	// ErrQuorumUnreachable 可联系节点耗尽仍未达到法定数
	ErrQuorumUnreachable = errors.New("dht: quorum unreachable")

	// ErrQueryTimeout 查询超时
	ErrQueryTimeout = errors.New("dht: query timeout")

	// ErrMalformedResponse 对端返回的数据无法解析为记录
	ErrMalformedResponse = errors.New("dht: malformed peer response")

	// ErrStoreFull 本地存储容量已满
	ErrStoreFull = errors.New("dht: local store full")

	// ErrCommandSyntax 命令语法错误
	ErrCommandSyntax = errors.New("dht: command syntax error")

	// ErrInputClosed 命令输入源已关闭（进程级终止条件）
	ErrInputClosed = errors.New("dht: command input closed")

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("dht: invalid config")

	// ErrNilHost Host 为空
	ErrNilHost = errors.New("dht: host is nil")

	// ErrAlreadyStarted DHT 已启动
	ErrAlreadyStarted = errors.New("dht: already started")

	// ErrClosed DHT 已关闭
	ErrClosed = errors.New("dht: closed")

	// ErrMessageTooLarge 消息超出大小限制
	ErrMessageTooLarge = errors.New("dht: message too large")
)

// DHTError DHT 错误类型
type DHTError struct {
	Op      string // 操作名称
	Err     error  // 底层错误
	Message string // 错误消息
}

// Error 实现 error 接口
func (e *DHTError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("dht %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("dht %s: %v", e.Op, e.Err)
}

// Unwrap 实现错误解包
func (e *DHTError) Unwrap() error {
	return e.Err
}

// NewDHTError 创建 DHT 错误
func NewDHTError(op string, err error, message string) *DHTError {
	return &DHTError{Op: op, Err: err, Message: message}
}
