package kadkv

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dep2p/go-kadkv/config"
	"github.com/dep2p/go-kadkv/internal/dht"
	"github.com/dep2p/go-kadkv/internal/discovery/lan"
	"github.com/dep2p/go-kadkv/internal/transport/tcp"
	"github.com/dep2p/go-kadkv/pkg/interfaces"
	"github.com/dep2p/go-kadkv/pkg/lib/log"
	"github.com/dep2p/go-kadkv/pkg/types"
)

var logger = log.Logger("kadkv")

// 启动超时配置
const (
	// startTimeout Fx App 启动超时
	startTimeout = 30 * time.Second

	// stopTimeout Fx App 停止超时
	stopTimeout = 15 * time.Second
)

// ════════════════════════════════════════════════════════════════════════════
//                              节点选项
// ════════════════════════════════════════════════════════════════════════════

// nodeConfig 节点构建配置
type nodeConfig struct {
	config *config.Config
	seed   []byte
	out    io.Writer
	errOut io.Writer
}

// Option 节点选项
type Option func(*nodeConfig) error

// WithConfig 使用完整配置替换默认配置
func WithConfig(cfg *config.Config) Option {
	return func(nc *nodeConfig) error {
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}
		nc.config = cfg
		return nil
	}
}

// WithListenAddr 设置传输层监听地址
func WithListenAddr(addr string) Option {
	return func(nc *nodeConfig) error {
		nc.config.Node.ListenAddr = addr
		return nil
	}
}

// WithQuorum 设置查询法定数
func WithQuorum(quorum int) Option {
	return func(nc *nodeConfig) error {
		nc.config.DHT.Quorum = quorum
		return nil
	}
}

// WithDiscovery 启用或禁用本地发现
func WithDiscovery(enabled bool) Option {
	return func(nc *nodeConfig) error {
		nc.config.Discovery.Enabled = enabled
		return nil
	}
}

// WithIdentitySeed 从种子派生节点身份
//
// 相同种子派生出相同的节点 ID。未设置时使用随机身份。
func WithIdentitySeed(seed []byte) Option {
	return func(nc *nodeConfig) error {
		if len(seed) == 0 {
			return fmt.Errorf("identity seed is empty")
		}
		nc.seed = append([]byte(nil), seed...)
		return nil
	}
}

// WithWriters 设置命令结果与错误的输出目标
func WithWriters(out, errOut io.Writer) Option {
	return func(nc *nodeConfig) error {
		if out == nil || errOut == nil {
			return fmt.Errorf("writers must not be nil")
		}
		nc.out = out
		nc.errOut = errOut
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              节点
// ════════════════════════════════════════════════════════════════════════════

// Node DHT 节点
//
// Node 是用户与 go-kadkv 交互的主入口。它是一个门面，
// 通过 Fx 组装传输、发现与 DHT 核心，并转发命令接口。
type Node struct {
	config *config.Config
	id     types.NodeID
	app    *fx.App

	// 由 Fx 注入
	dht  *dht.DHT
	host interfaces.Host

	started atomic.Bool
	closed  atomic.Bool
}

// New 创建节点
func New(opts ...Option) (*Node, error) {
	nc := &nodeConfig{
		config: config.Default(),
		out:    os.Stdout,
		errOut: os.Stderr,
	}
	for _, opt := range opts {
		if err := opt(nc); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if err := nc.config.Validate(); err != nil {
		return nil, err
	}

	id, err := deriveIdentity(nc.seed)
	if err != nil {
		return nil, fmt.Errorf("derive identity: %w", err)
	}

	n := &Node{
		config: nc.config,
		id:     id,
	}
	n.app = buildFxApp(nc, n)
	if err := n.app.Err(); err != nil {
		return nil, fmt.Errorf("assemble node: %w", err)
	}
	return n, nil
}

// deriveIdentity 派生节点身份
func deriveIdentity(seed []byte) (types.NodeID, error) {
	if len(seed) > 0 {
		return types.DeriveNodeID(seed), nil
	}
	return types.RandomNodeID()
}

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：传输 → 发现 → DHT 核心。
func buildFxApp(nc *nodeConfig, n *Node) *fx.App {
	return fx.New(
		// 配置与身份注入
		fx.Supply(nc.config),
		fx.Supply(n.id),
		fx.Provide(
			fx.Annotated{Name: "stdout", Target: func() io.Writer { return nc.out }},
			fx.Annotated{Name: "stderr", Target: func() io.Writer { return nc.errOut }},
		),

		// 协作者层
		tcp.Module,
		lan.Module,

		// DHT 核心
		dht.Module,

		fx.Populate(&n.dht, &n.host),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)
}

// Start 启动节点
func (n *Node) Start(ctx context.Context) error {
	if n.closed.Load() {
		return dht.ErrClosed
	}
	if !n.started.CompareAndSwap(false, true) {
		return dht.ErrAlreadyStarted
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := n.app.Start(startCtx); err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	logger.Info("节点已启动",
		"id", n.id.Short(),
		"addrs", n.host.Addrs(),
		"quorum", n.config.DHT.Quorum)
	return nil
}

// ID 返回节点 ID
func (n *Node) ID() types.NodeID {
	return n.id
}

// Addrs 返回节点监听地址
func (n *Node) Addrs() []string {
	if n.host == nil {
		return nil
	}
	return n.host.Addrs()
}

// Submit 提交一条命令给调度器
func (n *Node) Submit(cmd dht.Command) {
	n.dht.Submit(cmd)
}

// CloseCommands 通知调度器命令输入结束
func (n *Node) CloseCommands() {
	n.dht.CloseCommands()
}

// Done 返回调度循环的结束通道
func (n *Node) Done() <-chan error {
	return n.dht.Done()
}

// RoutingTableSize 返回当前路由表节点数
func (n *Node) RoutingTableSize() int {
	return n.dht.RoutingTableSize()
}

// Close 关闭节点
func (n *Node) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	if !n.started.Load() {
		return nil
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	var err error
	if stopErr := n.app.Stop(stopCtx); stopErr != nil {
		err = multierr.Append(err, stopErr)
	}
	logger.Info("节点已关闭", "id", n.id.Short())
	return err
}
