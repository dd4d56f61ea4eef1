package dht

import (
	"context"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-kadkv/pkg/lib/log"
	"github.com/dep2p/go-kadkv/pkg/types"
)

var dispatcherLogger = log.Logger("dht/dispatcher")

// ============================================================================
//                              事件变体
// ============================================================================

// Event 调度事件
//
// 封闭的标签变体集合，由调度循环的单一分发函数消费。
type Event interface {
	isEvent()
}

// DiscoveryEvent 发现事件：本地网络上观察到一个节点
type DiscoveryEvent struct {
	Peer types.PeerInfo
}

// ResponseEvent 查询响应事件：对端对我们请求的应答
type ResponseEvent struct {
	Msg *Message
}

// RequestEvent 入站请求事件：对端发来的协议请求
//
// Reply 为容量 1 的通道，传输层 goroutine 在其上等待应答。
type RequestEvent struct {
	Msg   *Message
	Reply chan<- *Message
}

// SendFailureEvent 发送失败事件：对某节点的请求未能完成往返
type SendFailureEvent struct {
	QueryID string
	Peer    types.NodeID
}

func (DiscoveryEvent) isEvent()   {}
func (ResponseEvent) isEvent()    {}
func (RequestEvent) isEvent()     {}
func (SendFailureEvent) isEvent() {}

// ============================================================================
//                              调度器
// ============================================================================

// Dispatcher 事件调度器
//
// 系统唯一的调度点：单 goroutine 轮询两个输入源（本地命令、
// 网络/发现事件），每个循环周期把两个源都排空后才阻塞等待。
// 路由表、存储与在途查询只在本循环内被触碰，因此无需加锁。
type Dispatcher struct {
	commands <-chan Command
	events   chan Event

	engine  *Engine
	bridge  *Bridge
	handler *Handler
	cli     *CommandInterface

	config *Config
	clk    clock.Clock
}

// NewDispatcher 创建调度器
//
// events 通道由调用方创建并同时交给事件生产者（网络适配器、发现馈送）。
func NewDispatcher(config *Config, engine *Engine, bridge *Bridge, handler *Handler, ci *CommandInterface, commands <-chan Command, events chan Event) *Dispatcher {
	return &Dispatcher{
		commands: commands,
		events:   events,
		engine:   engine,
		bridge:   bridge,
		handler:  handler,
		cli:      ci,
		config:   config,
		clk:      config.Clock,
	}
}

// Events 返回事件投递通道
//
// 传输层与发现馈送 goroutine 向该通道投递事件。
func (d *Dispatcher) Events() chan<- Event {
	return d.events
}

// Run 运行调度循环直到 ctx 取消或命令源关闭
//
// 命令源关闭（本地输入 EOF）对进程是终止条件，返回 ErrInputClosed；
// 这不是 DHT 引擎本身的错误。
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := d.clk.Ticker(d.config.TickInterval)
	defer ticker.Stop()

	for {
		// 排空命令源
	drainCommands:
		for {
			select {
			case cmd, ok := <-d.commands:
				if !ok {
					return ErrInputClosed
				}
				d.cli.Execute(cmd)
			default:
				break drainCommands
			}
		}

		// 排空网络/发现事件源
	drainEvents:
		for {
			select {
			case ev := <-d.events:
				d.dispatch(ev)
			default:
				break drainEvents
			}
		}

		// 每周期检查一次查询截止时间
		d.engine.CheckDeadlines(d.clk.Now())

		// 两个源都为空，阻塞等待下一个输入
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-d.commands:
			if !ok {
				return ErrInputClosed
			}
			d.cli.Execute(cmd)
		case ev := <-d.events:
			d.dispatch(ev)
		case <-ticker.C:
		}
	}
}

// dispatch 单一事件分发函数
func (d *Dispatcher) dispatch(ev Event) {
	switch e := ev.(type) {
	case DiscoveryEvent:
		d.bridge.Observe(e.Peer)
	case ResponseEvent:
		d.engine.HandleResponse(e.Msg)
	case RequestEvent:
		resp := d.handler.Handle(e.Msg)
		if e.Reply != nil {
			select {
			case e.Reply <- resp:
			default:
				dispatcherLogger.Warn("应答通道不可写，丢弃响应", "queryID", e.Msg.QueryID)
			}
		}
	case SendFailureEvent:
		d.engine.HandleSendFailure(e.QueryID, e.Peer)
	default:
		dispatcherLogger.Warn("未知事件类型被忽略")
	}
}
