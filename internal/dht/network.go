package dht

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-kadkv/pkg/interfaces"
	"github.com/dep2p/go-kadkv/pkg/lib/log"
)

var networkLogger = log.Logger("dht/network")

// NetworkAdapter DHT 网络适配器
//
// 把查询引擎的发送请求转换为一次流上的请求/应答往返。
// 往返在独立 goroutine 中完成，结果（响应或失败）以事件投回
// 调度循环——循环本身从不阻塞在网络 I/O 上。
// 每条流承载一次请求与一次应答。
type NetworkAdapter struct {
	host    interfaces.Host
	events  chan<- Event
	timeout time.Duration
	done    chan struct{}
	closed  atomic.Bool
}

// NewNetworkAdapter 创建网络适配器
func NewNetworkAdapter(host interfaces.Host, events chan<- Event, timeout time.Duration) *NetworkAdapter {
	return &NetworkAdapter{
		host:    host,
		events:  events,
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// Send 向节点发送请求（异步）
//
// 实现 Sender。失败时投递 SendFailureEvent，成功时投递 ResponseEvent。
func (na *NetworkAdapter) Send(peer *RoutingNode, msg *Message) {
	if na.closed.Load() {
		return
	}

	go func() {
		resp, err := na.roundTrip(peer, msg)
		if err != nil {
			networkLogger.Debug("请求往返失败",
				"peer", peer.ID.Short(), "queryID", msg.QueryID, "err", err)
			na.post(SendFailureEvent{QueryID: msg.QueryID, Peer: peer.ID})
			return
		}
		na.post(ResponseEvent{Msg: resp})
	}()
}

// roundTrip 完成一次请求/应答往返
func (na *NetworkAdapter) roundTrip(peer *RoutingNode, msg *Message) (*Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), na.timeout)
	defer cancel()

	stream, err := na.host.NewStream(ctx, peer.ID, peer.Addrs)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	_ = stream.SetDeadline(time.Now().Add(na.timeout))

	if err := WriteMessage(stream, msg); err != nil {
		return nil, err
	}
	return ReadMessage(stream)
}

// HandleStream 处理入站流
//
// 注册为 Host 的流处理函数，在传输层 goroutine 中运行：
// 读出请求后投递 RequestEvent，等调度循环算出应答再写回流上。
func (na *NetworkAdapter) HandleStream(stream interfaces.Stream) {
	defer stream.Close()

	_ = stream.SetDeadline(time.Now().Add(na.timeout))

	msg, err := ReadMessage(stream)
	if err != nil {
		networkLogger.Debug("入站请求读取失败", "remote", stream.RemoteAddr(), "err", err)
		return
	}

	reply := make(chan *Message, 1)
	if !na.post(RequestEvent{Msg: msg, Reply: reply}) {
		return
	}

	select {
	case resp := <-reply:
		if resp == nil {
			return
		}
		if err := na.WriteReply(stream, resp); err != nil {
			networkLogger.Debug("入站应答写入失败", "remote", stream.RemoteAddr(), "err", err)
		}
	case <-time.After(na.timeout):
		networkLogger.Warn("等待调度循环应答超时", "queryID", msg.QueryID)
	}
}

// WriteReply 向流写回应答
func (na *NetworkAdapter) WriteReply(stream interfaces.Stream, resp *Message) error {
	return WriteMessage(stream, resp)
}

// post 投递事件；适配器关闭后投递被放弃
func (na *NetworkAdapter) post(ev Event) bool {
	select {
	case na.events <- ev:
		return true
	case <-na.done:
		return false
	}
}

// Close 关闭适配器
//
// 之后的发送被忽略，在途往返的结果被丢弃。
func (na *NetworkAdapter) Close() {
	if na.closed.CompareAndSwap(false, true) {
		close(na.done)
	}
}
