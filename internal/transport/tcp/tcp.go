// Package tcp 提供基于 TCP 的传输协作者实现
//
// 为 DHT 核心提供 interfaces.Host：监听、拨号与入站流分发。
// 流即裸 TCP 连接，消息帧由上层（DHT 协议编解码）定义。
package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-kadkv/pkg/interfaces"
	"github.com/dep2p/go-kadkv/pkg/lib/log"
	"github.com/dep2p/go-kadkv/pkg/types"
)

var logger = log.Logger("transport/tcp")

// DefaultDialTimeout 默认拨号超时
const DefaultDialTimeout = 3 * time.Second

// Transport TCP 传输
type Transport struct {
	id types.NodeID

	mu       sync.RWMutex
	listener net.Listener
	handler  interfaces.StreamHandler

	closed atomic.Bool
	wg     sync.WaitGroup
}

var _ interfaces.Host = (*Transport)(nil)

// New 创建 TCP 传输
func New(id types.NodeID) *Transport {
	return &Transport{id: id}
}

// ID 返回本机节点 ID
func (t *Transport) ID() types.NodeID {
	return t.id
}

// Addrs 返回本机可公告的地址列表
//
// 监听在未指定地址（0.0.0.0）上时，展开为各网络接口的地址。
func (t *Transport) Addrs() []string {
	t.mu.RLock()
	listener := t.listener
	t.mu.RUnlock()
	if listener == nil {
		return nil
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return []string{listener.Addr().String()}
	}
	if !tcpAddr.IP.IsUnspecified() {
		return []string{tcpAddr.String()}
	}

	var addrs []string
	ifaceAddrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, a := range ifaceAddrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip == nil || ip.IsLoopback() {
				continue
			}
			addrs = append(addrs, net.JoinHostPort(ip.String(), fmt.Sprint(tcpAddr.Port)))
		}
	}
	if len(addrs) == 0 {
		addrs = append(addrs, net.JoinHostPort("127.0.0.1", fmt.Sprint(tcpAddr.Port)))
	}
	return addrs
}

// Listen 监听指定地址并启动接收循环
func (t *Transport) Listen(ctx context.Context, addr string) (string, error) {
	if t.closed.Load() {
		return "", ErrClosed
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrListenFailed, err)
	}

	t.mu.Lock()
	if t.listener != nil {
		t.mu.Unlock()
		_ = listener.Close()
		return "", ErrAlreadyListening
	}
	t.listener = listener
	t.mu.Unlock()

	t.wg.Add(1)
	go t.acceptLoop(listener)

	actual := listener.Addr().String()
	logger.Info("TCP 传输开始监听", "addr", actual)
	return actual, nil
}

// acceptLoop 接收入站连接
func (t *Transport) acceptLoop(listener net.Listener) {
	defer t.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closed.Load() {
				return
			}
			logger.Warn("接收连接失败", "err", err)
			return
		}

		t.mu.RLock()
		handler := t.handler
		t.mu.RUnlock()

		if handler == nil {
			_ = conn.Close()
			continue
		}

		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			handler(&stream{Conn: conn})
		}()
	}
}

// NewStream 向目标节点创建流
//
// 按顺序尝试候选地址，返回第一个成功建立的连接。
func (t *Transport) NewStream(ctx context.Context, peer types.NodeID, addrs []string) (interfaces.Stream, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: peer %s", ErrNoAddresses, peer.Short())
	}

	var dialErr error
	dialer := &net.Dialer{Timeout: DefaultDialTimeout}
	for _, addr := range addrs {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			dialErr = multierr.Append(dialErr, err)
			continue
		}
		return &stream{Conn: conn}, nil
	}
	return nil, fmt.Errorf("%w: peer %s: %v", ErrDialFailed, peer.Short(), dialErr)
}

// SetStreamHandler 设置入站流处理函数
func (t *Transport) SetStreamHandler(handler interfaces.StreamHandler) {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
}

// Close 关闭传输
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	t.mu.Lock()
	if t.listener != nil {
		err = t.listener.Close()
		t.listener = nil
	}
	t.mu.Unlock()

	t.wg.Wait()
	logger.Info("TCP 传输已关闭")
	return err
}

// stream TCP 连接流
type stream struct {
	net.Conn
}

var _ interfaces.Stream = (*stream)(nil)

// RemoteAddr 返回对端地址
func (s *stream) RemoteAddr() string {
	return s.Conn.RemoteAddr().String()
}
