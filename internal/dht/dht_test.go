package dht

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-kadkv/pkg/interfaces"
	"github.com/dep2p/go-kadkv/pkg/types"
)

// ============================================================================
// 内存传输（测试用）
// ============================================================================

// memNetwork 进程内虚拟网络
type memNetwork struct {
	mu    sync.Mutex
	hosts map[types.NodeID]*memHost
}

func newMemNetwork() *memNetwork {
	return &memNetwork{hosts: make(map[types.NodeID]*memHost)}
}

// host 创建并注册一个虚拟主机
func (n *memNetwork) host(id types.NodeID) *memHost {
	n.mu.Lock()
	defer n.mu.Unlock()
	h := &memHost{net: n, id: id}
	n.hosts[id] = h
	return h
}

// memHost 进程内虚拟主机
type memHost struct {
	net *memNetwork
	id  types.NodeID

	mu      sync.Mutex
	handler interfaces.StreamHandler
}

var _ interfaces.Host = (*memHost)(nil)

func (h *memHost) ID() types.NodeID { return h.id }

func (h *memHost) Addrs() []string {
	return []string{"mem/" + h.id.Short()}
}

func (h *memHost) Listen(_ context.Context, addr string) (string, error) {
	return addr, nil
}

func (h *memHost) NewStream(_ context.Context, peer types.NodeID, _ []string) (interfaces.Stream, error) {
	h.net.mu.Lock()
	target := h.net.hosts[peer]
	h.net.mu.Unlock()
	if target == nil {
		return nil, fmt.Errorf("mem: unknown peer %s", peer.Short())
	}

	target.mu.Lock()
	handler := target.handler
	target.mu.Unlock()
	if handler == nil {
		return nil, fmt.Errorf("mem: peer %s not accepting streams", peer.Short())
	}

	client, server := net.Pipe()
	go handler(&memStream{Conn: server})
	return &memStream{Conn: client}, nil
}

func (h *memHost) SetStreamHandler(handler interfaces.StreamHandler) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

func (h *memHost) Close() error { return nil }

// memStream 管道流
type memStream struct {
	net.Conn
}

func (s *memStream) RemoteAddr() string { return "mem" }

// ============================================================================
// 测试辅助
// ============================================================================

// fakeDiscovery 可控的发现事件源
type fakeDiscovery struct {
	ch     chan types.PeerInfo
	closed atomic.Bool
}

func newFakeDiscovery() *fakeDiscovery {
	return &fakeDiscovery{ch: make(chan types.PeerInfo, 8)}
}

func (d *fakeDiscovery) Start(_ context.Context) error { return nil }

func (d *fakeDiscovery) Events() <-chan types.PeerInfo { return d.ch }

func (d *fakeDiscovery) Close() error {
	if d.closed.CompareAndSwap(false, true) {
		close(d.ch)
	}
	return nil
}

// syncBuffer 并发安全的输出缓冲
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// syncPoint 向调度循环投递一个带应答的请求并等待处理完成
//
// 同一事件通道按先进先出消费，应答返回即可确认此前投递的事件已生效。
func syncPoint(t *testing.T, d *DHT, sender types.NodeID) {
	t.Helper()
	reply := make(chan *Message, 1)
	d.events <- RequestEvent{
		Msg:   NewFindValueRequest("q-sync", sender, nil, "sync"),
		Reply: reply,
	}
	select {
	case <-reply:
	case <-time.After(5 * time.Second):
		t.Fatal("调度循环未应答同步请求")
	}
}

// ============================================================================
// 端到端测试
// ============================================================================

// TestDHT_New_NilHost 测试缺少传输主机
func TestDHT_New_NilHost(t *testing.T) {
	_, err := New(nil, nil, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrNilHost)

	t.Log("✅ 缺少传输主机时拒绝创建")
}

// TestDHT_New_InvalidConfig 测试无效配置
func TestDHT_New_InvalidConfig(t *testing.T) {
	host := newMemNetwork().host(makeID(0x01))
	_, err := New(host, nil, &bytes.Buffer{}, &bytes.Buffer{}, WithQuorum(0))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	t.Log("✅ 无效配置被拒绝")
}

// TestDHT_PutReplicatesAndGetFinds 测试两节点间 PUT 复制与 GET 取回
//
// A 通过发现得知 B；A 的 PUT 复制到 B；B 通过入站 STORE 的
// 发送者观察得知 A，随后 B 的 GET 命中复制来的记录。
func TestDHT_PutReplicatesAndGetFinds(t *testing.T) {
	network := newMemNetwork()
	hostA := network.host(makeID(0xAA))
	hostB := network.host(makeID(0xBB))

	discovery := newFakeDiscovery()
	outA, errA := &syncBuffer{}, &syncBuffer{}
	outB, errB := &syncBuffer{}, &syncBuffer{}

	dhtA, err := New(hostA, discovery, outA, errA)
	require.NoError(t, err)
	dhtB, err := New(hostB, nil, outB, errB)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, dhtA.Start(ctx))
	require.NoError(t, dhtB.Start(ctx))
	defer func() {
		_ = dhtA.Close()
		_ = dhtB.Close()
	}()

	// A 发现 B
	discovery.ch <- types.PeerInfo{ID: hostB.ID(), Addrs: hostB.Addrs()}
	syncPoint(t, dhtA, hostB.ID())

	// A 发布记录，法定数 1 由 B 的确认满足
	dhtA.Submit(Command{Kind: CommandPut, Key: "foo", Value: "bar"})
	require.Eventually(t, func() bool {
		return strings.Contains(outA.String(), "put record foo")
	}, 5*time.Second, 10*time.Millisecond, "PUT 未完成: %s", errA.String())

	// B 的 GET 命中复制来的记录
	dhtB.Submit(Command{Kind: CommandGet, Key: "foo"})
	require.Eventually(t, func() bool {
		return strings.Contains(outB.String(), "got record foo bar")
	}, 5*time.Second, 10*time.Millisecond, "GET 未命中: %s", errB.String())

	t.Log("✅ 两节点 PUT 复制与 GET 取回成功")
}

// TestDHT_GetAcrossNetwork 测试跨网络取值
//
// 记录只在 B 上；A 不持有记录，GET 须通过网络查询 B。
func TestDHT_GetAcrossNetwork(t *testing.T) {
	network := newMemNetwork()
	hostA := network.host(makeID(0xAA))
	hostB := network.host(makeID(0xBB))

	discovery := newFakeDiscovery()
	outA, errA := &syncBuffer{}, &syncBuffer{}
	outB, errB := &syncBuffer{}, &syncBuffer{}

	dhtA, err := New(hostA, discovery, outA, errA)
	require.NoError(t, err)
	dhtB, err := New(hostB, nil, outB, errB)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, dhtA.Start(ctx))
	require.NoError(t, dhtB.Start(ctx))
	defer func() {
		_ = dhtA.Close()
		_ = dhtB.Close()
	}()

	// 记录直接写入 B 的存储
	require.NoError(t, dhtB.store.Put(types.Record{Key: "remote", Value: []byte("value")}))

	discovery.ch <- types.PeerInfo{ID: hostB.ID(), Addrs: hostB.Addrs()}
	syncPoint(t, dhtA, hostB.ID())

	dhtA.Submit(Command{Kind: CommandGet, Key: "remote"})
	require.Eventually(t, func() bool {
		return strings.Contains(outA.String(), "got record remote value")
	}, 5*time.Second, 10*time.Millisecond, "GET 未命中: %s", errA.String())

	t.Log("✅ 跨网络 GET 取回远端记录")
}

// TestDHT_DoubleStartRejected 测试重复启动被拒绝
func TestDHT_DoubleStartRejected(t *testing.T) {
	host := newMemNetwork().host(makeID(0x01))
	d, err := New(host, nil, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)

	require.NoError(t, d.Start(context.Background()))
	defer func() { _ = d.Close() }()

	assert.ErrorIs(t, d.Start(context.Background()), ErrAlreadyStarted)

	t.Log("✅ 重复启动返回 ErrAlreadyStarted")
}

// TestDHT_CloseCommandsEndsLoop 测试命令源关闭结束调度循环
func TestDHT_CloseCommandsEndsLoop(t *testing.T) {
	host := newMemNetwork().host(makeID(0x01))
	d, err := New(host, nil, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	defer func() { _ = d.Close() }()

	d.CloseCommands()

	select {
	case err := <-d.Done():
		assert.ErrorIs(t, err, ErrInputClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("调度循环未退出")
	}

	t.Log("✅ 命令源关闭后调度循环以 ErrInputClosed 结束")
}
