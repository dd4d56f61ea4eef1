package tcp

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-kadkv/pkg/interfaces"
	"github.com/dep2p/go-kadkv/pkg/types"
)

// newTestTransport 创建并监听一个回环传输
func newTestTransport(t *testing.T) (*Transport, string) {
	t.Helper()

	id, err := types.RandomNodeID()
	require.NoError(t, err)

	tr := New(id)
	addr, err := tr.Listen(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr, addr
}

// TestTransport_RoundTrip 测试回环流往返
func TestTransport_RoundTrip(t *testing.T) {
	server, addr := newTestTransport(t)
	client, _ := newTestTransport(t)

	// 服务端原样回写收到的字节
	server.SetStreamHandler(func(s interfaces.Stream) {
		defer s.Close()
		buf := make([]byte, 5)
		if _, err := io.ReadFull(s, buf); err != nil {
			return
		}
		_, _ = s.Write(buf)
	})

	stream, err := client.NewStream(context.Background(), server.ID(), []string{addr})
	require.NoError(t, err)
	defer stream.Close()

	require.NoError(t, stream.SetDeadline(time.Now().Add(3*time.Second)))
	_, err = stream.Write([]byte("hello"))
	require.NoError(t, err)

	reply := make([]byte, 5)
	_, err = io.ReadFull(stream, reply)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(reply))

	t.Log("✅ 回环流写读往返成功")
}

// TestTransport_AddrsAfterListen 测试监听后地址可公告
func TestTransport_AddrsAfterListen(t *testing.T) {
	tr, _ := newTestTransport(t)

	addrs := tr.Addrs()
	require.NotEmpty(t, addrs)

	t.Log("✅ 监听后返回可公告地址", addrs)
}

// TestTransport_AddrsBeforeListen 测试未监听时无地址
func TestTransport_AddrsBeforeListen(t *testing.T) {
	id, err := types.RandomNodeID()
	require.NoError(t, err)

	tr := New(id)
	assert.Empty(t, tr.Addrs())

	t.Log("✅ 未监听时地址列表为空")
}

// TestTransport_DialFailures 测试拨号失败路径
func TestTransport_DialFailures(t *testing.T) {
	client, _ := newTestTransport(t)
	peer, err := types.RandomNodeID()
	require.NoError(t, err)

	// 无地址
	_, err = client.NewStream(context.Background(), peer, nil)
	assert.ErrorIs(t, err, ErrNoAddresses)

	// 所有地址都不可达
	_, err = client.NewStream(context.Background(), peer, []string{"127.0.0.1:1"})
	assert.ErrorIs(t, err, ErrDialFailed)

	t.Log("✅ 无地址与不可达地址分别返回对应错误")
}

// TestTransport_NoHandlerDropsConn 测试未注册处理函数时丢弃入站连接
func TestTransport_NoHandlerDropsConn(t *testing.T) {
	server, addr := newTestTransport(t)
	client, _ := newTestTransport(t)

	stream, err := client.NewStream(context.Background(), server.ID(), []string{addr})
	require.NoError(t, err)
	defer stream.Close()

	// 对端关闭连接，读到 EOF
	require.NoError(t, stream.SetDeadline(time.Now().Add(3*time.Second)))
	buf := make([]byte, 1)
	_, err = stream.Read(buf)
	assert.Error(t, err)

	t.Log("✅ 无处理函数的入站连接被关闭")
}

// TestTransport_CloseIdempotent 测试重复关闭
func TestTransport_CloseIdempotent(t *testing.T) {
	tr, _ := newTestTransport(t)

	require.NoError(t, tr.Close())
	assert.NoError(t, tr.Close())

	// 关闭后拒绝新操作
	_, err := tr.Listen(context.Background(), "127.0.0.1:0")
	assert.ErrorIs(t, err, ErrClosed)

	t.Log("✅ 关闭幂等且关闭后拒绝监听")
}

// TestTransport_DoubleListenRejected 测试重复监听被拒绝
func TestTransport_DoubleListenRejected(t *testing.T) {
	tr, _ := newTestTransport(t)

	_, err := tr.Listen(context.Background(), "127.0.0.1:0")
	assert.ErrorIs(t, err, ErrAlreadyListening)

	t.Log("✅ 同一传输只允许监听一次")
}
