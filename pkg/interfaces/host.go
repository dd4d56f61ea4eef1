// Package interfaces 定义 go-kadkv 对外部协作者的接口
//
// DHT 核心只依赖本包中的接口，不依赖具体传输实现。
package interfaces

import (
	"context"
	"io"
	"time"

	"github.com/dep2p/go-kadkv/pkg/types"
)

// StreamHandler 入站流处理函数
type StreamHandler func(stream Stream)

// Host 网络主机接口（传输协作者）
//
// 提供节点间有序、可寻址的字节流。DHT 通过 NewStream 发起请求，
// 通过 SetStreamHandler 接收入站请求。
type Host interface {
	// ID 返回本机节点 ID
	ID() types.NodeID

	// Addrs 返回本机监听的地址列表
	Addrs() []string

	// Listen 监听指定地址
	//
	// addr 为 host:port 格式，端口为 0 时随机分配。
	// 返回实际监听地址。
	Listen(ctx context.Context, addr string) (string, error)

	// NewStream 向目标节点创建流
	//
	// addrs 为目标节点的候选地址，按顺序尝试直到成功。
	NewStream(ctx context.Context, peer types.NodeID, addrs []string) (Stream, error)

	// SetStreamHandler 设置入站流处理函数
	SetStreamHandler(handler StreamHandler)

	// Close 关闭主机
	Close() error
}

// Stream 双向字节流
type Stream interface {
	io.Reader
	io.Writer

	// Close 关闭流
	Close() error

	// SetDeadline 设置读写截止时间
	SetDeadline(t time.Time) error

	// RemoteAddr 返回对端地址
	RemoteAddr() string
}
