package interfaces

import (
	"context"

	"github.com/dep2p/go-kadkv/pkg/types"
)

// Discovery 本地网络发现接口（发现协作者）
//
// 在同一广播域内公告本节点并探测其他节点，
// 以事件流形式产出 (NodeID, 地址) 对。核心无需其他配置。
type Discovery interface {
	// Start 启动发现服务（开始公告与监听）
	Start(ctx context.Context) error

	// Events 返回发现事件流
	//
	// 重复发现同一节点会重复产出事件，由消费方幂等处理。
	// 服务关闭后通道关闭。
	Events() <-chan types.PeerInfo

	// Close 关闭发现服务
	Close() error
}
