package dht

import (
	"github.com/dep2p/go-kadkv/pkg/lib/log"
	"github.com/dep2p/go-kadkv/pkg/types"
)

var bridgeLogger = log.Logger("dht/bridge")

// Bridge 发现桥
//
// 把发现事件适配为路由表变更，是路由表唯一的变更入口：
// 本地网络发现与入站消息的发送者观察都经由本桥进入路由表。
// 重复发现已知节点是一次无害的刷新，不是错误。
type Bridge struct {
	table *RoutingTable
}

// NewBridge 创建发现桥
func NewBridge(table *RoutingTable) *Bridge {
	return &Bridge{table: table}
}

// Observe 记录一次节点观察
func (b *Bridge) Observe(peer types.PeerInfo) {
	if !peer.IsValid() || peer.ID == b.table.Local() {
		return
	}
	known := b.table.Get(peer.ID) != nil
	b.table.RecordObservation(peer.ID, peer.Addrs)
	if !known {
		bridgeLogger.Debug("新节点进入路由表",
			"peer", peer.ID.Short(),
			"addrs", len(peer.Addrs),
			"tableSize", b.table.Size())
	}
}
