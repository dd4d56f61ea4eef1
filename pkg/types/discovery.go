package types

// PeerInfo 节点信息
//
// 发现机制产出的 (节点 ID, 地址列表) 对。一个 NodeID 可以有零个或多个地址。
type PeerInfo struct {
	// ID 节点 ID
	ID NodeID `json:"id"`

	// Addrs 可达地址列表（host:port 格式）
	Addrs []string `json:"addrs"`
}

// IsValid 检查节点信息是否可用
func (p PeerInfo) IsValid() bool {
	return !p.ID.IsEmpty()
}
