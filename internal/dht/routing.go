package dht

import (
	"sort"
	"time"

	"github.com/dep2p/go-kadkv/pkg/types"
)

// ============================================================================
//                              路由表节点
// ============================================================================

// RoutingNode 路由表节点
type RoutingNode struct {
	// ID 节点 ID
	ID types.NodeID

	// Addrs 节点地址列表
	Addrs []string

	// LastSeen 最后一次观察到的时间
	LastSeen time.Time

	// seq 首次插入序号，用于距离相同时的确定性排序
	seq uint64
}

// snapshot 返回节点的独立拷贝
//
// 路由表内的节点会被后续观察原地更新（地址追加、LastSeen 刷新），
// 凡是会越出调度循环的节点引用都必须持有拷贝而非表内指针。
func (n *RoutingNode) snapshot() *RoutingNode {
	return &RoutingNode{
		ID:       n.ID,
		Addrs:    append([]string(nil), n.Addrs...),
		LastSeen: n.LastSeen,
		seq:      n.seq,
	}
}

// hasAddr 检查地址是否已记录
func (n *RoutingNode) hasAddr(addr string) bool {
	for _, a := range n.Addrs {
		if a == addr {
			return true
		}
	}
	return false
}

// ============================================================================
//                              K 桶
// ============================================================================

// KBucket K 桶
//
// 节点列表按最近观察排序（最新的在前）。桶满时淘汰最久未观察的节点。
type KBucket struct {
	nodes []*RoutingNode
	k     int
}

// NewKBucket 创建新的 K 桶
func NewKBucket(k int) *KBucket {
	return &KBucket{
		nodes: make([]*RoutingNode, 0, k),
		k:     k,
	}
}

// Size 返回桶中节点数量
func (b *KBucket) Size() int {
	return len(b.nodes)
}

// IsFull 检查桶是否已满
func (b *KBucket) IsFull() bool {
	return len(b.nodes) >= b.k
}

// Nodes 返回所有节点（拷贝切片）
func (b *KBucket) Nodes() []*RoutingNode {
	result := make([]*RoutingNode, len(b.nodes))
	copy(result, b.nodes)
	return result
}

// Get 获取节点
func (b *KBucket) Get(id types.NodeID) *RoutingNode {
	for _, node := range b.nodes {
		if node.ID == id {
			return node
		}
	}
	return nil
}

// add 插入或前移节点
//
// 已存在时前移并返回该节点；桶满时先淘汰末尾（最久未观察）节点。
func (b *KBucket) add(node *RoutingNode) {
	for i, existing := range b.nodes {
		if existing.ID == node.ID {
			b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
			b.nodes = append([]*RoutingNode{existing}, b.nodes...)
			return
		}
	}

	if len(b.nodes) >= b.k {
		b.nodes = b.nodes[:len(b.nodes)-1]
	}
	b.nodes = append([]*RoutingNode{node}, b.nodes...)
}

// remove 移除节点
func (b *KBucket) remove(id types.NodeID) bool {
	for i, node := range b.nodes {
		if node.ID == id {
			b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
			return true
		}
	}
	return false
}

// ============================================================================
//                              路由表
// ============================================================================

// RoutingTable Kademlia 路由表
//
// 按与本机 ID 的 XOR 距离将已知节点组织为 K 桶。
// 路由表由调度循环独占持有，方法不加锁也不挂起；
// 发现桥是唯一的变更来源，查询引擎只读。
type RoutingTable struct {
	local   types.NodeID
	buckets [KeySize]*KBucket
	k       int
	size    int
	nextSeq uint64
	now     func() time.Time
}

// NewRoutingTable 创建路由表
func NewRoutingTable(local types.NodeID, k int, now func() time.Time) *RoutingTable {
	if now == nil {
		now = time.Now
	}
	rt := &RoutingTable{
		local: local,
		k:     k,
		now:   now,
	}
	for i := range rt.buckets {
		rt.buckets[i] = NewKBucket(k)
	}
	return rt
}

// Local 返回本机 ID
func (rt *RoutingTable) Local() types.NodeID {
	return rt.local
}

// Size 返回路由表中的节点总数
func (rt *RoutingTable) Size() int {
	return rt.size
}

// RecordObservation 记录一次节点观察
//
// 将节点插入由 XOR 距离决定的桶，或刷新已有条目。
// 已知节点的地址做并集合并；本机 ID 不会进入路由表。
func (rt *RoutingTable) RecordObservation(peer types.NodeID, addrs []string) {
	if peer == rt.local || peer.IsEmpty() {
		return
	}

	bucket := rt.buckets[BucketIndex(rt.local, peer)]

	if existing := bucket.Get(peer); existing != nil {
		for _, addr := range addrs {
			if addr != "" && !existing.hasAddr(addr) {
				existing.Addrs = append(existing.Addrs, addr)
			}
		}
		existing.LastSeen = rt.now()
		bucket.add(existing)
		return
	}

	node := &RoutingNode{
		ID:       peer,
		Addrs:    dedupAddrs(addrs),
		LastSeen: rt.now(),
		seq:      rt.nextSeq,
	}
	rt.nextSeq++

	wasFull := bucket.IsFull()
	bucket.add(node)
	if !wasFull {
		rt.size++
	}
}

// Remove 从路由表移除节点
func (rt *RoutingTable) Remove(peer types.NodeID) {
	bucket := rt.buckets[BucketIndex(rt.local, peer)]
	if bucket.remove(peer) {
		rt.size--
	}
}

// Get 查找节点
func (rt *RoutingTable) Get(peer types.NodeID) *RoutingNode {
	return rt.buckets[BucketIndex(rt.local, peer)].Get(peer)
}

// ClosestPeers 返回距 target 最近的至多 count 个节点
//
// 按 XOR 距离升序排序；距离相同时先插入的在前，保证确定性。
// 这是查询引擎选择下一批联系对象的原语。
//
// 返回的是节点拷贝：调用方会把它们交给传输层 goroutine 或写入
// 应答消息，表内节点随时可能被循环内的后续观察更新。
func (rt *RoutingTable) ClosestPeers(target types.NodeID, count int) []*RoutingNode {
	all := make([]*RoutingNode, 0, rt.size)
	for _, bucket := range rt.buckets {
		all = append(all, bucket.nodes...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		switch CompareDistance(all[i].ID, all[j].ID, target) {
		case -1:
			return true
		case 1:
			return false
		default:
			return all[i].seq < all[j].seq
		}
	})

	if len(all) > count {
		all = all[:count]
	}

	out := make([]*RoutingNode, len(all))
	for i, node := range all {
		out[i] = node.snapshot()
	}
	return out
}

// dedupAddrs 去重并去除空地址
func dedupAddrs(addrs []string) []string {
	out := make([]string, 0, len(addrs))
	seen := make(map[string]struct{}, len(addrs))
	for _, addr := range addrs {
		if addr == "" {
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}
