package dht

import (
	"sort"
	"time"

	"github.com/dep2p/go-kadkv/pkg/types"
)

// ============================================================================
//                              查询状态
// ============================================================================

// QueryKind 查询类型
type QueryKind uint8

const (
	// QueryGet 值查找
	QueryGet QueryKind = iota + 1
	// QueryPut 值传播
	QueryPut
)

// String 返回查询类型的字符串表示
func (k QueryKind) String() string {
	switch k {
	case QueryGet:
		return "GET"
	case QueryPut:
		return "PUT"
	default:
		return "UNKNOWN"
	}
}

// Observation 一次观察到的 (节点, 记录) 对
//
// GET 的结果不做合并：多个节点对同一键返回不同值时，
// 全部观察结果原样交给调用方，由调用方决定合并策略。
type Observation struct {
	// Peer 返回记录的节点
	Peer types.NodeID

	// Record 观察到的记录
	Record types.Record
}

// QueryCallback 查询完成回调
//
// 在调度循环内调用；err 为 nil 表示达到法定数。
type QueryCallback func(q *Query, err error)

// Query 在途查询
//
// 由查询引擎独占持有，状态变更全部发生在调度循环内。
// 达到法定数、可联系节点耗尽或超时后进入终结状态并从在途集合移除。
type Query struct {
	// ID 不透明查询 ID，响应通过它与查询匹配
	ID string

	// Kind GET 或 PUT
	Kind QueryKind

	// Key 目标键
	Key string

	// Target 键在 ID 空间中的位置
	Target types.NodeID

	// Quorum 所需一致响应数
	Quorum int

	// Deadline 查询截止时间
	Deadline time.Time

	// Record PUT 待传播的记录
	Record types.Record

	// Observed GET 收集到的 (节点, 记录) 观察
	Observed []Observation

	// Acks PUT 收到的确认数
	Acks int

	pending   []*RoutingNode
	contacted map[types.NodeID]struct{}
	responded map[types.NodeID]struct{}
	inflight  int
	callback  QueryCallback
}

// newQuery 创建查询
func newQuery(id string, kind QueryKind, key string, quorum int, deadline time.Time, cb QueryCallback) *Query {
	return &Query{
		ID:        id,
		Kind:      kind,
		Key:       key,
		Target:    KeyID(key),
		Quorum:    quorum,
		Deadline:  deadline,
		contacted: make(map[types.NodeID]struct{}),
		responded: make(map[types.NodeID]struct{}),
		callback:  cb,
	}
}

// seed 填充初始待联系列表
func (q *Query) seed(peers []*RoutingNode) {
	q.pending = append(q.pending, peers...)
}

// nextPeer 取出下一个未联系的待联系节点
func (q *Query) nextPeer() *RoutingNode {
	for len(q.pending) > 0 {
		peer := q.pending[0]
		q.pending = q.pending[1:]
		if _, seen := q.contacted[peer.ID]; seen {
			continue
		}
		return peer
	}
	return nil
}

// markContacted 记录已联系节点
func (q *Query) markContacted(peer types.NodeID) {
	q.contacted[peer] = struct{}{}
}

// markResponded 记录已响应节点；重复响应返回 false
func (q *Query) markResponded(peer types.NodeID) bool {
	if _, ok := q.responded[peer]; ok {
		return false
	}
	q.responded[peer] = struct{}{}
	return true
}

// addCloserPeers 并入对端返回的更近节点
//
// 只追加未联系过的新节点，随后按与目标的距离重排待联系列表。
// 查询不直接修改路由表——新节点只进入本查询的候选序列。
func (q *Query) addCloserPeers(peers []PeerRecord) {
	known := make(map[types.NodeID]struct{}, len(q.pending))
	for _, p := range q.pending {
		known[p.ID] = struct{}{}
	}
	for _, pr := range peers {
		if pr.ID.IsEmpty() {
			continue
		}
		if _, seen := q.contacted[pr.ID]; seen {
			continue
		}
		if _, dup := known[pr.ID]; dup {
			continue
		}
		known[pr.ID] = struct{}{}
		q.pending = append(q.pending, &RoutingNode{ID: pr.ID, Addrs: pr.Addrs})
	}

	target := q.Target
	sort.SliceStable(q.pending, func(i, j int) bool {
		return CompareDistance(q.pending[i].ID, q.pending[j].ID, target) < 0
	})
}

// exhausted 检查是否再无可联系节点且无在途请求
func (q *Query) exhausted() bool {
	return len(q.pending) == 0 && q.inflight == 0
}

// quorumReached 检查是否达到法定数
func (q *Query) quorumReached() bool {
	switch q.Kind {
	case QueryGet:
		return len(q.Observed) >= q.Quorum
	case QueryPut:
		return q.Acks >= q.Quorum
	default:
		return false
	}
}
