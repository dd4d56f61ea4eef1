package dht

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/dep2p/go-kadkv/pkg/lib/log"
	"github.com/dep2p/go-kadkv/pkg/types"
)

var engineLogger = log.Logger("dht/engine")

// Sender 异步发送接口
//
// 实现方在自己的 goroutine 中完成网络往返，
// 并把响应或失败作为事件投回调度循环；调用本身立即返回。
type Sender interface {
	Send(peer *RoutingNode, msg *Message)
}

// Engine 查询引擎
//
// 驱动 GET 的迭代查找与 PUT 的复制传播，独占持有全部在途查询。
// 所有方法都只在调度循环内调用：引擎只读路由表，从不修改它。
type Engine struct {
	config  *Config
	local   types.NodeID
	addrsFn func() []string
	table   *RoutingTable
	store   *RecordStore
	sender  Sender
	clk     clock.Clock

	queries map[string]*Query
}

// NewEngine 创建查询引擎
func NewEngine(config *Config, table *RoutingTable, store *RecordStore, sender Sender, addrsFn func() []string) *Engine {
	if addrsFn == nil {
		addrsFn = func() []string { return nil }
	}
	return &Engine{
		config:  config,
		local:   table.Local(),
		addrsFn: addrsFn,
		table:   table,
		store:   store,
		sender:  sender,
		clk:     config.Clock,
		queries: make(map[string]*Query),
	}
}

// InFlight 返回在途查询数
func (e *Engine) InFlight() int {
	return len(e.queries)
}

// ============================================================================
//                              查询发起
// ============================================================================

// StartGet 发起 GET 查询
//
// 本地命中计为一次观察；法定数由此满足时走快速路径，
// 立即完成且不触网，否则剩余法定数仍需网络查找补足。
// 需要触网而路由表为空时立即以 ErrRoutingTableEmpty 失败。
func (e *Engine) StartGet(key string, cb QueryCallback) {
	deadline := e.clk.Now().Add(e.config.QueryTimeout)
	q := newQuery(uuid.New().String(), QueryGet, key, e.config.Quorum, deadline, cb)

	if record, ok := e.store.Get(key); ok {
		q.Observed = append(q.Observed, Observation{Peer: e.local, Record: record})
		if q.quorumReached() {
			e.complete(q, nil)
			return
		}
	}

	if e.table.Size() == 0 {
		e.complete(q, ErrRoutingTableEmpty)
		return
	}

	q.seed(e.table.ClosestPeers(q.Target, e.config.Alpha))
	e.queries[q.ID] = q
	engineLogger.Debug("发起 GET 查询", "queryID", q.ID, "key", key, "quorum", q.Quorum)
	e.pump(q)
}

// StartPut 发起 PUT 查询
//
// 先无条件写入本地存储——本地持久是基础保证，
// 本地写入失败对整个 PUT 是致命的，不论网络结果如何。
func (e *Engine) StartPut(key string, value []byte, cb QueryCallback) {
	deadline := e.clk.Now().Add(e.config.QueryTimeout)
	q := newQuery(uuid.New().String(), QueryPut, key, e.config.Quorum, deadline, cb)
	q.Record = types.Record{Key: key, Value: value, Publisher: e.local}

	if err := e.store.Put(q.Record); err != nil {
		e.complete(q, NewDHTError("put", err, "local store rejected record"))
		return
	}

	if e.table.Size() == 0 {
		e.complete(q, ErrRoutingTableEmpty)
		return
	}

	q.seed(e.table.ClosestPeers(q.Target, e.config.BucketSize))
	e.queries[q.ID] = q
	engineLogger.Debug("发起 PUT 查询", "queryID", q.ID, "key", key, "quorum", q.Quorum)
	e.pump(q)
}

// ============================================================================
//                              响应处理
// ============================================================================

// HandleResponse 处理一条查询响应
//
// 响应按到达顺序处理；查询已终结后到达的迟到响应被丢弃。
// 无法解析为记录的响应只丢弃该节点的贡献，查询继续。
func (e *Engine) HandleResponse(msg *Message) {
	q, ok := e.queries[msg.QueryID]
	if !ok {
		engineLogger.Debug("丢弃迟到或未知查询的响应", "queryID", msg.QueryID, "sender", msg.Sender.Short())
		return
	}
	if _, contacted := q.contacted[msg.Sender]; !contacted {
		engineLogger.Debug("丢弃未联系节点的响应", "queryID", msg.QueryID, "sender", msg.Sender.Short())
		return
	}
	if !q.markResponded(msg.Sender) {
		return
	}
	q.inflight--

	switch q.Kind {
	case QueryGet:
		e.handleGetResponse(q, msg)
	case QueryPut:
		e.handlePutResponse(q, msg)
	}

	if _, live := e.queries[q.ID]; live {
		e.pump(q)
	}
}

func (e *Engine) handleGetResponse(q *Query, msg *Message) {
	if msg.Type != MessageTypeFindValueResponse {
		engineLogger.Warn("GET 收到类型不符的响应", "queryID", q.ID, "type", msg.Type.String())
		return
	}

	if msg.HasValue() {
		record, err := msg.Record(e.clk.Now())
		if err != nil {
			// 单个节点的畸形响应不终结查询
			engineLogger.Warn("丢弃畸形记录响应", "queryID", q.ID, "sender", msg.Sender.Short())
			return
		}
		q.Observed = append(q.Observed, Observation{Peer: msg.Sender, Record: record})
		if q.quorumReached() {
			e.store.PutCached(record)
			e.complete(q, nil)
		}
		return
	}

	q.addCloserPeers(msg.CloserPeers)
}

func (e *Engine) handlePutResponse(q *Query, msg *Message) {
	if msg.Type != MessageTypeStoreResponse {
		engineLogger.Warn("PUT 收到类型不符的响应", "queryID", q.ID, "type", msg.Type.String())
		return
	}
	if !msg.Success {
		engineLogger.Debug("对端拒绝 STORE", "queryID", q.ID, "sender", msg.Sender.Short(), "error", msg.Error)
		return
	}
	q.Acks++
	if q.quorumReached() {
		e.complete(q, nil)
	}
}

// HandleSendFailure 处理发送失败
//
// 失败节点视为无响应，继续联系剩余节点。
func (e *Engine) HandleSendFailure(queryID string, peer types.NodeID) {
	q, ok := e.queries[queryID]
	if !ok {
		return
	}
	if _, contacted := q.contacted[peer]; !contacted {
		return
	}
	if !q.markResponded(peer) {
		return
	}
	q.inflight--
	engineLogger.Debug("联系节点失败", "queryID", queryID, "peer", peer.Short())
	e.pump(q)
}

// CheckDeadlines 终结已超过截止时间的查询
//
// 由调度器每个循环周期调用；超时后同一查询 ID 的响应不再生效。
func (e *Engine) CheckDeadlines(now time.Time) {
	for _, q := range e.queries {
		if now.After(q.Deadline) {
			engineLogger.Debug("查询超时", "queryID", q.ID, "kind", q.Kind.String(), "key", q.Key)
			e.complete(q, ErrQueryTimeout)
		}
	}
}

// ============================================================================
//                              内部调度
// ============================================================================

// pump 补足在途请求至 α 并检查耗尽
func (e *Engine) pump(q *Query) {
	for q.inflight < e.config.Alpha {
		peer := q.nextPeer()
		if peer == nil {
			break
		}
		q.markContacted(peer.ID)
		q.inflight++

		var msg *Message
		switch q.Kind {
		case QueryGet:
			msg = NewFindValueRequest(q.ID, e.local, e.addrsFn(), q.Key)
		case QueryPut:
			msg = NewStoreRequest(q.ID, e.local, e.addrsFn(), q.Record, e.clk.Now())
		}
		e.sender.Send(peer, msg)
	}

	if q.exhausted() && !q.quorumReached() {
		e.complete(q, ErrQuorumUnreachable)
	}
}

// complete 终结查询并在循环内回调
func (e *Engine) complete(q *Query, err error) {
	delete(e.queries, q.ID)
	if q.callback != nil {
		q.callback(q, err)
	}
}
