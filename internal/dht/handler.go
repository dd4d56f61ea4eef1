package dht

import (
	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-kadkv/pkg/lib/log"
	"github.com/dep2p/go-kadkv/pkg/types"
)

var handlerLogger = log.Logger("dht/handler")

// Handler 入站协议处理器
//
// 应答对端的 FIND_VALUE 与 STORE 请求。在调度循环内运行：
// 读取存储与路由表，发送者观察经发现桥进入路由表。
type Handler struct {
	config *Config
	local  types.NodeID
	table  *RoutingTable
	store  *RecordStore
	bridge *Bridge
	clk    clock.Clock
}

// NewHandler 创建协议处理器
func NewHandler(config *Config, table *RoutingTable, store *RecordStore, bridge *Bridge) *Handler {
	return &Handler{
		config: config,
		local:  table.Local(),
		table:  table,
		store:  store,
		bridge: bridge,
		clk:    config.Clock,
	}
}

// Handle 处理一条入站请求并构造应答
func (h *Handler) Handle(msg *Message) *Message {
	// 每个入站发送者都是一次观察
	h.bridge.Observe(types.PeerInfo{ID: msg.Sender, Addrs: msg.SenderAddrs})

	switch msg.Type {
	case MessageTypeFindValue:
		return h.handleFindValue(msg)
	case MessageTypeStore:
		return h.handleStore(msg)
	default:
		handlerLogger.Warn("入站请求类型未知", "type", msg.Type.String(), "sender", msg.Sender.Short())
		return &Message{
			Type:    MessageTypeStoreResponse,
			QueryID: msg.QueryID,
			Sender:  h.local,
			Success: false,
			Error:   "unknown message type",
		}
	}
}

// handleFindValue 应答 FIND_VALUE
//
// 本地持有记录时返回记录，否则返回距键更近的已知节点。
func (h *Handler) handleFindValue(msg *Message) *Message {
	if record, ok := h.store.Get(msg.Key); ok {
		handlerLogger.Debug("FIND_VALUE 命中", "key", msg.Key, "sender", msg.Sender.Short())
		return NewFindValueResponse(msg.QueryID, h.local, record, h.clk.Now())
	}

	closer := h.table.ClosestPeers(KeyID(msg.Key), h.config.BucketSize)
	peers := make([]PeerRecord, 0, len(closer))
	for _, node := range closer {
		if node.ID == msg.Sender {
			continue
		}
		peers = append(peers, PeerRecord{ID: node.ID, Addrs: node.Addrs})
	}
	handlerLogger.Debug("FIND_VALUE 未命中，返回更近节点",
		"key", msg.Key, "sender", msg.Sender.Short(), "closer", len(peers))
	return NewFindValueResponseWithPeers(msg.QueryID, h.local, peers)
}

// handleStore 应答 STORE
//
// 对端复制来的记录进入缓存段，不占用自有容量。
func (h *Handler) handleStore(msg *Message) *Message {
	record, err := msg.Record(h.clk.Now())
	if err != nil {
		handlerLogger.Warn("STORE 请求畸形", "sender", msg.Sender.Short())
		return NewStoreResponse(msg.QueryID, h.local, false, "malformed record")
	}

	h.store.PutCached(record)
	handlerLogger.Debug("STORE 已缓存", "key", record.Key, "sender", msg.Sender.Short())
	return NewStoreResponse(msg.QueryID, h.local, true, "")
}
