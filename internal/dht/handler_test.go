package dht

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-kadkv/pkg/types"
)

// handlerHarness 入站处理器测试环境
type handlerHarness struct {
	handler *Handler
	table   *RoutingTable
	store   *RecordStore
	local   types.NodeID
}

// newHandlerHarness 构建测试环境
func newHandlerHarness(t *testing.T) *handlerHarness {
	t.Helper()

	config := DefaultConfig()
	require.NoError(t, config.Validate())

	local := makeID(0xFF)
	table := NewRoutingTable(local, config.BucketSize, nil)
	store := NewRecordStore(config.StoreCapacity, config.CacheSize, config.CacheTTL)
	handler := NewHandler(config, table, store, NewBridge(table))

	return &handlerHarness{handler: handler, table: table, store: store, local: local}
}

// TestHandler_FindValueHit 测试 FIND_VALUE 本地命中
func TestHandler_FindValueHit(t *testing.T) {
	h := newHandlerHarness(t)
	require.NoError(t, h.store.Put(types.Record{Key: "foo", Value: []byte("bar")}))

	sender := makeTailID(1)
	resp := h.handler.Handle(NewFindValueRequest("q-1", sender, []string{"127.0.0.1:0"}, "foo"))

	require.Equal(t, MessageTypeFindValueResponse, resp.Type)
	assert.Equal(t, "q-1", resp.QueryID)
	assert.Equal(t, h.local, resp.Sender)
	assert.Equal(t, []byte("bar"), resp.Value)

	t.Log("✅ 命中时返回记录")
}

// TestHandler_FindValueMissReturnsCloser 测试未命中返回更近节点
func TestHandler_FindValueMissReturnsCloser(t *testing.T) {
	h := newHandlerHarness(t)
	known := makeTailID(2)
	h.table.RecordObservation(known, []string{"10.0.0.2:4001"})

	sender := makeTailID(1)
	resp := h.handler.Handle(NewFindValueRequest("q-1", sender, []string{"10.0.0.1:4001"}, "foo"))

	require.Equal(t, MessageTypeFindValueResponse, resp.Type)
	assert.Empty(t, resp.Value)

	ids := make([]types.NodeID, 0, len(resp.CloserPeers))
	for _, pr := range resp.CloserPeers {
		ids = append(ids, pr.ID)
	}
	assert.Contains(t, ids, known)
	assert.NotContains(t, ids, sender)

	t.Log("✅ 未命中时返回更近节点且排除请求方")
}

// TestHandler_CloserPeersDetachedFromTable 测试应答节点与路由表脱离
//
// 应答消息由传输层 goroutine 序列化写出，生成后表内节点
// 被后续观察更新不得改动应答里已记下的地址。
func TestHandler_CloserPeersDetachedFromTable(t *testing.T) {
	h := newHandlerHarness(t)
	known := makeTailID(2)
	h.table.RecordObservation(known, []string{"10.0.0.2:4001"})

	resp := h.handler.Handle(NewFindValueRequest("q-1", makeTailID(1), nil, "foo"))
	require.Len(t, resp.CloserPeers, 1)
	require.Equal(t, known, resp.CloserPeers[0].ID)

	h.table.RecordObservation(known, []string{"10.0.0.3:4001"})

	assert.Equal(t, []string{"10.0.0.2:4001"}, resp.CloserPeers[0].Addrs)

	t.Log("✅ 应答中的节点地址是独立拷贝")
}

// TestHandler_SenderObserved 测试入站发送者进入路由表
func TestHandler_SenderObserved(t *testing.T) {
	h := newHandlerHarness(t)
	sender := makeTailID(1)

	h.handler.Handle(NewFindValueRequest("q-1", sender, []string{"10.0.0.1:4001"}, "foo"))

	node := h.table.Get(sender)
	require.NotNil(t, node)
	assert.Equal(t, []string{"10.0.0.1:4001"}, node.Addrs)

	t.Log("✅ 每个入站发送者都是一次路由表观察")
}

// TestHandler_StoreCachesRecord 测试 STORE 请求落入缓存
func TestHandler_StoreCachesRecord(t *testing.T) {
	h := newHandlerHarness(t)
	sender := makeTailID(1)
	record := types.Record{Key: "foo", Value: []byte("bar"), Publisher: sender}

	resp := h.handler.Handle(NewStoreRequest("q-1", sender, nil, record, h.handler.clk.Now()))

	require.Equal(t, MessageTypeStoreResponse, resp.Type)
	assert.True(t, resp.Success)

	got, ok := h.store.Get("foo")
	require.True(t, ok)
	assert.Equal(t, []byte("bar"), got.Value)
	// 复制来的记录不占自有容量
	assert.Equal(t, 0, h.store.Len())

	t.Log("✅ 对端记录进入缓存段并确认")
}

// TestHandler_StoreMalformed 测试畸形 STORE 被拒绝
func TestHandler_StoreMalformed(t *testing.T) {
	h := newHandlerHarness(t)

	resp := h.handler.Handle(&Message{
		Type:    MessageTypeStore,
		QueryID: "q-1",
		Sender:  makeTailID(1),
		Value:   []byte("bar"), // 缺键
	})

	require.Equal(t, MessageTypeStoreResponse, resp.Type)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)

	t.Log("✅ 畸形 STORE 请求返回失败应答")
}

// TestHandler_UnknownType 测试未知请求类型
func TestHandler_UnknownType(t *testing.T) {
	h := newHandlerHarness(t)

	resp := h.handler.Handle(&Message{Type: MessageType(99), QueryID: "q-1", Sender: makeTailID(1)})

	assert.False(t, resp.Success)
	assert.Equal(t, "q-1", resp.QueryID)

	t.Log("✅ 未知类型返回失败应答而非崩溃")
}
