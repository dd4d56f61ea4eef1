package dht

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dep2p/go-kadkv/pkg/types"
)

// RecordStore 本地键值存储
//
// 自有记录（本地 PUT 产生）是本节点的权威事实，数量受容量上限约束；
// 缓存记录（来自对端 STORE 请求或查询结果）放入带 TTL 的 LRU，
// 满时自动淘汰，不构成写入失败。
//
// 存储由调度循环独占持有，方法不加锁也不挂起。
type RecordStore struct {
	owned    map[string]types.Record
	cached   *expirable.LRU[string, types.Record]
	capacity int
}

// NewRecordStore 创建本地存储
func NewRecordStore(capacity, cacheSize int, cacheTTL time.Duration) *RecordStore {
	return &RecordStore{
		owned:    make(map[string]types.Record),
		cached:   expirable.NewLRU[string, types.Record](cacheSize, nil, cacheTTL),
		capacity: capacity,
	}
}

// Put 写入自有记录
//
// 按键插入或替换，无条件作为本地事实。容量满且键不存在时返回 ErrStoreFull。
func (s *RecordStore) Put(record types.Record) error {
	if _, exists := s.owned[record.Key]; !exists && len(s.owned) >= s.capacity {
		return ErrStoreFull
	}
	s.owned[record.Key] = record.Clone()
	return nil
}

// PutCached 写入缓存记录（来自网络）
func (s *RecordStore) PutCached(record types.Record) {
	s.cached.Add(record.Key, record.Clone())
}

// Get 读取本地记录
//
// 自有记录优先于缓存。本地未命中是快速路径上的 miss，
// 与网络 GET 的失败是两种不同情形。
func (s *RecordStore) Get(key string) (types.Record, bool) {
	if record, ok := s.owned[key]; ok {
		return record.Clone(), true
	}
	if record, ok := s.cached.Get(key); ok {
		return record.Clone(), true
	}
	return types.Record{}, false
}

// Delete 删除记录（自有与缓存）
func (s *RecordStore) Delete(key string) {
	delete(s.owned, key)
	s.cached.Remove(key)
}

// Len 返回自有记录数量
func (s *RecordStore) Len() int {
	return len(s.owned)
}
