package dht

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/multiformats/go-varint"

	"github.com/dep2p/go-kadkv/pkg/types"
)

// ============================================================================
//                              协议定义
// ============================================================================

// ProtocolID DHT 协议 ID
const ProtocolID = "/kadkv/dht/1.0.0"

// MaxMessageLength 最大消息长度 (1 MB)
const MaxMessageLength = 1 << 20

// ============================================================================
//                              消息类型
// ============================================================================

// MessageType 消息类型
type MessageType uint8

const (
	// MessageTypeFindValue FIND_VALUE 请求
	MessageTypeFindValue MessageType = iota + 1
	// MessageTypeFindValueResponse FIND_VALUE 响应
	MessageTypeFindValueResponse

	// MessageTypeStore STORE 请求
	MessageTypeStore
	// MessageTypeStoreResponse STORE 响应
	MessageTypeStoreResponse
)

// String 返回消息类型的字符串表示
func (m MessageType) String() string {
	switch m {
	case MessageTypeFindValue:
		return "FIND_VALUE"
	case MessageTypeFindValueResponse:
		return "FIND_VALUE_RESPONSE"
	case MessageTypeStore:
		return "STORE"
	case MessageTypeStoreResponse:
		return "STORE_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// ============================================================================
//                              消息结构
// ============================================================================

// Message DHT 消息
//
// 响应携带发起方的查询 ID、成功标志，以及记录或更近节点列表之一。
type Message struct {
	// Type 消息类型
	Type MessageType `json:"type"`

	// QueryID 查询 ID（不透明，用于匹配请求和响应）
	QueryID string `json:"query_id"`

	// Sender 发送者节点 ID
	Sender types.NodeID `json:"sender"`

	// SenderAddrs 发送者地址列表
	SenderAddrs []string `json:"sender_addrs,omitempty"`

	// Key 键（用于 FIND_VALUE/STORE）
	Key string `json:"key,omitempty"`

	// Value 值（用于 STORE 请求与 FIND_VALUE 响应）
	Value []byte `json:"value,omitempty"`

	// Publisher 记录发布者（可选）
	Publisher types.NodeID `json:"publisher,omitempty"`

	// TTL 记录剩余存活时间（秒，0 表示不过期）
	TTL uint32 `json:"ttl,omitempty"`

	// CloserPeers 更近的节点列表（用于 FIND_VALUE 响应）
	CloserPeers []PeerRecord `json:"closer_peers,omitempty"`

	// Success 操作是否成功
	Success bool `json:"success,omitempty"`

	// Error 错误信息
	Error string `json:"error,omitempty"`
}

// PeerRecord 节点记录（用于消息传输）
type PeerRecord struct {
	// ID 节点 ID
	ID types.NodeID `json:"id"`

	// Addrs 地址列表
	Addrs []string `json:"addrs"`
}

// HasValue 检查 FIND_VALUE 响应是否携带记录
func (m *Message) HasValue() bool {
	return len(m.Value) > 0
}

// Record 从消息还原记录
//
// 消息未携带可用记录时返回 ErrMalformedResponse。
func (m *Message) Record(now time.Time) (types.Record, error) {
	if m.Key == "" || len(m.Value) == 0 {
		return types.Record{}, ErrMalformedResponse
	}
	record := types.Record{
		Key:       m.Key,
		Value:     m.Value,
		Publisher: m.Publisher,
	}
	if m.TTL > 0 {
		record.Expires = now.Add(time.Duration(m.TTL) * time.Second)
	}
	return record, nil
}

// ============================================================================
//                              请求构造器
// ============================================================================

// NewFindValueRequest 创建 FIND_VALUE 请求
func NewFindValueRequest(queryID string, sender types.NodeID, senderAddrs []string, key string) *Message {
	return &Message{
		Type:        MessageTypeFindValue,
		QueryID:     queryID,
		Sender:      sender,
		SenderAddrs: senderAddrs,
		Key:         key,
	}
}

// NewFindValueResponse 创建 FIND_VALUE 响应（找到值）
func NewFindValueResponse(queryID string, sender types.NodeID, record types.Record, now time.Time) *Message {
	msg := &Message{
		Type:      MessageTypeFindValueResponse,
		QueryID:   queryID,
		Sender:    sender,
		Key:       record.Key,
		Value:     record.Value,
		Publisher: record.Publisher,
		Success:   true,
	}
	if !record.Expires.IsZero() {
		if remaining := record.Expires.Sub(now); remaining > 0 {
			msg.TTL = uint32(remaining / time.Second)
		}
	}
	return msg
}

// NewFindValueResponseWithPeers 创建 FIND_VALUE 响应（返回更近节点）
func NewFindValueResponseWithPeers(queryID string, sender types.NodeID, closerPeers []PeerRecord) *Message {
	return &Message{
		Type:        MessageTypeFindValueResponse,
		QueryID:     queryID,
		Sender:      sender,
		CloserPeers: closerPeers,
		Success:     true,
	}
}

// NewStoreRequest 创建 STORE 请求
func NewStoreRequest(queryID string, sender types.NodeID, senderAddrs []string, record types.Record, now time.Time) *Message {
	msg := &Message{
		Type:        MessageTypeStore,
		QueryID:     queryID,
		Sender:      sender,
		SenderAddrs: senderAddrs,
		Key:         record.Key,
		Value:       record.Value,
		Publisher:   record.Publisher,
	}
	if !record.Expires.IsZero() {
		if remaining := record.Expires.Sub(now); remaining > 0 {
			msg.TTL = uint32(remaining / time.Second)
		}
	}
	return msg
}

// NewStoreResponse 创建 STORE 响应
func NewStoreResponse(queryID string, sender types.NodeID, success bool, errMsg string) *Message {
	return &Message{
		Type:    MessageTypeStoreResponse,
		QueryID: queryID,
		Sender:  sender,
		Success: success,
		Error:   errMsg,
	}
}

// ============================================================================
//                              消息编解码
// ============================================================================

// Encode 编码消息为字节数组
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage 从字节数组解码消息
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &msg, nil
}

// WriteMessage 向流写入一条带长度前缀的消息
//
// 帧格式：uvarint 长度 + JSON 消息体。
func WriteMessage(w io.Writer, msg *Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	if len(data) > MaxMessageLength {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), MaxMessageLength)
	}

	header := make([]byte, varint.UvarintSize(uint64(len(data))))
	varint.PutUvarint(header, uint64(len(data)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// byteReader 逐字节读取适配器
//
// 读长度前缀时不能预读消息体，因此不能用带缓冲的 Reader。
type byteReader struct {
	r io.Reader
}

func (b byteReader) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(b.r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadMessage 从流读取一条带长度前缀的消息
func ReadMessage(r io.Reader) (*Message, error) {
	length, err := varint.ReadUvarint(byteReader{r})
	if err != nil {
		return nil, err
	}
	if length == 0 || length > MaxMessageLength {
		return nil, fmt.Errorf("%w: %d", ErrMessageTooLarge, length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return DecodeMessage(data)
}
