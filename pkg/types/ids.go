package types

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"

	"github.com/mr-tron/base58"
)

// NodeID 节点标识符（256 位）
//
// 由节点身份信息经 SHA-256 派生，同时作为 XOR 距离计算的输入。
type NodeID [32]byte

// EmptyNodeID 空节点 ID
var EmptyNodeID NodeID

// ErrInvalidNodeID 无效的节点 ID
var ErrInvalidNodeID = errors.New("types: invalid node ID")

// DeriveNodeID 从身份信息派生 NodeID
//
// 对输入做 SHA-256，得到固定长度的节点标识。
func DeriveNodeID(identity []byte) NodeID {
	return NodeID(sha256.Sum256(identity))
}

// RandomNodeID 生成随机 NodeID
//
// 从加密随机源取 32 字节种子后派生，用于无持久身份的节点。
func RandomNodeID() (NodeID, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return EmptyNodeID, err
	}
	return DeriveNodeID(seed), nil
}

// NodeIDFromBytes 从字节切片构造 NodeID
func NodeIDFromBytes(b []byte) (NodeID, error) {
	if len(b) != len(NodeID{}) {
		return EmptyNodeID, ErrInvalidNodeID
	}
	var id NodeID
	copy(id[:], b)
	return id, nil
}

// ParseNodeID 解析 Base58 字符串为 NodeID
func ParseNodeID(s string) (NodeID, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyNodeID, ErrInvalidNodeID
	}
	return NodeIDFromBytes(b)
}

// String 返回 NodeID 的 Base58 字符串表示
func (id NodeID) String() string {
	return base58.Encode(id[:])
}

// Short 返回截断的可读表示（用于日志）
func (id NodeID) Short() string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// IsEmpty 检查是否为空 ID
func (id NodeID) IsEmpty() bool {
	return id == EmptyNodeID
}

// Bytes 返回字节表示的拷贝
func (id NodeID) Bytes() []byte {
	b := make([]byte, len(id))
	copy(b, id[:])
	return b
}

// MarshalText 实现 encoding.TextMarshaler（JSON 中表示为 Base58 字符串）
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (id *NodeID) UnmarshalText(text []byte) error {
	parsed, err := ParseNodeID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
