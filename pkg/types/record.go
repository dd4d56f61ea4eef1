package types

import "time"

// Record 键值记录
//
// key 一经创建不可变；value 可被携带更高（或相同）法定数的较新 PUT 替换。
type Record struct {
	// Key 记录键（不透明字节串，以字符串承载）
	Key string `json:"key"`

	// Value 记录值
	Value []byte `json:"value"`

	// Publisher 发布者节点 ID（可选，零值表示未知）
	Publisher NodeID `json:"publisher,omitempty"`

	// Expires 过期时间（可选，零值表示不过期）
	//
	// 本系统只携带该时间戳，不主动清除过期的自有记录。
	Expires time.Time `json:"expires,omitempty"`
}

// Expired 检查记录在给定时刻是否已过期
func (r Record) Expired(now time.Time) bool {
	return !r.Expires.IsZero() && now.After(r.Expires)
}

// Clone 返回记录的深拷贝（避免 value 别名）
func (r Record) Clone() Record {
	out := r
	out.Value = make([]byte, len(r.Value))
	copy(out.Value, r.Value)
	return out
}
