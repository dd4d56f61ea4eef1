package dht

import (
	"crypto/sha256"

	"github.com/dep2p/go-kadkv/pkg/types"
)

// KeyID 将记录键映射到 NodeID 空间
//
// 键与节点 ID 在同一 256 位空间内比较距离。
func KeyID(key string) types.NodeID {
	return types.NodeID(sha256.Sum256([]byte(key)))
}

// XORDistance 计算两个 NodeID 的 XOR 距离
//
// 返回距离的字节表示（大端序），数值越小越近。
func XORDistance(a, b types.NodeID) []byte {
	distance := make([]byte, len(a))
	for i := range a {
		distance[i] = a[i] ^ b[i]
	}
	return distance
}

// CompareDistance 比较 a 和 b 到 target 的距离
//
// 返回：
//
//	-1 如果 dist(a, target) < dist(b, target)
//	 0 如果 dist(a, target) == dist(b, target)
//	 1 如果 dist(a, target) > dist(b, target)
func CompareDistance(a, b, target types.NodeID) int {
	for i := range target {
		da := a[i] ^ target[i]
		db := b[i] ^ target[i]
		if da < db {
			return -1
		}
		if da > db {
			return 1
		}
	}
	return 0
}

// CommonPrefixLen 计算两个 NodeID 的共同前缀长度（按位计数）
func CommonPrefixLen(a, b types.NodeID) int {
	zeroBits := 0
	for i := range a {
		d := a[i] ^ b[i]
		if d == 0 {
			zeroBits += 8
			continue
		}
		for mask := byte(0x80); mask > 0; mask >>= 1 {
			if d&mask != 0 {
				return zeroBits
			}
			zeroBits++
		}
	}
	return zeroBits
}

// BucketIndex 计算 remote 相对 local 应落入的 K 桶索引
//
// 索引即共同前缀长度；共同前缀越长距离越近。
// 与 local 完全相同的 ID 不应进入路由表，若出现则归入最后一个桶。
func BucketIndex(local, remote types.NodeID) int {
	cpl := CommonPrefixLen(local, remote)
	if cpl >= KeySize {
		return KeySize - 1
	}
	return cpl
}
