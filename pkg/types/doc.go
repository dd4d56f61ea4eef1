// Package types 定义 go-kadkv 的公共数据类型
//
// 包含节点标识（NodeID）、键值记录（Record）与发现产出（PeerInfo）。
// 本包不依赖任何内部实现，可被所有层引用。
package types
