// Package config 提供 go-kadkv 统一配置
package config

import (
	"errors"
	"fmt"
	"time"
)

// 预定义错误
var (
	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("config: invalid config")
)

// Config 统一配置
type Config struct {
	// Node 节点配置
	Node NodeConfig

	// DHT DHT 引擎配置
	DHT DHTConfig

	// Discovery 本地发现配置
	Discovery DiscoveryConfig

	// Log 日志配置
	Log LogConfig
}

// NodeConfig 节点配置
type NodeConfig struct {
	// ListenAddr 传输层监听地址（host:port，端口 0 为随机）
	ListenAddr string
}

// DHTConfig DHT 引擎配置
type DHTConfig struct {
	// BucketSize K 桶大小（复制因子 k）
	BucketSize int

	// Alpha 并发因子 α
	Alpha int

	// Quorum 查询法定数
	Quorum int

	// QueryTimeout 查询超时
	QueryTimeout time.Duration

	// StoreCapacity 自有记录容量上限
	StoreCapacity int
}

// DiscoveryConfig 本地发现配置
type DiscoveryConfig struct {
	// Enabled 是否启用本地发现
	Enabled bool

	// Group 组播组地址（host:port）
	Group string

	// Interval 公告间隔
	Interval time.Duration
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别（debug/info/warn/error）
	Level string
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			ListenAddr: "0.0.0.0:0",
		},
		DHT: DHTConfig{
			BucketSize:    20,
			Alpha:         3,
			Quorum:        1,
			QueryTimeout:  10 * time.Second,
			StoreCapacity: 4096,
		},
		Discovery: DiscoveryConfig{
			Enabled:  true,
			Group:    "239.255.71.84:7484",
			Interval: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Node.ListenAddr == "" {
		return fmt.Errorf("%w: listen address is empty", ErrInvalidConfig)
	}
	if c.DHT.BucketSize <= 0 || c.DHT.Alpha <= 0 || c.DHT.Quorum <= 0 {
		return fmt.Errorf("%w: dht parameters must be positive", ErrInvalidConfig)
	}
	if c.DHT.Quorum > c.DHT.BucketSize {
		return fmt.Errorf("%w: quorum exceeds replication factor", ErrInvalidConfig)
	}
	if c.DHT.QueryTimeout <= 0 {
		return fmt.Errorf("%w: query timeout must be positive", ErrInvalidConfig)
	}
	if c.Discovery.Enabled {
		if c.Discovery.Group == "" {
			return fmt.Errorf("%w: discovery group is empty", ErrInvalidConfig)
		}
		if c.Discovery.Interval <= 0 {
			return fmt.Errorf("%w: discovery interval must be positive", ErrInvalidConfig)
		}
	}
	return nil
}
