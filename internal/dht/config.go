package dht

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	// KeySize 标识符位数（256 位）
	KeySize = 256

	// DefaultBucketSize K 桶大小（同时是复制因子 k）
	DefaultBucketSize = 20

	// DefaultAlpha 并发查询参数
	DefaultAlpha = 3

	// DefaultQuorum 查询法定数
	DefaultQuorum = 1

	// DefaultQueryTimeout 单次查询超时
	DefaultQueryTimeout = 10 * time.Second

	// DefaultStoreCapacity 自有记录容量上限
	DefaultStoreCapacity = 4096

	// DefaultCacheSize 网络缓存记录数量上限
	DefaultCacheSize = 1024

	// DefaultCacheTTL 缓存记录存活时间
	DefaultCacheTTL = 30 * time.Minute

	// DefaultSendTimeout 单次请求的网络超时
	DefaultSendTimeout = 5 * time.Second

	// DefaultTickInterval 调度循环的截止时间检查间隔
	DefaultTickInterval = 250 * time.Millisecond
)

// Config DHT 配置
type Config struct {
	// BucketSize K 桶大小，同时作为复制因子 k
	BucketSize int

	// Alpha 迭代查询的并发因子 α
	Alpha int

	// Quorum 查询成功所需的一致响应数
	Quorum int

	// QueryTimeout 单次查询的截止时间
	QueryTimeout time.Duration

	// StoreCapacity 自有记录容量上限（超出时 PUT 失败）
	StoreCapacity int

	// CacheSize 缓存记录数量上限
	CacheSize int

	// CacheTTL 缓存记录存活时间
	CacheTTL time.Duration

	// SendTimeout 单次网络请求超时
	SendTimeout time.Duration

	// TickInterval 截止时间检查间隔
	TickInterval time.Duration

	// Clock 时钟源（测试中可注入 mock）
	Clock clock.Clock
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		BucketSize:    DefaultBucketSize,
		Alpha:         DefaultAlpha,
		Quorum:        DefaultQuorum,
		QueryTimeout:  DefaultQueryTimeout,
		StoreCapacity: DefaultStoreCapacity,
		CacheSize:     DefaultCacheSize,
		CacheTTL:      DefaultCacheTTL,
		SendTimeout:   DefaultSendTimeout,
		TickInterval:  DefaultTickInterval,
		Clock:         clock.New(),
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.BucketSize <= 0 {
		return fmt.Errorf("%w: bucket size must be positive", ErrInvalidConfig)
	}
	if c.Alpha <= 0 {
		return fmt.Errorf("%w: alpha must be positive", ErrInvalidConfig)
	}
	if c.Quorum <= 0 {
		return fmt.Errorf("%w: quorum must be positive", ErrInvalidConfig)
	}
	if c.Quorum > c.BucketSize {
		return fmt.Errorf("%w: quorum exceeds replication factor", ErrInvalidConfig)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("%w: query timeout must be positive", ErrInvalidConfig)
	}
	if c.StoreCapacity <= 0 {
		return fmt.Errorf("%w: store capacity must be positive", ErrInvalidConfig)
	}
	if c.Clock == nil {
		return fmt.Errorf("%w: clock is nil", ErrInvalidConfig)
	}
	return nil
}

// ConfigOption 配置选项函数
type ConfigOption func(*Config)

// WithBucketSize 设置 K 桶大小
func WithBucketSize(k int) ConfigOption {
	return func(c *Config) { c.BucketSize = k }
}

// WithAlpha 设置并发因子
func WithAlpha(alpha int) ConfigOption {
	return func(c *Config) { c.Alpha = alpha }
}

// WithQuorum 设置法定数
func WithQuorum(quorum int) ConfigOption {
	return func(c *Config) { c.Quorum = quorum }
}

// WithQueryTimeout 设置查询超时
func WithQueryTimeout(d time.Duration) ConfigOption {
	return func(c *Config) { c.QueryTimeout = d }
}

// WithStoreCapacity 设置自有记录容量
func WithStoreCapacity(n int) ConfigOption {
	return func(c *Config) { c.StoreCapacity = n }
}

// WithClock 注入时钟源（测试用）
func WithClock(clk clock.Clock) ConfigOption {
	return func(c *Config) { c.Clock = clk }
}
