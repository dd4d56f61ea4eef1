package lan

import (
	"fmt"
	"net"
	"time"

	"github.com/benbjohnson/clock"
)

// 默认配置值
const (
	// DefaultGroup 默认组播组地址
	DefaultGroup = "239.255.71.84:7484"

	// DefaultInterval 默认公告间隔
	DefaultInterval = 10 * time.Second
)

// Config 发现服务配置
type Config struct {
	// Group 组播组地址（host:port）
	Group string

	// Interval 公告间隔
	Interval time.Duration

	// Clock 时钟源，测试时可注入模拟时钟
	Clock clock.Clock
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Group:    DefaultGroup,
		Interval: DefaultInterval,
		Clock:    clock.New(),
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	host, _, err := net.SplitHostPort(c.Group)
	if err != nil {
		return fmt.Errorf("group address %q: %v", c.Group, err)
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsMulticast() {
		return fmt.Errorf("group address %q is not a multicast address", c.Group)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	}
	if c.Clock == nil {
		return fmt.Errorf("clock is nil")
	}
	return nil
}
