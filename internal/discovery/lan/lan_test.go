package lan

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-kadkv/pkg/interfaces"
	"github.com/dep2p/go-kadkv/pkg/types"
)

// makeTestID 构造指定首字节的测试 NodeID
func makeTestID(b byte) types.NodeID {
	var id types.NodeID
	id[0] = b
	return id
}

// staticHost 最小 Host 桩
type staticHost struct {
	id types.NodeID
}

var _ interfaces.Host = (*staticHost)(nil)

func (h *staticHost) ID() types.NodeID { return h.id }
func (h *staticHost) Addrs() []string  { return []string{"127.0.0.1:4001"} }
func (h *staticHost) Listen(context.Context, string) (string, error) {
	return "", nil
}
func (h *staticHost) NewStream(context.Context, types.NodeID, []string) (interfaces.Stream, error) {
	return nil, nil
}
func (h *staticHost) SetStreamHandler(interfaces.StreamHandler) {}
func (h *staticHost) Close() error                              { return nil }

// TestConfig_Validate 测试配置验证
func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"缺端口", func(c *Config) { c.Group = "239.255.71.84" }},
		{"非组播地址", func(c *Config) { c.Group = "10.0.0.1:7484" }},
		{"无法解析", func(c *Config) { c.Group = "not-an-ip:7484" }},
		{"间隔非正", func(c *Config) { c.Interval = 0 }},
		{"时钟为空", func(c *Config) { c.Clock = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Log("✅ 配置验证覆盖非法输入")
}

// TestAnnouncement_JSONRoundTrip 测试公告报文编解码
func TestAnnouncement_JSONRoundTrip(t *testing.T) {
	id, err := types.RandomNodeID()
	require.NoError(t, err)

	ann := Announcement{ID: id, Addrs: []string{"10.0.0.1:4001", "192.168.1.2:4001"}}
	data, err := json.Marshal(&ann)
	require.NoError(t, err)

	var decoded Announcement
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ann.ID, decoded.ID)
	assert.Equal(t, ann.Addrs, decoded.Addrs)

	t.Log("✅ 公告报文编解码往返一致")
}

// TestNew_Validation 测试构造参数验证
func TestNew_Validation(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilHost)

	host := &staticHost{id: makeTestID(0x01)}
	bad := DefaultConfig()
	bad.Interval = -time.Second
	_, err = New(host, bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	// nil 配置回退到默认值
	d, err := New(host, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultGroup, d.config.Group)

	t.Log("✅ 构造参数验证正确")
}

// TestDiscovery_CloseBeforeStart 测试未启动即关闭
func TestDiscovery_CloseBeforeStart(t *testing.T) {
	d, err := New(&staticHost{id: makeTestID(0x01)}, nil)
	require.NoError(t, err)

	require.NoError(t, d.Close())
	assert.NoError(t, d.Close())

	// 关闭后事件通道已关闭
	_, open := <-d.Events()
	assert.False(t, open)

	// 关闭后拒绝启动
	assert.ErrorIs(t, d.Start(context.Background()), ErrAlreadyClosed)

	t.Log("✅ 关闭幂等且关闭后拒绝启动")
}
