package kadkv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-kadkv/pkg/types"
)

// TestNew_Defaults 测试默认构造
func TestNew_Defaults(t *testing.T) {
	node, err := New()
	require.NoError(t, err)

	assert.False(t, node.ID().IsEmpty())

	// 未启动时关闭是空操作
	assert.NoError(t, node.Close())

	t.Log("✅ 默认构造成功且未启动可安全关闭")
}

// TestNew_IdentitySeed 测试种子身份派生
func TestNew_IdentitySeed(t *testing.T) {
	a, err := New(WithIdentitySeed([]byte("seed")))
	require.NoError(t, err)
	b, err := New(WithIdentitySeed([]byte("seed")))
	require.NoError(t, err)

	assert.Equal(t, a.ID(), b.ID())
	assert.Equal(t, types.DeriveNodeID([]byte("seed")), a.ID())

	_, err = New(WithIdentitySeed(nil))
	assert.Error(t, err)

	t.Log("✅ 相同种子派生相同节点身份")
}

// TestNew_RejectsInvalidOptions 测试非法选项被拒绝
func TestNew_RejectsInvalidOptions(t *testing.T) {
	_, err := New(WithQuorum(0))
	assert.Error(t, err)

	_, err = New(WithListenAddr(""))
	assert.Error(t, err)

	_, err = New(WithConfig(nil))
	assert.Error(t, err)

	_, err = New(WithWriters(nil, nil))
	assert.Error(t, err)

	t.Log("✅ 非法选项在构造期被拒绝")
}
