package lan

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-kadkv/config"
	"github.com/dep2p/go-kadkv/pkg/interfaces"
)

// Module 本地发现 Fx 模块
//
// 发现服务的启动与关闭由 DHT 统一管理，这里只负责构造。
// 配置中禁用发现时导出 nil，由消费方按未配置处理。
var Module = fx.Module("discovery_lan",
	fx.Provide(NewFromParams),
)

// Params 发现服务依赖参数
type Params struct {
	fx.In

	Host   interfaces.Host
	Config *config.Config
}

// Result 发现服务导出结果
type Result struct {
	fx.Out

	Discovery interfaces.Discovery
}

// NewFromParams 从 Fx 参数创建发现服务
func NewFromParams(p Params) (Result, error) {
	if !p.Config.Discovery.Enabled {
		return Result{Discovery: nil}, nil
	}

	cfg := DefaultConfig()
	cfg.Group = p.Config.Discovery.Group
	cfg.Interval = p.Config.Discovery.Interval

	d, err := New(p.Host, cfg)
	if err != nil {
		return Result{}, err
	}
	return Result{Discovery: d}, nil
}
