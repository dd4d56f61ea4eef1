package dht

import (
	"context"
	"io"

	"go.uber.org/fx"

	"github.com/dep2p/go-kadkv/config"
	"github.com/dep2p/go-kadkv/pkg/interfaces"
)

// Module DHT Fx 模块
var Module = fx.Module("dht",
	fx.Provide(NewFromParams),
	fx.Invoke(registerLifecycle),
)

// Params DHT 依赖参数
type Params struct {
	fx.In

	Host      interfaces.Host
	Discovery interfaces.Discovery `optional:"true"`
	Config    *config.Config
	Out       io.Writer `name:"stdout"`
	ErrOut    io.Writer `name:"stderr"`
}

// Result DHT 导出结果
type Result struct {
	fx.Out

	DHT *DHT
}

// NewFromParams 从 Fx 参数创建 DHT
func NewFromParams(p Params) (Result, error) {
	opts := []ConfigOption{
		WithBucketSize(p.Config.DHT.BucketSize),
		WithAlpha(p.Config.DHT.Alpha),
		WithQuorum(p.Config.DHT.Quorum),
		WithQueryTimeout(p.Config.DHT.QueryTimeout),
		WithStoreCapacity(p.Config.DHT.StoreCapacity),
	}
	d, err := New(p.Host, p.Discovery, p.Out, p.ErrOut, opts...)
	if err != nil {
		return Result{}, err
	}
	return Result{DHT: d}, nil
}

// registerLifecycle 注册 DHT 生命周期
func registerLifecycle(lc fx.Lifecycle, d *DHT) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return d.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return d.Close()
		},
	})
}
