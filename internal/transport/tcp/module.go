package tcp

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-kadkv/config"
	"github.com/dep2p/go-kadkv/pkg/interfaces"
	"github.com/dep2p/go-kadkv/pkg/types"
)

// Module TCP 传输 Fx 模块
var Module = fx.Module("transport_tcp",
	fx.Provide(NewFromParams),
	fx.Invoke(registerLifecycle),
)

// Params 传输依赖参数
type Params struct {
	fx.In

	ID     types.NodeID
	Config *config.Config
}

// Result 传输导出结果
type Result struct {
	fx.Out

	Transport *Transport
	Host      interfaces.Host
}

// NewFromParams 从 Fx 参数创建传输
func NewFromParams(p Params) Result {
	t := New(p.ID)
	return Result{Transport: t, Host: t}
}

// registerLifecycle 注册传输生命周期
func registerLifecycle(lc fx.Lifecycle, t *Transport, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := t.Listen(ctx, cfg.Node.ListenAddr)
			return err
		},
		OnStop: func(ctx context.Context) error {
			return t.Close()
		},
	})
}
