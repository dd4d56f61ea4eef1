package dht

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-kadkv/pkg/interfaces"
	"github.com/dep2p/go-kadkv/pkg/lib/log"
)

var logger = log.Logger("dht")

// DHT 分布式哈希表节点核心
//
// 组装路由表、本地存储、查询引擎、发现桥与事件调度器，
// 对外暴露命令提交入口。数据流：
//
//	命令接口 → 查询引擎 → (经调度器) 传输 → 远端节点
//	       → 响应 → 调度器 → 查询引擎 → 本地存储 / 标准输出
//	发现协作者 → 调度器 → 发现桥 → 路由表
type DHT struct {
	config    *Config
	host      interfaces.Host
	discovery interfaces.Discovery

	table      *RoutingTable
	store      *RecordStore
	engine     *Engine
	bridge     *Bridge
	handler    *Handler
	network    *NetworkAdapter
	dispatcher *Dispatcher

	commands chan Command
	events   chan Event
	result   chan error

	ctx       context.Context
	ctxCancel context.CancelFunc
	started   atomic.Bool
	closed    atomic.Bool
	wg        sync.WaitGroup
}

// New 创建 DHT 实例
//
// out/errOut 为命令结果与失败行的输出目标。
func New(host interfaces.Host, discovery interfaces.Discovery, out, errOut io.Writer, opts ...ConfigOption) (*DHT, error) {
	if host == nil {
		return nil, ErrNilHost
	}

	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &DHT{
		config:    config,
		host:      host,
		discovery: discovery,
		commands:  make(chan Command, 64),
		events:    make(chan Event, 256),
		result:    make(chan error, 1),
		ctx:       ctx,
		ctxCancel: cancel,
	}

	d.table = NewRoutingTable(host.ID(), config.BucketSize, config.Clock.Now)
	d.store = NewRecordStore(config.StoreCapacity, config.CacheSize, config.CacheTTL)
	d.bridge = NewBridge(d.table)
	d.handler = NewHandler(config, d.table, d.store, d.bridge)
	d.network = NewNetworkAdapter(host, d.events, config.SendTimeout)
	d.engine = NewEngine(config, d.table, d.store, d.network, host.Addrs)

	ci := NewCommandInterface(d.engine, out, errOut)
	d.dispatcher = NewDispatcher(config, d.engine, d.bridge, d.handler, ci, d.commands, d.events)

	return d, nil
}

// Start 启动 DHT
//
// 注册入站流处理、启动发现馈送与调度循环。
func (d *DHT) Start(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	d.host.SetStreamHandler(d.network.HandleStream)

	if d.discovery != nil {
		if err := d.discovery.Start(ctx); err != nil {
			return fmt.Errorf("start discovery: %w", err)
		}
		d.wg.Add(1)
		go d.feedDiscovery()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.result <- d.dispatcher.Run(d.ctx)
	}()

	logger.Info("DHT 已启动",
		"local", d.host.ID().Short(),
		"alpha", d.config.Alpha,
		"k", d.config.BucketSize,
		"quorum", d.config.Quorum)
	return nil
}

// feedDiscovery 把发现事件流馈入调度循环
func (d *DHT) feedDiscovery() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case peer, ok := <-d.discovery.Events():
			if !ok {
				return
			}
			select {
			case d.events <- DiscoveryEvent{Peer: peer}:
			case <-d.ctx.Done():
				return
			}
		}
	}
}

// Submit 提交一条本地命令
//
// 命令进入调度循环的命令源，结果由命令接口打印。
func (d *DHT) Submit(cmd Command) {
	d.commands <- cmd
}

// CloseCommands 关闭命令源
//
// 本地输入耗尽（EOF）时调用；调度循环随之以 ErrInputClosed 退出。
func (d *DHT) CloseCommands() {
	close(d.commands)
}

// Done 返回调度循环的结果通道
func (d *DHT) Done() <-chan error {
	return d.result
}

// RoutingTableSize 返回路由表节点数（诊断用）
func (d *DHT) RoutingTableSize() int {
	// 注意：只能在调度循环停止后或测试中安全调用
	return d.table.Size()
}

// Close 关闭 DHT
func (d *DHT) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	d.ctxCancel()
	d.network.Close()
	if d.discovery != nil {
		_ = d.discovery.Close()
	}
	d.wg.Wait()
	logger.Info("DHT 已关闭", "local", d.host.ID().Short())
	return nil
}
