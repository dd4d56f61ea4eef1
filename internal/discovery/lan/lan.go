// Package lan 提供基于 UDP 组播的本地网络发现
//
// 在同一广播域内周期性公告本节点的 (NodeID, 地址) 并监听其他
// 节点的公告，以事件流形式产出发现结果，供发现桥馈入路由表。
package lan

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-kadkv/pkg/interfaces"
	"github.com/dep2p/go-kadkv/pkg/lib/log"
	"github.com/dep2p/go-kadkv/pkg/types"
)

var logger = log.Logger("discovery/lan")

// maxAnnouncementSize 公告报文大小上限
const maxAnnouncementSize = 8192

// Announcement 公告报文
type Announcement struct {
	// ID 节点 ID
	ID types.NodeID `json:"id"`

	// Addrs 可达地址列表
	Addrs []string `json:"addrs"`
}

// Discovery UDP 组播发现服务
type Discovery struct {
	host   interfaces.Host
	config *Config

	conn   *net.UDPConn
	group  *net.UDPAddr
	events chan types.PeerInfo

	ctx       context.Context
	ctxCancel context.CancelFunc
	started   atomic.Bool
	closed    atomic.Bool
	wg        sync.WaitGroup
}

var _ interfaces.Discovery = (*Discovery)(nil)

// New 创建发现服务
func New(host interfaces.Host, config *Config) (*Discovery, error) {
	if host == nil {
		return nil, ErrNilHost
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Discovery{
		host:      host,
		config:    config,
		events:    make(chan types.PeerInfo, 64),
		ctx:       ctx,
		ctxCancel: cancel,
	}, nil
}

// Start 启动公告与监听
func (d *Discovery) Start(_ context.Context) error {
	if d.closed.Load() {
		return ErrAlreadyClosed
	}
	if !d.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	group, err := net.ResolveUDPAddr("udp4", d.config.Group)
	if err != nil {
		return NewLANError("start", err, "resolve group address")
	}
	d.group = group

	conn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		return NewLANError("start", err, "join multicast group")
	}
	_ = conn.SetReadBuffer(maxAnnouncementSize)
	d.conn = conn

	d.wg.Add(2)
	go d.announceLoop()
	go d.readLoop()

	logger.Info("本地发现已启动", "group", d.config.Group, "interval", d.config.Interval)
	return nil
}

// Events 返回发现事件流
func (d *Discovery) Events() <-chan types.PeerInfo {
	return d.events
}

// announceLoop 周期性公告本节点
func (d *Discovery) announceLoop() {
	defer d.wg.Done()

	ticker := d.config.Clock.Ticker(d.config.Interval)
	defer ticker.Stop()

	d.announce()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.announce()
		}
	}
}

// announce 发送一次公告
func (d *Discovery) announce() {
	ann := Announcement{ID: d.host.ID(), Addrs: d.host.Addrs()}
	data, err := json.Marshal(&ann)
	if err != nil {
		logger.Warn("公告编码失败", "err", err)
		return
	}
	if _, err := d.conn.WriteToUDP(data, d.group); err != nil {
		logger.Debug("公告发送失败", "err", err)
	}
}

// readLoop 监听其他节点的公告
func (d *Discovery) readLoop() {
	defer d.wg.Done()

	buf := make([]byte, maxAnnouncementSize)
	for {
		n, src, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			if d.closed.Load() {
				return
			}
			logger.Debug("公告读取失败", "err", err)
			return
		}

		var ann Announcement
		if err := json.Unmarshal(buf[:n], &ann); err != nil {
			logger.Debug("丢弃无法解析的公告", "src", src.String())
			continue
		}
		if ann.ID.IsEmpty() || ann.ID == d.host.ID() {
			continue
		}

		peer := types.PeerInfo{ID: ann.ID, Addrs: ann.Addrs}
		select {
		case d.events <- peer:
		default:
			// 消费方落后时丢弃，下个公告周期会再次发现
		}
	}
}

// Close 关闭发现服务
func (d *Discovery) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	d.ctxCancel()
	if d.conn != nil {
		_ = d.conn.Close()
	}
	d.wg.Wait()
	close(d.events)
	logger.Info("本地发现已关闭")
	return nil
}
