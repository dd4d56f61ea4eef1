// Package kadkv 提供单节点 Kademlia DHT 键值参与者
//
// go-kadkv 实现一个可加入 Kademlia 网络的键值节点：
// 维护 XOR 距离路由表，通过迭代查询执行 GET / PUT 操作，
// 并借助局域网组播发现自动补充路由表。
//
// # 核心概念
//
// go-kadkv 围绕三个核心概念构建：
//
//   - Node: DHT 节点，用户交互的主入口
//   - Command: 行式 GET / PUT 命令，由调度器串行执行
//   - Discovery: 本地发现事件流，经发现桥馈入路由表
//
// # 快速开始
//
//	import "github.com/dep2p/go-kadkv"
//
//	// 1. 创建并启动节点
//	node, err := kadkv.New(
//	    kadkv.WithListenAddr("0.0.0.0:4001"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := node.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	// 2. 提交命令
//	node.Submit(dht.Command{Kind: dht.CommandPut, Key: "foo", Value: []byte("bar")})
//	node.Submit(dht.Command{Kind: dht.CommandGet, Key: "foo"})
//
// # 架构层次
//
//	┌─────────────────────────────────────────────────────────┐
//	│  入口层                                                  │
//	│  ┌─────────┐                                             │
//	│  │  Node   │  kadkv.New() / node.Start()                │
//	│  └─────────┘                                             │
//	├─────────────────────────────────────────────────────────┤
//	│  DHT 层（单线程事件循环）                                │
//	│  ┌──────────┐ ┌────────┐ ┌───────┐ ┌────────┐           │
//	│  │Dispatcher│ │ Engine │ │ Table │ │ Store  │           │
//	│  └──────────┘ └────────┘ └───────┘ └────────┘           │
//	├─────────────────────────────────────────────────────────┤
//	│  协作者层                                                │
//	│  ┌───────────────┐  ┌───────────────┐                    │
//	│  │ transport/tcp │  │ discovery/lan │                    │
//	│  └───────────────┘  └───────────────┘                    │
//	└─────────────────────────────────────────────────────────┘
//
// 所有 DHT 状态（路由表、记录存储、在途查询）由调度器协程
// 独占，命令与网络事件经通道汇入，核心数据结构无锁。
package kadkv
