// Package dht 实现 go-kadkv 的 DHT 引擎核心
//
// 这是系统中唯一需要真正算法与并发设计的部分，其余均为薄胶水。
//
// # 架构
//
//	┌──────────────────────────────────────────────────────┐
//	│  命令接口 (command.go)                                │
//	│  GET/PUT 命令 → 查询引擎操作，打印结果                │
//	├──────────────────────────────────────────────────────┤
//	│  事件调度器 (dispatcher.go)          单 goroutine     │
//	│  轮询命令源与网络/发现事件源，逐周期双双排空          │
//	├──────────────┬──────────────┬────────────────────────┤
//	│  查询引擎     │  发现桥      │  入站处理器             │
//	│  (engine.go,  │  (bridge.go) │  (handler.go)          │
//	│   query.go)   │              │                        │
//	├──────────────┴──────────────┴────────────────────────┤
//	│  路由表 (routing.go, xor.go)   本地存储 (store.go)    │
//	└──────────────────────────────────────────────────────┘
//	         │ 网络适配器 (network.go, protocol.go)
//	         ▼
//	   传输协作者 (pkg/interfaces.Host)
//
// # 并发模型
//
// 单线程协作式事件循环：恰好一个逻辑控制流驱动调度器，任意两个
// 处理函数不会并发运行，因此路由表、本地存储与在途查询集合无需
// 加锁。挂起只发生在循环的轮询点；处理函数体一律运行到完成。
// 多个查询可以同时在途，α 的含义即每个查询最多 α 个在途请求；
// 请求的网络往返由适配器 goroutine 承担，结果以事件回流。
//
// # 所有权
//
// 查询引擎独占全部在途查询；路由表由节点独占，查询引擎只读引用，
// 唯一的变更入口是发现桥；本地存储只通过 PUT 完成或本地播种发生
// 变更。
package dht
