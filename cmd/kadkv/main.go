// Package main 提供 kadkv 命令行入口
//
// 从标准输入逐行读取 GET / PUT 命令，提交给 DHT 节点执行，
// 查询结果写到标准输出，错误与日志写到标准错误。
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dep2p/go-kadkv"
	"github.com/dep2p/go-kadkv/internal/dht"
	"github.com/dep2p/go-kadkv/pkg/lib/log"
)

var logger = log.Logger("kadkv/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
var (
	listenAddr  = flag.String("listen", "0.0.0.0:0", "监听地址（端口 0 = 随机端口）")
	quorum      = flag.Int("quorum", 1, "GET 查询法定数")
	noDiscovery = flag.Bool("no-discovery", false, "禁用本地组播发现")
	seed        = flag.String("seed", "", "身份种子（相同种子派生相同节点 ID，默认随机）")
	logLevel    = flag.String("log-level", "warn", "日志级别 (debug/info/warn/error)")
	showVersion = flag.Bool("version", false, "显示版本信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(kadkv.VersionInfo())
		return nil
	}

	// 日志输出到标准错误，避免与查询结果混在一起
	log.SetOutputWithLevel(os.Stderr, log.ParseLevel(*logLevel))

	opts := []kadkv.Option{
		kadkv.WithListenAddr(*listenAddr),
		kadkv.WithQuorum(*quorum),
		kadkv.WithDiscovery(!*noDiscovery),
		kadkv.WithWriters(os.Stdout, os.Stderr),
	}
	if *seed != "" {
		opts = append(opts, kadkv.WithIdentitySeed([]byte(*seed)))
	}

	node, err := kadkv.New(opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := node.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = node.Close() }()

	fmt.Fprintf(os.Stderr, "node %s listening on %v\n", node.ID(), node.Addrs())

	// 标准输入馈送协程
	go feedStdin(node)

	// 等待调度循环结束或收到退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("收到退出信号", "signal", sig.String())
		return nil
	case err := <-node.Done():
		if err != nil && !errors.Is(err, dht.ErrInputClosed) {
			return err
		}
		return nil
	}
}

// feedStdin 将标准输入逐行解析为命令并提交
func feedStdin(node *kadkv.Node) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		cmd, err := dht.ParseCommand(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, dht.Usage)
			continue
		}
		node.Submit(cmd)
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("标准输入读取失败", "err", err)
	}

	// 输入结束，通知调度器
	node.CloseCommands()
}
