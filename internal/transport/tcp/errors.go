package tcp

import "errors"

// 预定义错误
var (
	// ErrClosed 传输已关闭
	ErrClosed = errors.New("tcp: transport closed")

	// ErrAlreadyListening 已在监听
	ErrAlreadyListening = errors.New("tcp: already listening")

	// ErrListenFailed 监听失败
	ErrListenFailed = errors.New("tcp: listen failed")

	// ErrNoAddresses 目标节点没有已知地址
	ErrNoAddresses = errors.New("tcp: no addresses for peer")

	// ErrDialFailed 拨号失败
	ErrDialFailed = errors.New("tcp: dial failed")
)
