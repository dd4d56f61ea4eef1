package lan

import (
	"errors"
	"fmt"
)

// 预定义错误
var (
	// ErrNilHost 传输主机为空
	ErrNilHost = errors.New("lan: host is nil")

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("lan: invalid config")

	// ErrAlreadyStarted 服务已启动
	ErrAlreadyStarted = errors.New("lan: already started")

	// ErrAlreadyClosed 服务已关闭
	ErrAlreadyClosed = errors.New("lan: already closed")
)

// LANError 发现服务错误
type LANError struct {
	// Op 出错的操作
	Op string

	// Err 底层错误
	Err error

	// Message 附加说明
	Message string
}

// Error 实现 error 接口
func (e *LANError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("lan: %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("lan: %s: %v", e.Op, e.Err)
}

// Unwrap 返回底层错误
func (e *LANError) Unwrap() error {
	return e.Err
}

// NewLANError 创建发现服务错误
func NewLANError(op string, err error, message string) *LANError {
	return &LANError{Op: op, Err: err, Message: message}
}
