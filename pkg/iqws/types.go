// Package iqws 提供交易所 WebSocket 通道客户端
// 请求为即发即弃（fire-and-forget），响应只按消息名关联；
// 等待响应通过 Expect/Wait 完成，超时由调用方给定
package iqws

import (
	"time"

	"github.com/betbot/iqbot/internal/protocol"
)

const (
	// WebSocket 端点
	defaultWSURL = "wss://ws.iqoption.com/echo/websocket"

	// 重连设置
	defaultReconnectDelay    = 2 * time.Second
	defaultMaxReconnectDelay = 30 * time.Second

	// 消息通道缓冲区大小
	defaultMessageBufferSize = 1000
	defaultErrorBufferSize   = 100

	// 连接重试设置
	defaultMaxRetries = 3
)

// Config 是 WebSocket 客户端配置
type Config struct {
	// 端点与代理
	URL      string // WebSocket URL（为空使用默认端点）
	ProxyURL string // 代理 URL（可选）

	// 重连设置
	ReconnectEnabled     bool          // 是否启用自动重连
	ReconnectDelay       time.Duration // 重连延迟
	MaxReconnectDelay    time.Duration // 最大重连延迟
	MaxReconnectAttempts int           // 最大重连尝试次数

	// 缓冲区设置
	MessageBufferSize int // 消息通道缓冲区大小
	ErrorBufferSize   int // 错误通道缓冲区大小

	// 连接设置
	ReadBufferSize   int           // 读缓冲区大小
	WriteBufferSize  int           // 写缓冲区大小
	HandshakeTimeout time.Duration // 握手超时时间
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		URL:                  defaultWSURL,
		ReconnectEnabled:     true,
		ReconnectDelay:       defaultReconnectDelay,
		MaxReconnectDelay:    defaultMaxReconnectDelay,
		MaxReconnectAttempts: 10,
		MessageBufferSize:    defaultMessageBufferSize,
		ErrorBufferSize:      defaultErrorBufferSize,
		ReadBufferSize:       4096,
		WriteBufferSize:      4096,
		HandshakeTimeout:     15 * time.Second,
	}
}

// Response 一次按名等待的响应
// Wait 阻塞直到对应名称的消息到达或超时；超时返回 false
type Response interface {
	Wait(timeout time.Duration) (protocol.Envelope, bool)
}

// pending Response 的内部实现
type pending struct {
	name string
	ch   chan protocol.Envelope
}

// Wait 等待响应到达或超时
func (p *pending) Wait(timeout time.Duration) (protocol.Envelope, bool) {
	select {
	case env := <-p.ch:
		return env, true
	case <-time.After(timeout):
		return protocol.Envelope{}, false
	}
}
