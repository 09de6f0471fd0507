package iqws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/betbot/iqbot/internal/protocol"
)

var log = logrus.WithField("component", "iqws")

// Client 管理与交易所的 WebSocket 连接
// 发送为即发即弃，响应按消息名分发给等待者；断线后自动重连并恢复认证与订阅
type Client struct {
	// 连接相关
	conn      *websocket.Conn
	connMu    sync.Mutex
	config    *Config
	running   bool
	runningMu sync.RWMutex

	// 等待者注册表：消息名 -> 等待通道
	waiters  map[string][]*pending
	waiterMu sync.Mutex

	// 订阅管理：subscribeMessage 发送过的请求（重连后恢复）
	subscriptions map[string]protocol.Request
	subMu         sync.RWMutex

	// 认证（重连后重发）
	ssid   string
	ssidMu sync.RWMutex

	// 服务器时间（timeSync，毫秒）
	serverTimeMs int64
	timeMu       sync.RWMutex

	// 消息通道（等待者之外的观察者，如持仓变更事件）
	msgChan chan protocol.Envelope
	errChan chan error

	// 生命周期管理
	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	doneCh chan struct{}

	// 重连状态
	reconnectAttempts int
	reconnectMu       sync.Mutex
}

// NewClient 创建新的 WebSocket 客户端
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.URL == "" {
		config.URL = defaultWSURL
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:        config,
		waiters:       make(map[string][]*pending),
		subscriptions: make(map[string]protocol.Request),
		msgChan:       make(chan protocol.Envelope, config.MessageBufferSize),
		errChan:       make(chan error, config.ErrorBufferSize),
		ctx:           ctx,
		cancel:        cancel,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start 连接到 WebSocket 并开始监听
func (c *Client) Start(ctx context.Context) error {
	c.runningMu.Lock()
	if c.running {
		c.runningMu.Unlock()
		return fmt.Errorf("WebSocket 客户端已在运行")
	}
	c.running = true
	c.runningMu.Unlock()

	// 使用传入的 context 或使用内部 context
	if ctx != nil {
		c.ctx = ctx
	}

	if err := c.connect(); err != nil {
		c.runningMu.Lock()
		c.running = false
		c.runningMu.Unlock()
		return fmt.Errorf("初始连接失败: %w", err)
	}

	go c.readLoop()

	log.Infof("已启动连接到 %s", c.config.URL)
	return nil
}

// Stop 优雅地关闭 WebSocket 连接
func (c *Client) Stop() {
	c.runningMu.Lock()
	if !c.running {
		c.runningMu.Unlock()
		return
	}
	c.running = false
	c.runningMu.Unlock()

	c.cancel()
	close(c.stopCh)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	select {
	case <-c.doneCh:
	case <-time.After(5 * time.Second):
		log.Warn("关闭超时")
	}

	log.Info("已停止")
}

// IsRunning 检查客户端是否正在运行
func (c *Client) IsRunning() bool {
	c.runningMu.RLock()
	defer c.runningMu.RUnlock()
	return c.running
}

// Authenticate 发送 ssid 认证帧并记录会话（重连后自动重发）
func (c *Client) Authenticate(ssid string) error {
	c.ssidMu.Lock()
	c.ssid = ssid
	c.ssidMu.Unlock()

	env := protocol.Envelope{Name: protocol.OuterSSID}
	raw, err := json.Marshal(ssid)
	if err != nil {
		return err
	}
	env.Msg = raw
	return c.writeEnvelope(env)
}

// Send 发送业务请求（即发即弃，无投递确认）
// outerName 为外层帧名（sendMessage/subscribeMessage/unsubscribeMessage）
func (c *Client) Send(outerName string, req protocol.Request) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	env := protocol.Envelope{
		Name:      outerName,
		Msg:       raw,
		RequestID: uuid.NewString(),
	}

	if err := c.writeEnvelope(env); err != nil {
		return err
	}

	// 跟踪订阅状态，重连后恢复
	switch outerName {
	case protocol.OuterSubscribe:
		c.subMu.Lock()
		c.subscriptions[string(raw)] = req
		c.subMu.Unlock()
	case protocol.OuterUnsubscribe:
		// 订阅与退订的请求体相同，按序列化内容配对删除
		c.subMu.Lock()
		delete(c.subscriptions, string(raw))
		c.subMu.Unlock()
	}

	return nil
}

// Expect 注册一个按名等待者；必须在发送请求之前调用，避免响应先到达
func (c *Client) Expect(messageName string) Response {
	p := &pending{
		name: messageName,
		ch:   make(chan protocol.Envelope, 1),
	}
	c.waiterMu.Lock()
	c.waiters[messageName] = append(c.waiters[messageName], p)
	c.waiterMu.Unlock()
	return p
}

// ServerTime 返回最近一次 timeSync 的服务器时间（毫秒），未同步时为 0
func (c *Client) ServerTime() int64 {
	c.timeMu.RLock()
	defer c.timeMu.RUnlock()
	return c.serverTimeMs
}

// SubscriptionCount 返回活跃订阅数量
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// Messages 返回消息通道（等待者之外的消息，如 position-changed 事件）
func (c *Client) Messages() <-chan protocol.Envelope {
	return c.msgChan
}

// Errors 返回错误通道
func (c *Client) Errors() <-chan error {
	return c.errChan
}

// writeEnvelope 序列化并写入一帧
func (c *Client) writeEnvelope(env protocol.Envelope) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("未连接")
	}
	return c.conn.WriteJSON(env)
}

// connect 建立 WebSocket 连接
func (c *Client) connect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		c.conn.Close()
	}

	dialer := websocket.Dialer{
		ReadBufferSize:   c.config.ReadBufferSize,
		WriteBufferSize:  c.config.WriteBufferSize,
		HandshakeTimeout: c.config.HandshakeTimeout,
	}

	// 配置代理（如果提供）
	if c.config.ProxyURL != "" {
		proxyURL, err := url.Parse(c.config.ProxyURL)
		if err != nil {
			return fmt.Errorf("无效的代理 URL: %w", err)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
		log.Infof("使用代理: %s", c.config.ProxyURL)
	}

	headers := make(http.Header)
	headers.Set("User-Agent", "iqbot-client/1.0")

	// 尝试连接（带重试）
	var conn *websocket.Conn
	var err error
	for i := 0; i < defaultMaxRetries; i++ {
		conn, _, err = dialer.Dial(c.config.URL, headers)
		if err == nil {
			break
		}
		if i < defaultMaxRetries-1 {
			log.Warnf("连接尝试 %d/%d 失败: %v, 重试中...", i+1, defaultMaxRetries, err)
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}

	if err != nil {
		return fmt.Errorf("连接失败: %w", err)
	}

	c.conn = conn

	c.reconnectMu.Lock()
	c.reconnectAttempts = 0
	c.reconnectMu.Unlock()

	return nil
}

// readLoop 读取循环，持续从 WebSocket 读取消息
func (c *Client) readLoop() {
	defer close(c.doneCh)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if c.config.ReconnectEnabled {
				c.reconnect()
			}
			// 连接为 nil 时等待一段时间再重试，避免忙等待
			time.Sleep(1 * time.Second)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			// 连接出错，立即清理连接，避免重复读取失败的连接
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("连接正常关闭")
				return
			}
			log.Warnf("读取错误: %v, 重连中...", err)
			if c.config.ReconnectEnabled {
				c.reconnect()
			} else {
				time.Sleep(1 * time.Second)
			}
			continue
		}

		c.handleMessage(message)
	}
}

// reconnect 重连逻辑（带指数退避）
// 重连成功后重发认证并恢复全部订阅
func (c *Client) reconnect() {
	c.reconnectMu.Lock()
	c.reconnectAttempts++
	attempts := c.reconnectAttempts
	c.reconnectMu.Unlock()

	if attempts > c.config.MaxReconnectAttempts {
		select {
		case c.errChan <- fmt.Errorf("达到最大重连次数 (%d)", c.config.MaxReconnectAttempts):
		default:
		}
		return
	}

	delay := c.config.ReconnectDelay * time.Duration(attempts)
	if delay > c.config.MaxReconnectDelay {
		delay = c.config.MaxReconnectDelay
	}

	log.Infof("%v 后重连 (尝试 %d/%d)...", delay, attempts, c.config.MaxReconnectAttempts)

	select {
	case <-c.ctx.Done():
		return
	case <-c.stopCh:
		return
	case <-time.After(delay):
	}

	if err := c.connect(); err != nil {
		log.Warnf("重连失败: %v", err)
		return
	}

	// 重发认证
	c.ssidMu.RLock()
	ssid := c.ssid
	c.ssidMu.RUnlock()
	if ssid != "" {
		if err := c.Authenticate(ssid); err != nil {
			log.Warnf("重连后认证失败: %v", err)
		}
	}

	// 恢复全部订阅
	if err := c.resubscribe(); err != nil {
		log.Warnf("重新订阅失败: %v", err)
	}
}

// resubscribe 重新发送所有订阅请求（重连后使用）
func (c *Client) resubscribe() error {
	c.subMu.RLock()
	reqs := make([]protocol.Request, 0, len(c.subscriptions))
	for _, req := range c.subscriptions {
		reqs = append(reqs, req)
	}
	c.subMu.RUnlock()

	for _, req := range reqs {
		raw, err := json.Marshal(req)
		if err != nil {
			return err
		}
		env := protocol.Envelope{
			Name:      protocol.OuterSubscribe,
			Msg:       raw,
			RequestID: uuid.NewString(),
		}
		if err := c.writeEnvelope(env); err != nil {
			return fmt.Errorf("恢复订阅失败: %w", err)
		}
	}

	if len(reqs) > 0 {
		log.Infof("已恢复 %d 个订阅", len(reqs))
	}
	return nil
}

// handleMessage 处理接收到的消息：更新服务器时间、分发给等待者、转发给观察者
func (c *Client) handleMessage(data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		preview := string(data)
		if len(preview) > 100 {
			preview = preview[:100] + "..."
		}
		select {
		case c.errChan <- fmt.Errorf("解析消息失败，数据: %s", preview):
		default:
		}
		return
	}

	if env.Name == protocol.NameTimeSync {
		if ts, err := protocol.ParseTimeSync(env.Msg); err == nil {
			c.timeMu.Lock()
			c.serverTimeMs = ts
			c.timeMu.Unlock()
		}
		return
	}

	// 分发给该名称的全部等待者（一次性，投递后移除）
	c.waiterMu.Lock()
	pendings := c.waiters[env.Name]
	if len(pendings) > 0 {
		delete(c.waiters, env.Name)
	}
	c.waiterMu.Unlock()

	for _, p := range pendings {
		select {
		case p.ch <- env:
		default:
		}
	}

	if len(pendings) > 0 {
		return
	}

	// 没有等待者的消息进入观察者通道（如 position-changed）
	select {
	case c.msgChan <- env:
	default:
		select {
		case c.errChan <- fmt.Errorf("消息通道已满，丢弃 %s 消息", env.Name):
		default:
		}
	}
}
