package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/iqbot/internal/domain"
	"github.com/betbot/iqbot/internal/protocol"
	"github.com/betbot/iqbot/pkg/cache"
)

var mlog = logrus.WithField("component", "market_service")

// TimeSource 提供交易所服务器时间（timeSync，毫秒）
type TimeSource interface {
	ServerTime() int64
}

// MarketService 市场目录：K 线历史与可交易标的列表
// 标的列表带 TTL 缓存，避免每次解析资产名都发起查询
type MarketService struct {
	gw      Gateway
	clock   TimeSource
	timeout time.Duration

	assets *cache.Cache[domain.InstrumentClass, map[string]int64]
}

// NewMarketService 创建市场目录服务
func NewMarketService(gw Gateway, clock TimeSource, timeout time.Duration) *MarketService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MarketService{
		gw:      gw,
		clock:   clock,
		timeout: timeout,
		assets:  cache.New[domain.InstrumentClass, map[string]int64](10 * time.Minute),
	}
}

// CandleHistory 查询历史 K 线
// timeframe 为单根时长（秒）；依赖 timeSync 提供的服务器时间
func (m *MarketService) CandleHistory(activeID int64, count, timeframe int) ([]domain.Candle, error) {
	serverTimeMs := m.clock.ServerTime()
	if serverTimeMs == 0 {
		return nil, fmt.Errorf("尚未收到服务器时间同步")
	}

	w := m.gw.Expect(protocol.NameCandles)
	// timeSync 是毫秒，get-candles 的 to 用秒
	req := protocol.GetCandles(activeID, timeframe, count, serverTimeMs/1000)
	if err := m.gw.Send(protocol.OuterSendMessage, req); err != nil {
		return nil, fmt.Errorf("发送 K 线查询失败: %w", err)
	}

	env, ok := w.Wait(m.timeout)
	if !ok {
		return nil, fmt.Errorf("等待 K 线响应超时（%v）", m.timeout)
	}
	return protocol.ParseCandles(env.Msg)
}

// UnderlyingAssets 查询指定产品类别的可交易标的（名称 -> active_id）
// 已暂停交易的标的被过滤；结果缓存 10 分钟
func (m *MarketService) UnderlyingAssets(class domain.InstrumentClass) (map[string]int64, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("不支持的产品类别: %s", class)
	}

	if cached, ok := m.assets.Get(class); ok {
		return cached, nil
	}

	req, err := protocol.UnderlyingList(class)
	if err != nil {
		return nil, err
	}

	w := m.gw.Expect(protocol.UnderlyingListResponseName(class))
	if err := m.gw.Send(protocol.OuterSendMessage, req); err != nil {
		return nil, fmt.Errorf("发送标的列表查询失败: %w", err)
	}

	env, ok := w.Wait(m.timeout)
	if !ok {
		return nil, fmt.Errorf("等待标的列表响应超时（%v）", m.timeout)
	}

	assets, err := parseUnderlying(class, env.Msg)
	if err != nil {
		return nil, err
	}

	m.assets.Set(class, assets, 0)
	mlog.Infof("已加载 %s 标的 %d 个", class, len(assets))
	return assets, nil
}

// ActiveID 按名称解析标的资产 ID
func (m *MarketService) ActiveID(class domain.InstrumentClass, name string) (int64, error) {
	assets, err := m.UnderlyingAssets(class)
	if err != nil {
		return 0, err
	}
	id, ok := assets[name]
	if !ok {
		return 0, fmt.Errorf("标的 %s 不存在于 %s 列表", name, class)
	}
	return id, nil
}

// underlyingItem 标的列表的单条记录（digital-option 的 underlying 与 marginal 的 items 同构）
type underlyingItem struct {
	Name        string `json:"name"`
	ActiveID    int64  `json:"active_id"`
	IsSuspended bool   `json:"is_suspended"`
}

// parseUnderlying 解析标的列表响应
// digital-option 用 underlying 字段，marginal 类别用 items 字段，
// binary-option 走 initialization-data（binary/blitz/turbo 三组 actives）
func parseUnderlying(class domain.InstrumentClass, msg json.RawMessage) (map[string]int64, error) {
	out := make(map[string]int64)

	if class == domain.InstrumentBinaryOption {
		var payload struct {
			Binary initGroup `json:"binary"`
			Blitz  initGroup `json:"blitz"`
			Turbo  initGroup `json:"turbo"`
		}
		if err := json.Unmarshal(msg, &payload); err != nil {
			return nil, fmt.Errorf("解析 initialization-data 失败: %w", err)
		}
		for _, g := range []initGroup{payload.Binary, payload.Blitz, payload.Turbo} {
			for _, a := range g.Actives {
				if a.IsSuspended {
					continue
				}
				out[a.Ticker] = a.ID
			}
		}
		return out, nil
	}

	var payload struct {
		Underlying []underlyingItem `json:"underlying"`
		Items      []underlyingItem `json:"items"`
	}
	if err := json.Unmarshal(msg, &payload); err != nil {
		return nil, fmt.Errorf("解析标的列表失败: %w", err)
	}
	items := payload.Underlying
	if class != domain.InstrumentDigitalOption {
		items = payload.Items
	}
	for _, item := range items {
		if item.IsSuspended {
			continue
		}
		out[item.Name] = item.ActiveID
	}
	return out, nil
}

// initGroup initialization-data 中的一组标的
type initGroup struct {
	Actives map[string]struct {
		ID          int64  `json:"id"`
		Ticker      string `json:"ticker"`
		IsSuspended bool   `json:"is_suspended"`
	} `json:"actives"`
}
