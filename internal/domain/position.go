package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryPosition 历史仓位记录（portfolio.get-history-positions 返回的单条）
type HistoryPosition struct {
	ID             int64           `json:"id"`
	ActiveID       int64           `json:"active_id"`       // 标的资产 ID
	InstrumentType string          `json:"instrument_type"` // 产品类别
	Status         string          `json:"status"`
	CloseReason    string          `json:"close_reason"`
	Invest         decimal.Decimal `json:"invest"`       // 投入金额
	PnlNet         decimal.Decimal `json:"pnl_net"`      // 净盈亏
	CloseProfit    decimal.Decimal `json:"close_profit"` // 平仓收益
	OpenTimeMs     int64           `json:"open_time"`    // 开仓时间（毫秒）
	CloseTimeMs    int64           `json:"close_time"`   // 平仓时间（毫秒）
}

// OpenTime 开仓时间
func (p HistoryPosition) OpenTime() time.Time {
	return time.UnixMilli(p.OpenTimeMs)
}

// CloseTime 平仓时间
func (p HistoryPosition) CloseTime() time.Time {
	return time.UnixMilli(p.CloseTimeMs)
}

// PositionSummary 导出用的仓位摘要（只保留分析需要的字段，时间转为可读格式）
type PositionSummary struct {
	PnlNet      decimal.Decimal `json:"pnl_net"`
	CloseProfit decimal.Decimal `json:"close_profit"`
	CloseReason string          `json:"close_reason"`
	Status      string          `json:"status"`
	Invest      decimal.Decimal `json:"invest"`
	Source      string          `json:"source"` // 产品类别
	ActiveID    int64           `json:"active_id"`
	OpenTime    string          `json:"open_time,omitempty"`
	CloseTime   string          `json:"close_time,omitempty"`
}

// Summary 生成仓位摘要
func (p HistoryPosition) Summary() PositionSummary {
	s := PositionSummary{
		PnlNet:      p.PnlNet,
		CloseProfit: p.CloseProfit,
		CloseReason: p.CloseReason,
		Status:      p.Status,
		Invest:      p.Invest,
		Source:      p.InstrumentType,
		ActiveID:    p.ActiveID,
	}
	if p.OpenTimeMs > 0 {
		s.OpenTime = p.OpenTime().Format("2006-01-02 15:04:05")
	}
	if p.CloseTimeMs > 0 {
		s.CloseTime = p.CloseTime().Format("2006-01-02 15:04:05")
	}
	return s
}
