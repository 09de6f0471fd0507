package domain

import "time"

// Candle K 线数据（get-candles 返回的单根）
// 交易所字段 max/min 对应最高/最低价
type Candle struct {
	ID     int64   `json:"id"`
	From   int64   `json:"from"` // 开始时间（秒）
	To     int64   `json:"to"`   // 结束时间（秒）
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	High   float64 `json:"max"`
	Low    float64 `json:"min"`
	Volume float64 `json:"volume"`
}

// StartTime K 线开始时间
func (c Candle) StartTime() time.Time {
	return time.Unix(c.From, 0)
}

// EndTime K 线结束时间
func (c Candle) EndTime() time.Time {
	return time.Unix(c.To, 0)
}
