package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/betbot/iqbot/internal/domain"
)

// balanceEntry balances 响应中的单条账户记录
type balanceEntry struct {
	ID             int64           `json:"id"`
	Type           int             `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	TournamentID   int64           `json:"tournament_id"`
	TournamentName string          `json:"tournament_name"`
}

func (e balanceEntry) record() domain.AccountRecord {
	name := e.Currency
	if e.TournamentName != "" {
		name = e.TournamentName
	}
	return domain.AccountRecord{
		ID:             e.ID,
		Type:           domain.AccountType(e.Type),
		Name:           name,
		Amount:         e.Amount,
		Currency:       e.Currency,
		TournamentID:   e.TournamentID,
		TournamentName: e.TournamentName,
	}
}

// ParseBalances 解析 balances 响应为账户快照
func ParseBalances(msg json.RawMessage) (*domain.AccountSnapshot, error) {
	var entries []balanceEntry
	if err := json.Unmarshal(msg, &entries); err != nil {
		return nil, fmt.Errorf("解析 balances 响应失败: %w", err)
	}
	records := make([]domain.AccountRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.record())
	}
	return domain.NewAccountSnapshot(records), nil
}

// Profile profile 会话消息的有效载荷
// balances 携带按类型区分的账户 ID，是默认账户选择的首选来源
type Profile struct {
	UserID   int64          `json:"user_id"`
	Balances []balanceEntry `json:"balances"`
}

// ParseProfile 解析 profile 消息
func ParseProfile(msg json.RawMessage) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(msg, &p); err != nil {
		return nil, fmt.Errorf("解析 profile 消息失败: %w", err)
	}
	return &p, nil
}

// AccountIDByType 在会话载荷中查找指定类型的账户 ID
func (p *Profile) AccountIDByType(t domain.AccountType) (int64, bool) {
	if p == nil {
		return 0, false
	}
	for _, b := range p.Balances {
		if domain.AccountType(b.Type) == t {
			return b.ID, true
		}
	}
	return 0, false
}

// LastBalanceID 返回会话载荷中最后一条账户的 ID
func (p *Profile) LastBalanceID() (int64, bool) {
	if p == nil || len(p.Balances) == 0 {
		return 0, false
	}
	return p.Balances[len(p.Balances)-1].ID, true
}

// ParseHistoryPositions 解析 history-positions 响应
func ParseHistoryPositions(msg json.RawMessage) ([]domain.HistoryPosition, error) {
	var payload struct {
		Positions []domain.HistoryPosition `json:"positions"`
	}
	if err := json.Unmarshal(msg, &payload); err != nil {
		return nil, fmt.Errorf("解析 history-positions 响应失败: %w", err)
	}
	return payload.Positions, nil
}

// ParseCandles 解析 candles 响应
func ParseCandles(msg json.RawMessage) ([]domain.Candle, error) {
	var payload struct {
		Candles []domain.Candle `json:"candles"`
	}
	if err := json.Unmarshal(msg, &payload); err != nil {
		return nil, fmt.Errorf("解析 candles 响应失败: %w", err)
	}
	return payload.Candles, nil
}

// ParseTimeSync 解析 timeSync 心跳（服务器时间，毫秒）
func ParseTimeSync(msg json.RawMessage) (int64, error) {
	var ts int64
	if err := json.Unmarshal(msg, &ts); err != nil {
		return 0, fmt.Errorf("解析 timeSync 消息失败: %w", err)
	}
	return ts, nil
}
