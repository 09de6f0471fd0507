package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AccountType 账户类型（对应交易所 internal-billing 的 type 编码）
type AccountType int

const (
	AccountTypeReal       AccountType = 1 // 实盘账户
	AccountTypeTournament AccountType = 2 // 锦标赛账户
	AccountTypeDemo       AccountType = 4 // 模拟账户
	AccountTypeOther      AccountType = 6 // 其他（CFD 等）
)

// String 返回账户类型的小写名称
func (t AccountType) String() string {
	switch t {
	case AccountTypeReal:
		return "real"
	case AccountTypeTournament:
		return "tournament"
	case AccountTypeDemo:
		return "demo"
	default:
		return "other"
	}
}

// ParseAccountType 解析用户输入的账户类型（大小写不敏感）
// 只接受 real/demo，其他输入返回 false
func ParseAccountType(s string) (AccountType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "real":
		return AccountTypeReal, true
	case "demo":
		return AccountTypeDemo, true
	default:
		return 0, false
	}
}

// AccountRecord 单个账户记录（不可变）
type AccountRecord struct {
	ID             int64           // 账户 ID（user_balance_id）
	Type           AccountType     // 账户类型
	Name           string          // 显示名称（锦标赛账户为 tournament_name）
	Amount         decimal.Decimal // 余额
	Currency       string          // 币种（可选）
	TournamentID   int64           // 锦标赛 ID（仅锦标赛账户）
	TournamentName string          // 锦标赛名称（仅锦标赛账户）
}

// AccountSnapshot 某一时刻的全量账户快照
// 每次查询整体替换，不做增量合并；快照内账户 ID 唯一
type AccountSnapshot struct {
	Records []AccountRecord
	byID    map[int64]int
}

// NewAccountSnapshot 构建快照并建立 ID 索引
// 同一 ID 出现多次时保留第一条（快照不变量：ID 唯一）
func NewAccountSnapshot(records []AccountRecord) *AccountSnapshot {
	s := &AccountSnapshot{
		Records: records,
		byID:    make(map[int64]int, len(records)),
	}
	for i, r := range records {
		if _, ok := s.byID[r.ID]; !ok {
			s.byID[r.ID] = i
		}
	}
	return s
}

// FindByID 按账户 ID 查找
func (s *AccountSnapshot) FindByID(id int64) (AccountRecord, bool) {
	if s == nil {
		return AccountRecord{}, false
	}
	i, ok := s.byID[id]
	if !ok {
		return AccountRecord{}, false
	}
	return s.Records[i], true
}

// FirstByType 返回快照中第一个匹配类型的账户
func (s *AccountSnapshot) FirstByType(t AccountType) (AccountRecord, bool) {
	if s == nil {
		return AccountRecord{}, false
	}
	for _, r := range s.Records {
		if r.Type == t {
			return r, true
		}
	}
	return AccountRecord{}, false
}

// Tournaments 返回快照中所有锦标赛账户的只读投影
func (s *AccountSnapshot) Tournaments() []TournamentAccount {
	if s == nil {
		return nil
	}
	out := make([]TournamentAccount, 0)
	for _, r := range s.Records {
		if r.Type != AccountTypeTournament {
			continue
		}
		name := r.TournamentName
		if name == "" {
			name = r.Name
		}
		out = append(out, TournamentAccount{
			ID:      r.ID,
			Name:    name,
			Balance: r.Amount,
		})
	}
	return out
}

// TournamentAccount 锦标赛账户只读投影（由快照派生，不单独变更）
type TournamentAccount struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}
