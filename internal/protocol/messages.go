// Package protocol 定义与交易所 WebSocket 通道交互的消息格式
// 外层帧携带 name/msg/request_id，业务请求作为内层消息通过 sendMessage 发送，
// 响应只按消息名（name）关联，不存在请求/响应配对原语
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/betbot/iqbot/internal/domain"
)

// 外层帧名称
const (
	OuterSendMessage = "sendMessage"
	OuterSubscribe   = "subscribeMessage"
	OuterUnsubscribe = "unsubscribeMessage"
	OuterSSID        = "ssid"
)

// 响应消息名称（按 name 路由）
const (
	NameProfile              = "profile"
	NameBalances             = "balances"
	NameTimeSync             = "timeSync"
	NameTrainingBalanceReset = "training-balance-reset"
	NameHistoryPositions     = "history-positions"
	NameCandles              = "candles"
	NameUnderlyingList       = "underlying-list"
	NameInitializationData   = "initialization-data"
	NamePositionChanged      = "position-changed"
)

// 账户类型编码与锦标赛状态（internal-billing.get-balances 的查询参数）
var (
	balanceTypeIDs         = []int{1, 4, 2, 6} // real, demo, tournament, other
	tournamentsStatusesIDs = []int{3, 2}       // active, completed
)

// Envelope WebSocket 外层帧
type Envelope struct {
	Name      string          `json:"name"`
	Msg       json.RawMessage `json:"msg,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Status    int             `json:"status,omitempty"`
}

// Request 内层业务请求
type Request struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Body    interface{} `json:"body,omitempty"`
	Params  interface{} `json:"params,omitempty"`
}

// GetBalances 查询全量账户余额（实盘/模拟/锦标赛/其他）
func GetBalances() Request {
	return Request{
		Name:    "internal-billing.get-balances",
		Version: "1.0",
		Body: map[string]interface{}{
			"types_ids":                balanceTypeIDs,
			"tournaments_statuses_ids": tournamentsStatusesIDs,
		},
	}
}

// ResetTrainingBalance 重置模拟账户余额
func ResetTrainingBalance(amount int64, userBalanceID int64) Request {
	return Request{
		Name:    "internal-billing.reset-training-balance",
		Version: "4.0",
		Body: map[string]interface{}{
			"amount":          amount,
			"user_balance_id": userBalanceID,
		},
	}
}

// PositionChanged 持仓变更订阅（随 subscribeMessage/unsubscribeMessage 发送）
// 每个产品类别一条，按 user_balance_id 路由
func PositionChanged(class domain.InstrumentClass, accountID int64) Request {
	return Request{
		Name:    "portfolio.position-changed",
		Version: "2.0",
		Params: map[string]interface{}{
			"routingFilters": map[string]interface{}{
				"instrument_type": string(class),
				"user_balance_id": accountID,
			},
		},
	}
}

// HistoryPositionsByPage 分页查询历史仓位
func HistoryPositionsByPage(instrumentTypes []string, accountID int64, limit, offset int) Request {
	return Request{
		Name:    "portfolio.get-history-positions",
		Version: "2.0",
		Body: map[string]interface{}{
			"instrument_types": instrumentTypes,
			"limit":            limit,
			"offset":           offset,
			"user_balance_id":  accountID,
		},
	}
}

// HistoryPositionsByTime 按时间区间查询历史仓位（start/end 为秒级时间戳）
func HistoryPositionsByTime(instrumentTypes []string, accountID int64, start, end int64) Request {
	return Request{
		Name:    "portfolio.get-history-positions",
		Version: "2.0",
		Body: map[string]interface{}{
			"instrument_types": instrumentTypes,
			"start":            start,
			"end":              end,
			"user_balance_id":  accountID,
		},
	}
}

// GetCandles 查询历史 K 线
// to 为服务器时间（timeSync），size 为单根时长（秒）
func GetCandles(activeID int64, size, count int, to int64) Request {
	return Request{
		Name:    "get-candles",
		Version: "2.0",
		Body: map[string]interface{}{
			"active_id":           activeID,
			"size":                size,
			"count":               count,
			"to":                  to,
			"only_closed":         true,
			"split_normalization": true,
		},
	}
}

// UnderlyingList 查询指定产品类别的可交易标的列表
// 不同类别走不同的消息名和版本
func UnderlyingList(class domain.InstrumentClass) (Request, error) {
	switch class {
	case domain.InstrumentDigitalOption:
		return Request{
			Name:    "digital-option-instruments.get-underlying-list",
			Version: "3.0",
			Body:    map[string]interface{}{"filter_suspended": true},
		}, nil
	case domain.InstrumentBinaryOption:
		return Request{
			Name:    "get-initialization-data",
			Version: "4.0",
			Body:    map[string]interface{}{},
		}, nil
	case domain.InstrumentForex, domain.InstrumentCFD, domain.InstrumentCrypto:
		return Request{
			Name:    fmt.Sprintf("marginal-%s-instruments.get-underlying-list", class),
			Version: "1.0",
			Body:    map[string]interface{}{},
		}, nil
	default:
		return Request{}, fmt.Errorf("不支持的产品类别: %s", class)
	}
}

// UnderlyingListResponseName 返回该产品类别对应的响应消息名
func UnderlyingListResponseName(class domain.InstrumentClass) string {
	if class == domain.InstrumentBinaryOption {
		return NameInitializationData
	}
	return NameUnderlyingList
}
