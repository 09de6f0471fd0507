package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/iqbot/internal/domain"
	"github.com/betbot/iqbot/internal/protocol"
)

// fixedClock 固定的服务器时间源
type fixedClock struct {
	ms int64
}

func (c fixedClock) ServerTime() int64 { return c.ms }

func TestCandleHistory(t *testing.T) {
	gw := newStubGateway()
	gw.responses[protocol.NameCandles] = protocol.Envelope{
		Name: protocol.NameCandles,
		Msg: json.RawMessage(`{"candles":[
			{"id":1,"from":1700000000,"to":1700000060,"open":1.1,"close":1.2,"max":1.3,"min":1.0,"volume":42}
		]}`),
	}
	m := NewMarketService(gw, fixedClock{ms: 1700000100000}, time.Second)

	candles, err := m.CandleHistory(76, 10, 60)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, int64(1700000000), candles[0].From)

	sends := gw.framesByOuter(protocol.OuterSendMessage)
	require.Len(t, sends, 1)
	assert.Equal(t, "get-candles", sends[0].Req.Name)
	body := sends[0].Req.Body.(map[string]interface{})
	assert.Equal(t, int64(76), body["active_id"])
	assert.Equal(t, int64(1700000100), body["to"], "查询以服务器时间（秒）为基准")
}

func TestCandleHistory_RequiresServerTime(t *testing.T) {
	gw := newStubGateway()
	m := NewMarketService(gw, fixedClock{ms: 0}, time.Second)

	_, err := m.CandleHistory(76, 10, 60)
	assert.Error(t, err)
	assert.Empty(t, gw.sent, "未收到时间同步不应发出查询")
}

func TestUnderlyingAssets_FiltersSuspendedAndCaches(t *testing.T) {
	gw := newStubGateway()
	gw.responses[protocol.NameUnderlyingList] = protocol.Envelope{
		Name: protocol.NameUnderlyingList,
		Msg: json.RawMessage(`{"underlying":[
			{"name":"EURUSD","active_id":1,"is_suspended":false},
			{"name":"GBPUSD","active_id":2,"is_suspended":true},
			{"name":"AUDUSD","active_id":3,"is_suspended":false}
		]}`),
	}
	m := NewMarketService(gw, fixedClock{ms: 1}, time.Second)

	assets, err := m.UnderlyingAssets(domain.InstrumentDigitalOption)
	require.NoError(t, err)
	assert.Len(t, assets, 2)
	assert.NotContains(t, assets, "GBPUSD", "暂停交易的标的应被过滤")

	// 第二次命中缓存，不再发查询
	gw.sent = nil
	_, err = m.UnderlyingAssets(domain.InstrumentDigitalOption)
	require.NoError(t, err)
	assert.Empty(t, gw.sent)
}

func TestUnderlyingAssets_BinaryInitializationData(t *testing.T) {
	gw := newStubGateway()
	gw.responses[protocol.NameInitializationData] = protocol.Envelope{
		Name: protocol.NameInitializationData,
		Msg: json.RawMessage(`{
			"binary":{"actives":{"1":{"id":1,"ticker":"EURUSD","is_suspended":false}}},
			"turbo":{"actives":{"76":{"id":76,"ticker":"EURUSD-TURBO","is_suspended":false}}},
			"blitz":{"actives":{"99":{"id":99,"ticker":"GBPUSD","is_suspended":true}}}
		}`),
	}
	m := NewMarketService(gw, fixedClock{ms: 1}, time.Second)

	assets, err := m.UnderlyingAssets(domain.InstrumentBinaryOption)
	require.NoError(t, err)
	assert.Equal(t, int64(1), assets["EURUSD"])
	assert.Equal(t, int64(76), assets["EURUSD-TURBO"])
	assert.NotContains(t, assets, "GBPUSD")
}

func TestUnderlyingAssets_InvalidClass(t *testing.T) {
	gw := newStubGateway()
	m := NewMarketService(gw, fixedClock{ms: 1}, time.Second)

	_, err := m.UnderlyingAssets(domain.InstrumentClass("stocks"))
	assert.Error(t, err)
}

func TestActiveID(t *testing.T) {
	gw := newStubGateway()
	gw.responses[protocol.NameUnderlyingList] = protocol.Envelope{
		Name: protocol.NameUnderlyingList,
		Msg:  json.RawMessage(`{"items":[{"name":"BTCUSD","active_id":816,"is_suspended":false}]}`),
	}
	m := NewMarketService(gw, fixedClock{ms: 1}, time.Second)

	id, err := m.ActiveID(domain.InstrumentCrypto, "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, int64(816), id)

	_, err = m.ActiveID(domain.InstrumentCrypto, "DOGEUSD")
	assert.Error(t, err)
}
