package controlplane

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/betbot/iqbot/internal/domain"
	"github.com/betbot/iqbot/internal/protocol"
	"github.com/betbot/iqbot/internal/services"
	"github.com/betbot/iqbot/pkg/iqws"
)

type fakeResponse struct {
	env protocol.Envelope
	ok  bool
}

func (r fakeResponse) Wait(time.Duration) (protocol.Envelope, bool) {
	return r.env, r.ok
}

// fakeGateway 按消息名返回预设响应
type fakeGateway struct {
	responses map[string]json.RawMessage
}

func (g *fakeGateway) Send(outerName string, req protocol.Request) error {
	return nil
}

func (g *fakeGateway) Expect(messageName string) iqws.Response {
	msg, ok := g.responses[messageName]
	return fakeResponse{
		env: protocol.Envelope{Name: messageName, Msg: msg, Status: 2000},
		ok:  ok,
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *services.AccountService) {
	t.Helper()

	gw := &fakeGateway{responses: map[string]json.RawMessage{
		protocol.NameBalances: json.RawMessage(`[
			{"id":1,"type":1,"amount":100.5,"currency":"USD"},
			{"id":2,"type":4,"amount":10000,"currency":"USD"},
			{"id":3,"type":2,"amount":50,"currency":"USD","tournament_id":9,"tournament_name":"Weekly Cup"}
		]`),
		protocol.NameTrainingBalanceReset: json.RawMessage(`{"success":true}`),
	}}

	accounts := services.NewAccountService(gw, services.Config{
		DefaultAccountType: domain.AccountTypeDemo,
		ResponseTimeout:    time.Second,
	})

	s := New(accounts, "127.0.0.1:0")
	server := httptest.NewServer(s.srv.Handler)
	t.Cleanup(server.Close)
	return server, accounts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s 失败: %v", url, err)
	}
	return resp
}

func TestAccountGet_NoActiveAccount(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/account")
	if err != nil {
		t.Fatalf("GET 失败: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("无活跃账户时期望 404，得到 %d", resp.StatusCode)
	}
}

func TestSwitchAndGet(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/account/switch", `{"type":"demo"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("切换到 demo 应成功，得到 %d", resp.StatusCode)
	}

	var result struct {
		AccountID int64 `json:"account_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if result.AccountID != 2 {
		t.Errorf("期望切换到账户 2，得到 %d", result.AccountID)
	}

	getResp, err := http.Get(server.URL + "/api/account")
	if err != nil {
		t.Fatalf("GET 失败: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("期望 200，得到 %d", getResp.StatusCode)
	}
	var account struct {
		ID   int64  `json:"id"`
		Type string `json:"type"`
	}
	if err := json.NewDecoder(getResp.Body).Decode(&account); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if account.ID != 2 || account.Type != "demo" {
		t.Errorf("账户信息错误: %+v", account)
	}
}

func TestSwitch_InvalidType(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/account/switch", `{"type":"paper"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("非法账户类型期望 400，得到 %d", resp.StatusCode)
	}
}

func TestTournaments(t *testing.T) {
	server, accounts := newTestServer(t)

	// 先刷新一次快照
	if _, err := accounts.Refresh(); err != nil {
		t.Fatalf("刷新快照失败: %v", err)
	}

	resp, err := http.Get(server.URL + "/api/account/tournaments")
	if err != nil {
		t.Fatalf("GET 失败: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("期望 200，得到 %d", resp.StatusCode)
	}

	var result struct {
		Tournaments []domain.TournamentAccount `json:"tournaments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if len(result.Tournaments) != 1 || result.Tournaments[0].Name != "Weekly Cup" {
		t.Errorf("锦标赛列表错误: %+v", result.Tournaments)
	}
}

func TestRefill(t *testing.T) {
	server, _ := newTestServer(t)

	// 模拟账户：补充成功
	resp := postJSON(t, server.URL+"/api/account/switch", `{"type":"demo"}`)
	resp.Body.Close()

	refillResp := postJSON(t, server.URL+"/api/account/refill", `{"amount":5000}`)
	defer refillResp.Body.Close()
	if refillResp.StatusCode != http.StatusOK {
		t.Errorf("模拟账户补充期望 200，得到 %d", refillResp.StatusCode)
	}

	// 真实账户：拒绝补充
	resp = postJSON(t, server.URL+"/api/account/switch", `{"type":"real"}`)
	resp.Body.Close()

	refillResp = postJSON(t, server.URL+"/api/account/refill", `{}`)
	defer refillResp.Body.Close()
	if refillResp.StatusCode != http.StatusConflict {
		t.Errorf("真实账户补充期望 409，得到 %d", refillResp.StatusCode)
	}
}
