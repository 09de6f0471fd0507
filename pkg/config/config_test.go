package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	Reset()
	cfg, err := LoadFromFile("")
	if err != nil {
		t.Fatalf("加载默认配置失败: %v", err)
	}

	if cfg.Venue.WSURL != "wss://ws.iqoption.com/echo/websocket" {
		t.Errorf("默认 WS 地址错误: %s", cfg.Venue.WSURL)
	}
	if cfg.Account.DefaultType != "demo" {
		t.Errorf("默认账户类型应为 demo，得到 %s", cfg.Account.DefaultType)
	}
	if cfg.Account.ResponseTimeout != 10 {
		t.Errorf("默认响应超时应为 10，得到 %d", cfg.Account.ResponseTimeout)
	}
	if cfg.Account.RefillAmount != 10000 {
		t.Errorf("默认补充金额应为 10000，得到 %d", cfg.Account.RefillAmount)
	}
	if cfg.ControlPlane.ListenAddr != "127.0.0.1:8321" {
		t.Errorf("默认控制面地址错误: %s", cfg.ControlPlane.ListenAddr)
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	Reset()
	path := writeTempConfig(t, `
credentials:
  email: trader@example.com
  password: secret
account:
  default_type: real
  response_timeout: 5
control_plane:
  enabled: true
  listen_addr: "0.0.0.0:9000"
log_level: debug
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.Credentials.Email != "trader@example.com" {
		t.Errorf("邮箱错误: %s", cfg.Credentials.Email)
	}
	if cfg.Account.DefaultType != "real" {
		t.Errorf("账户类型应为 real，得到 %s", cfg.Account.DefaultType)
	}
	if cfg.Account.ResponseTimeout != 5 {
		t.Errorf("响应超时应为 5，得到 %d", cfg.Account.ResponseTimeout)
	}
	if !cfg.ControlPlane.Enabled || cfg.ControlPlane.ListenAddr != "0.0.0.0:9000" {
		t.Errorf("控制面配置错误: %+v", cfg.ControlPlane)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("日志级别应为 debug，得到 %s", cfg.LogLevel)
	}
}

func TestLoadFromFile_EnvOverride(t *testing.T) {
	Reset()
	t.Setenv("IQ_DEFAULT_ACCOUNT_TYPE", "real")
	t.Setenv("IQ_RESPONSE_TIMEOUT", "7")

	path := writeTempConfig(t, `
account:
  default_type: demo
  response_timeout: 5
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Account.DefaultType != "real" {
		t.Errorf("环境变量应覆盖配置文件，得到 %s", cfg.Account.DefaultType)
	}
	if cfg.Account.ResponseTimeout != 7 {
		t.Errorf("环境变量应覆盖配置文件，得到 %d", cfg.Account.ResponseTimeout)
	}
}

func TestLoadFromFile_InvalidAccountType(t *testing.T) {
	Reset()
	path := writeTempConfig(t, `
account:
  default_type: tournament
`)

	if _, err := LoadFromFile(path); err == nil {
		t.Error("非法默认账户类型应该返回错误")
	}
}
