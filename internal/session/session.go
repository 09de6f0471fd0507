package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/iqbot/pkg/secretstore"
)

var log = logrus.WithField("component", "session")

// Config 登录服务配置
type Config struct {
	LoginURL  string
	LogoutURL string
	ProxyURL  string
	Email     string
	Password  string
}

// Service 负责 HTTP 登录换取 ssid 会话令牌
// ssid 会缓存到本地加密存储，下次启动优先复用，失效后重新登录
type Service struct {
	client  *resty.Client
	cfg     Config
	secrets *secretstore.Store // 可选
}

// loginResponse 登录接口响应
type loginResponse struct {
	Code string `json:"code"`
	SSID string `json:"ssid"`
}

// NewService 创建登录服务；secrets 可以为 nil（不做本地缓存）
func NewService(cfg Config, secrets *secretstore.Store) *Service {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)").
		SetHeader("Accept", "application/json")
	if cfg.ProxyURL != "" {
		client.SetProxy(cfg.ProxyURL)
	}
	return &Service{
		client:  client,
		cfg:     cfg,
		secrets: secrets,
	}
}

// CachedSSID 返回本地缓存的 ssid；无缓存时返回空串
func (s *Service) CachedSSID() string {
	if s.secrets == nil {
		return ""
	}
	ssid, found, err := s.secrets.GetString(secretstore.KeySessionID)
	if err != nil {
		log.Warnf("读取缓存 ssid 失败: %v", err)
		return ""
	}
	if !found {
		return ""
	}
	return ssid
}

// Login 执行 HTTP 登录并返回 ssid
// 成功后把 ssid 与邮箱写入本地存储以便下次复用
func (s *Service) Login() (string, error) {
	if s.cfg.Email == "" || s.cfg.Password == "" {
		return "", errors.New("登录凭据为空，请设置邮箱和密码")
	}

	var result loginResponse
	resp, err := s.client.R().
		SetFormData(map[string]string{
			"identifier": s.cfg.Email,
			"password":   s.cfg.Password,
		}).
		SetResult(&result).
		Post(s.cfg.LoginURL)
	if err != nil {
		return "", errors.Wrap(err, "登录请求失败")
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("登录失败: HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	ssid := result.SSID
	if ssid == "" {
		// 部分接入点只通过 Set-Cookie 返回会话令牌
		for _, c := range resp.Cookies() {
			if c.Name == "ssid" {
				ssid = c.Value
				break
			}
		}
	}
	if ssid == "" {
		return "", errors.New("登录响应中没有 ssid")
	}

	s.cacheSSID(ssid)
	log.Info("登录成功，已获取会话令牌")
	return ssid, nil
}

// Logout 注销服务端会话并清除本地缓存
func (s *Service) Logout() error {
	resp, err := s.client.R().Post(s.cfg.LogoutURL)
	if err != nil {
		return errors.Wrap(err, "登出请求失败")
	}
	if resp.StatusCode() >= 400 {
		log.Warnf("登出返回 HTTP %d", resp.StatusCode())
	}
	s.ClearCache()
	return nil
}

// ClearCache 清除本地缓存的 ssid（例如服务端判定会话失效后）
func (s *Service) ClearCache() {
	if s.secrets == nil {
		return
	}
	if err := s.secrets.Delete(secretstore.KeySessionID); err != nil {
		log.Warnf("清除缓存 ssid 失败: %v", err)
	}
}

func (s *Service) cacheSSID(ssid string) {
	if s.secrets == nil {
		return
	}
	if err := s.secrets.SetString(secretstore.KeySessionID, ssid); err != nil {
		log.Warnf("缓存 ssid 失败: %v", err)
	}
	if err := s.secrets.SetString(secretstore.KeyEmail, s.cfg.Email); err != nil {
		log.Warnf("缓存邮箱失败: %v", err)
	}
}
