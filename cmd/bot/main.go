package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/betbot/iqbot/internal/controlplane"
	"github.com/betbot/iqbot/internal/domain"
	"github.com/betbot/iqbot/internal/protocol"
	"github.com/betbot/iqbot/internal/recorder"
	"github.com/betbot/iqbot/internal/services"
	"github.com/betbot/iqbot/internal/session"
	"github.com/betbot/iqbot/pkg/config"
	"github.com/betbot/iqbot/pkg/iqws"
	"github.com/betbot/iqbot/pkg/logger"
	"github.com/betbot/iqbot/pkg/secretstore"
)

// profileTimeout 认证后等待 profile 会话消息的时间
const profileTimeout = 15 * time.Second

func main() {
	// 加载 .env（尽力而为，缺失时直接用真实环境变量）
	_ = godotenv.Load()

	configPath := flag.String("config", "", "配置文件路径（YAML）")
	accountType := flag.String("account", "", "覆盖默认账户类型（real/demo）")
	flag.Parse()

	if *configPath != "" {
		config.SetConfigPath(*configPath)
	} else if _, err := os.Stat("config.yaml"); err == nil {
		config.SetConfigPath("config.yaml")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *accountType != "" {
		cfg.Account.DefaultType = *accountType
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logrus.Errorf("运行失败: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	defaultType, ok := domain.ParseAccountType(cfg.Account.DefaultType)
	if !ok {
		return fmt.Errorf("不支持的默认账户类型: %s", cfg.Account.DefaultType)
	}

	// 本地加密存储：缓存 ssid 避免每次启动都走 HTTP 登录
	secrets := openSecretStore(cfg)
	if secrets != nil {
		defer secrets.Close()
	}

	sess := session.NewService(session.Config{
		LoginURL:  cfg.Venue.LoginURL,
		LogoutURL: cfg.Venue.LogoutURL,
		ProxyURL:  cfg.Venue.ProxyURL,
		Email:     cfg.Credentials.Email,
		Password:  cfg.Credentials.Password,
	}, secrets)

	wsConfig := iqws.DefaultConfig()
	wsConfig.URL = cfg.Venue.WSURL
	wsConfig.ProxyURL = cfg.Venue.ProxyURL
	client := iqws.NewClient(wsConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Start(ctx); err != nil {
		return err
	}
	defer client.Stop()

	profile, err := authenticate(client, sess)
	if err != nil {
		return err
	}
	logrus.Infof("会话已建立: user_id=%d", profile.UserID)

	accounts := services.NewAccountService(client, services.Config{
		DefaultAccountType: defaultType,
		ResponseTimeout:    time.Duration(cfg.Account.ResponseTimeout) * time.Second,
	})

	// 历史仓位归档（SQLite，可选）
	if cfg.Store.RecorderPath != "" {
		rec, err := recorder.Open(cfg.Store.RecorderPath)
		if err != nil {
			logrus.Warnf("打开仓位归档失败（继续运行，不归档）: %v", err)
		} else {
			defer rec.Close()
			accounts.SetPositionArchiver(rec)
		}
	}

	if err := accounts.Bootstrap(profile); err != nil {
		return err
	}
	if balance, ok := accounts.CurrentBalance(); ok {
		logrus.Infof("当前余额: %s", balance)
	}

	// 控制面（可选）
	if cfg.ControlPlane.Enabled {
		cp := controlplane.New(accounts, cfg.ControlPlane.ListenAddr)
		cp.StartAsync()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := cp.Shutdown(shutdownCtx); err != nil {
				logrus.Warnf("控制面关闭失败: %v", err)
			}
		}()
	}

	// 等待退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logrus.Infof("收到信号 %v，开始关闭", sig)
	return nil
}

// openSecretStore 打开本地加密存储；失败时返回 nil（降级为不缓存会话）
func openSecretStore(cfg *config.Config) *secretstore.Store {
	if cfg.Store.SecretPath == "" {
		return nil
	}
	key, err := secretstore.ParseKey(cfg.Store.SecretKey)
	if err != nil {
		logrus.Warnf("解析存储加密密钥失败（不缓存会话）: %v", err)
		return nil
	}
	store, err := secretstore.Open(secretstore.OpenOptions{
		Path:          cfg.Store.SecretPath,
		EncryptionKey: key,
	})
	if err != nil {
		logrus.Warnf("打开本地存储失败（不缓存会话）: %v", err)
		return nil
	}
	return store
}

// authenticate 发送 ssid 认证并等待 profile 会话消息
// 优先复用缓存的 ssid；缓存会话失效（等不到 profile）时重新登录一次
func authenticate(client *iqws.Client, sess *session.Service) (*protocol.Profile, error) {
	tryAuth := func(ssid string) (*protocol.Profile, error) {
		w := client.Expect(protocol.NameProfile)
		if err := client.Authenticate(ssid); err != nil {
			return nil, err
		}
		env, ok := w.Wait(profileTimeout)
		if !ok {
			return nil, fmt.Errorf("等待 profile 消息超时（%v）", profileTimeout)
		}
		return protocol.ParseProfile(env.Msg)
	}

	if cached := sess.CachedSSID(); cached != "" {
		profile, err := tryAuth(cached)
		if err == nil {
			return profile, nil
		}
		logrus.Warnf("缓存会话失效，重新登录: %v", err)
		sess.ClearCache()
	}

	ssid, err := sess.Login()
	if err != nil {
		return nil, err
	}
	return tryAuth(ssid)
}
