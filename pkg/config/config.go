package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// CredentialsConfig 登录凭据
type CredentialsConfig struct {
	Email    string
	Password string
}

// VenueConfig 交易所接入点配置
type VenueConfig struct {
	WSURL     string // WebSocket 接入点
	LoginURL  string // 登录接口
	LogoutURL string // 登出接口
	ProxyURL  string // 代理地址（可选）
}

// AccountConfig 账户配置
type AccountConfig struct {
	DefaultType     string // 启动后默认激活的账户类型: real 或 demo
	ResponseTimeout int    // 等待服务端响应的超时时间（秒）
	RefillAmount    int    // 模拟账户补充金额，默认 10000
}

// StoreConfig 本地存储配置
type StoreConfig struct {
	SecretPath   string // 会话密钥存储目录（Badger）
	SecretKey    string // 32 字节加密密钥（hex 或 base64，可为空）
	RecorderPath string // 仓位归档数据库路径（SQLite）
	SnapshotDir  string // JSON 快照导出目录
}

// ControlPlaneConfig 控制面配置
type ControlPlaneConfig struct {
	Enabled    bool
	ListenAddr string // 默认 127.0.0.1:8321
}

// Config 应用配置
type Config struct {
	Credentials  CredentialsConfig
	Venue        VenueConfig
	Account      AccountConfig
	Store        StoreConfig
	ControlPlane ControlPlaneConfig
	LogLevel     string // 日志级别
	LogFile      string // 日志文件路径（可选）
}

// ConfigFile 配置文件结构（YAML 解析）
type ConfigFile struct {
	Credentials struct {
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
	} `yaml:"credentials"`
	Venue struct {
		WSURL     string `yaml:"ws_url"`
		LoginURL  string `yaml:"login_url"`
		LogoutURL string `yaml:"logout_url"`
		ProxyURL  string `yaml:"proxy_url"`
	} `yaml:"venue"`
	Account struct {
		DefaultType     string `yaml:"default_type"`
		ResponseTimeout int    `yaml:"response_timeout"`
		RefillAmount    int    `yaml:"refill_amount"`
	} `yaml:"account"`
	Store struct {
		SecretPath   string `yaml:"secret_path"`
		RecorderPath string `yaml:"recorder_path"`
		SnapshotDir  string `yaml:"snapshot_dir"`
	} `yaml:"store"`
	ControlPlane struct {
		Enabled    bool   `yaml:"enabled"`
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"control_plane"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

var globalConfig *Config
var configFilePath string

// SetConfigPath 设置配置文件路径
func SetConfigPath(path string) {
	configFilePath = path
}

// GetConfigPath 获取配置文件路径
func GetConfigPath() string {
	return configFilePath
}

// Load 加载配置
func Load() (*Config, error) {
	return LoadFromFile(configFilePath)
}

// LoadFromFile 从指定文件加载配置
// 优先级：环境变量 > 配置文件 > 默认值（凭据等敏感项只从环境变量或配置文件读取）
func LoadFromFile(filePath string) (*Config, error) {
	if globalConfig != nil && configFilePath == filePath {
		return globalConfig, nil
	}

	var configFile *ConfigFile
	if filePath != "" {
		var err error
		configFile, err = loadConfigFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
	}
	if configFile == nil {
		configFile = &ConfigFile{}
	}

	config := &Config{
		Credentials: CredentialsConfig{
			Email:    getEnv("IQ_EMAIL", configFile.Credentials.Email),
			Password: getEnv("IQ_PASSWORD", configFile.Credentials.Password),
		},
		Venue: VenueConfig{
			WSURL:     firstNonEmpty(getEnv("IQ_WS_URL", ""), configFile.Venue.WSURL, "wss://ws.iqoption.com/echo/websocket"),
			LoginURL:  firstNonEmpty(getEnv("IQ_LOGIN_URL", ""), configFile.Venue.LoginURL, "https://api.iqoption.com/v2/login"),
			LogoutURL: firstNonEmpty(getEnv("IQ_LOGOUT_URL", ""), configFile.Venue.LogoutURL, "https://auth.iqoption.com/api/v1.0/logout"),
			ProxyURL:  firstNonEmpty(getEnv("IQ_PROXY_URL", ""), configFile.Venue.ProxyURL),
		},
		Account: AccountConfig{
			DefaultType:     firstNonEmpty(getEnv("IQ_DEFAULT_ACCOUNT_TYPE", ""), configFile.Account.DefaultType, "demo"),
			ResponseTimeout: firstPositive(parseIntEnv("IQ_RESPONSE_TIMEOUT", 0), configFile.Account.ResponseTimeout, 10),
			RefillAmount:    firstPositive(parseIntEnv("IQ_REFILL_AMOUNT", 0), configFile.Account.RefillAmount, 10000),
		},
		Store: StoreConfig{
			SecretPath:   firstNonEmpty(getEnv("IQ_SECRET_PATH", ""), configFile.Store.SecretPath, "data/secrets"),
			SecretKey:    getEnv("IQ_SECRET_KEY", ""),
			RecorderPath: firstNonEmpty(getEnv("IQ_RECORDER_PATH", ""), configFile.Store.RecorderPath, "data/positions.db"),
			SnapshotDir:  firstNonEmpty(getEnv("IQ_SNAPSHOT_DIR", ""), configFile.Store.SnapshotDir, "data/snapshots"),
		},
		ControlPlane: ControlPlaneConfig{
			Enabled:    parseBoolEnv("IQ_CONTROL_PLANE_ENABLED", configFile.ControlPlane.Enabled),
			ListenAddr: firstNonEmpty(getEnv("IQ_CONTROL_PLANE_ADDR", ""), configFile.ControlPlane.ListenAddr, "127.0.0.1:8321"),
		},
		LogLevel: firstNonEmpty(getEnv("LOG_LEVEL", ""), configFile.LogLevel, "info"),
		LogFile:  firstNonEmpty(getEnv("LOG_FILE", ""), configFile.LogFile, "logs/combined.log"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	globalConfig = config
	configFilePath = filePath
	return config, nil
}

// Validate 校验配置的完整性
func (c *Config) Validate() error {
	switch strings.ToLower(c.Account.DefaultType) {
	case "real", "demo":
	default:
		return fmt.Errorf("不支持的默认账户类型: %s（只允许 real 或 demo）", c.Account.DefaultType)
	}
	if c.Venue.WSURL == "" {
		return fmt.Errorf("WebSocket 接入点不能为空")
	}
	return nil
}

// Reset 清除缓存的配置（测试用）
func Reset() {
	globalConfig = nil
	configFilePath = ""
}

// loadConfigFile 读取并解析 YAML 配置文件
func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var cf ConfigFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("解析 YAML 失败: %w", err)
	}
	return &cf, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// firstNonEmpty 按优先级返回第一个非空值
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// firstPositive 按优先级返回第一个正整数
func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// parseIntEnv 解析整数环境变量
func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseBoolEnv 解析布尔环境变量
func parseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
