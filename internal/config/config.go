package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// ConfigFileEnv 指向可选的 YAML 配置文件
const ConfigFileEnv = "HABITLOG_CONFIG"

const maxConfigFileSize = 1 << 20

// 允许通过环境变量覆盖的键，YAML 中使用对应的小写形式
var envKeys = map[string]struct{}{
	"PORT":                     {},
	"LISTEN_ADDR":              {},
	"DATABASE_PATH":            {},
	"SESSION_SECRET":           {},
	"GIN_MODE":                 {},
	"INSIGHT_REFRESH_INTERVAL": {},
	"LOG_LEVEL":                {},
	"DEFAULT_LANGUAGE":         {},
	"WRITE_RATE_LIMIT":         {},
	"WRITE_RATE_BURST":         {},
}

const (
	defaultWriteRateLimit = 5
	defaultWriteRateBurst = 20
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr      string
	Port            string
	DatabasePath    string
	SessionSecret   string
	GinMode         string
	RefreshInterval time.Duration
	LogLevel        string
	DefaultLanguage string
	// WriteRateLimit 为每个客户端每秒允许的写请求数，0 表示不限制
	WriteRateLimit float64
	WriteRateBurst int
}

// Load 读取 HABITLOG_CONFIG 指定的 YAML（可选），再用环境变量覆盖，最后补齐默认值。
func Load() (AppConfig, error) {
	return LoadFile(strings.TrimSpace(os.Getenv(ConfigFileEnv)))
}

// LoadFile 与 Load 相同，但显式指定 YAML 路径，空路径表示只读环境变量。
func LoadFile(path string) (AppConfig, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return AppConfig{}, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return AppConfig{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		if _, ok := envKeys[s]; !ok {
			return ""
		}
		if strings.TrimSpace(os.Getenv(s)) == "" {
			return ""
		}
		return strings.ToLower(s)
	}), nil); err != nil {
		return AppConfig{}, fmt.Errorf("load environment: %w", err)
	}

	cfg := AppConfig{
		ListenAddr:      value(k, "listen_addr"),
		Port:            value(k, "port"),
		DatabasePath:    value(k, "database_path"),
		SessionSecret:   value(k, "session_secret"),
		GinMode:         value(k, "gin_mode"),
		LogLevel:        value(k, "log_level"),
		DefaultLanguage: value(k, "default_language"),
	}

	if raw := value(k, "insight_refresh_interval"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return AppConfig{}, fmt.Errorf("parse insight_refresh_interval: %w", err)
		}
		cfg.RefreshInterval = interval
	}

	cfg.WriteRateLimit = defaultWriteRateLimit
	if raw := value(k, "write_rate_limit"); raw != "" {
		limit, err := strconv.ParseFloat(raw, 64)
		if err != nil || limit < 0 {
			return AppConfig{}, fmt.Errorf("parse write_rate_limit %q: must be a non-negative number", raw)
		}
		cfg.WriteRateLimit = limit
	}
	if raw := value(k, "write_rate_burst"); raw != "" {
		burst, err := strconv.Atoi(raw)
		if err != nil || burst < 1 {
			return AppConfig{}, fmt.Errorf("parse write_rate_burst %q: must be a positive integer", raw)
		}
		cfg.WriteRateBurst = burst
	}

	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = fmt.Sprintf(":%s", cfg.Port)
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "habitlog.db"
	}
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = "habitlog-dev-secret"
	}
	if cfg.GinMode == "" {
		cfg.GinMode = "release"
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	if cfg.WriteRateBurst <= 0 {
		cfg.WriteRateBurst = defaultWriteRateBurst
	}
}

func value(k *koanf.Koanf, key string) string {
	return strings.TrimSpace(k.String(key))
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config file %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return content, nil
}
