package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"

	"navguard/internal/lock"
	"navguard/internal/logger"
	"navguard/internal/rules"
	"navguard/internal/storage"
	"navguard/internal/version"
	"navguard/internal/whitelist"
	"navguard/pkg/model"
)

// EnvPrefix 环境变量前缀，例如 NAVGUARD_LOG_LEVEL
const EnvPrefix = "NAVGUARD"

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version" ignored:"true"`

	Sqlite SqliteConfig `yaml:"sqlite"`
	Log    LogConfig    `yaml:"log"`
	Policy PolicyConfig `yaml:"policy"`
	Bridge BridgeConfig `yaml:"bridge"`
}

type SqliteConfig struct {
	Dsn    string `yaml:"dsn"`
	Prefix string `yaml:"prefix"`
}

type LogConfig struct {
	Level   string   `yaml:"level"`
	Writer  []string `yaml:"writer"`
	File    string   `yaml:"file"`
	MaxSize int      `yaml:"maxSize" split_words:"true"`
	Backups int      `yaml:"backups"`
}

// PolicyConfig 视图策略
type PolicyConfig struct {
	Platform          string               `yaml:"platform"`
	OriginWhitelist   []string             `yaml:"originWhitelist" split_words:"true"`
	DeeplinkWhitelist []string             `yaml:"deeplinkWhitelist" split_words:"true"`
	DownloadWhitelist []model.DownloadRule `yaml:"downloadWhitelist" ignored:"true"`
	MinimumVersion    string               `yaml:"minimumVersion" split_words:"true"`
	// StartInLoadingState 首次加载前即显示加载遮罩
	StartInLoadingState bool `yaml:"startInLoadingState" split_words:"true"`
	// InlineHTML 宿主以内联 HTML 作为初始内容时，白名单不能放开
	InlineHTML bool `yaml:"inlineHtml" split_words:"true"`
}

// BridgeConfig CDP 绑定
type BridgeConfig struct {
	DevToolsURL    string        `yaml:"devtoolsUrl" envconfig:"DEVTOOLS_URL"`
	Target         string        `yaml:"target"`
	LockTimeout    time.Duration `yaml:"lockTimeout" split_words:"true"`
	CommandTimeout time.Duration `yaml:"commandTimeout" split_words:"true"`
	// OpenCommand 外部打开链接的命令，空则按系统选择
	OpenCommand string   `yaml:"openCommand" split_words:"true"`
	OpenSchemes []string `yaml:"openSchemes" split_words:"true"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	log := logger.DefaultOptions()
	return &Config{
		Version: "1.0.0",
		Sqlite: SqliteConfig{
			Dsn:    "navguard.sqlite3",
			Prefix: "navguard_",
		},
		Log: LogConfig{
			Level:   log.Level,
			Writer:  log.Writer,
			File:    log.File,
			MaxSize: log.MaxSize,
			Backups: log.Backups,
		},
		Policy: PolicyConfig{
			Platform:          string(model.PlatformChromium),
			OriginWhitelist:   append([]string(nil), whitelist.DefaultOriginWhitelist...),
			DeeplinkWhitelist: append([]string(nil), rules.DefaultDeeplinkWhitelist...),
		},
		Bridge: BridgeConfig{
			DevToolsURL:    "http://127.0.0.1:9222",
			LockTimeout:    lock.DefaultTimeout,
			CommandTimeout: 5 * time.Second,
		},
	}
}

// Load 在默认配置上依次叠加配置文件与环境变量，path 为空时跳过文件
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var (
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrMinimumVersion  = errors.New("invalid minimumVersion")
)

// Validate 校验平台、版本范围与内联 HTML 白名单
func (c *Config) Validate() error {
	if !model.Platform(c.Policy.Platform).Valid() {
		return fmt.Errorf("%w %q", ErrUnknownPlatform, c.Policy.Platform)
	}
	if c.Policy.MinimumVersion != "" && !version.Valid(c.Policy.MinimumVersion) {
		return fmt.Errorf("%w %q", ErrMinimumVersion, c.Policy.MinimumVersion)
	}
	if c.Policy.InlineHTML {
		if err := whitelist.ValidateHTMLSource(c.Policy.OriginWhitelist); err != nil {
			return err
		}
	}
	return nil
}

// LoggerOptions 转换为日志配置
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:   c.Log.Level,
		Writer:  c.Log.Writer,
		File:    c.Log.File,
		MaxSize: c.Log.MaxSize,
		Backups: c.Log.Backups,
	}
}

// StorageOptions 转换为审计库配置
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{Dsn: c.Sqlite.Dsn, Prefix: c.Sqlite.Prefix}
}

// RulesConfig 转换为深链策略配置
func (c *Config) RulesConfig() rules.Config {
	return rules.Config{
		OriginWhitelist:   c.Policy.OriginWhitelist,
		DeeplinkWhitelist: c.Policy.DeeplinkWhitelist,
	}
}
