package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-bank/pkg/logger"
)

// 帳本引擎
const (
	EngineMutex = "mutex"
	EngineLMAX  = "lmax"
)

// 預設值 (yaml/toml 沒寫時補上)
const (
	DefaultAddr           = ":50051"
	DefaultRateLimit      = 5000
	DefaultRateBurst      = 10000
	DefaultMaxDeposit     = "10000"
	DefaultMaxWithdraw    = "5000"
	DefaultMaxOutstanding = "20000"
	DefaultIdempotencyTTL = "10m"
)

var ErrUnsupportedFormat = errors.New("unsupported config format")

type Config struct {
	Server      ServerConfig      `yaml:"server" toml:"server"`
	Ledger      LedgerConfig      `yaml:"ledger" toml:"ledger"`
	Journal     JournalConfig     `yaml:"journal" toml:"journal"`
	Idempotency IdempotencyConfig `yaml:"idempotency" toml:"idempotency"`
	Log         logger.Config     `yaml:"log" toml:"log"`
}

type ServerConfig struct {
	Addr      string  `yaml:"addr" toml:"addr"`             // gRPC 監聽位址
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit"` // 每秒請求數
	RateBurst int     `yaml:"rate_burst" toml:"rate_burst"`
}

// LedgerConfig 上限以字串表示，避免浮點誤差
type LedgerConfig struct {
	Engine         string `yaml:"engine" toml:"engine"` // mutex | lmax
	MaxDeposit     string `yaml:"max_deposit" toml:"max_deposit"`
	MaxWithdraw    string `yaml:"max_withdraw" toml:"max_withdraw"`
	MaxOutstanding string `yaml:"max_outstanding" toml:"max_outstanding"`
}

type JournalConfig struct {
	Path string `yaml:"path" toml:"path"` // 空字串代表不寫 journal
}

type IdempotencyConfig struct {
	TTL string `yaml:"ttl" toml:"ttl"` // "0" 代表關閉
}

// Load 依副檔名讀取 yaml 或 toml 設定檔，補上預設值並驗證
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse 解析設定內容，format 為副檔名 (.yaml/.yml/.toml)
func Parse(data []byte, format string) (Config, error) {
	var cfg Config
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse yaml config: %w", err)
		}
	case "toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse toml config: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = DefaultRateLimit
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = DefaultRateBurst
	}
	if c.Ledger.Engine == "" {
		c.Ledger.Engine = EngineMutex
	}
	if c.Ledger.MaxDeposit == "" {
		c.Ledger.MaxDeposit = DefaultMaxDeposit
	}
	if c.Ledger.MaxWithdraw == "" {
		c.Ledger.MaxWithdraw = DefaultMaxWithdraw
	}
	if c.Ledger.MaxOutstanding == "" {
		c.Ledger.MaxOutstanding = DefaultMaxOutstanding
	}
	if c.Idempotency.TTL == "" {
		c.Idempotency.TTL = DefaultIdempotencyTTL
	}
}

// Validate 檢查引擎名稱、上限與時間格式
func (c Config) Validate() error {
	switch c.Ledger.Engine {
	case EngineMutex, EngineLMAX:
	default:
		return fmt.Errorf("invalid ledger.engine %q", c.Ledger.Engine)
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("server.rate_limit and server.rate_burst must not be negative")
	}
	if _, err := c.Limits(); err != nil {
		return err
	}
	if _, err := c.IdempotencyTTL(); err != nil {
		return err
	}
	return nil
}

// Limits 轉成 domain.Limits，任一上限非正數則失敗
func (c Config) Limits() (domain.Limits, error) {
	var (
		limits domain.Limits
		err    error
	)
	if limits.MaxDeposit, err = parseLimit("ledger.max_deposit", c.Ledger.MaxDeposit); err != nil {
		return domain.Limits{}, err
	}
	if limits.MaxWithdraw, err = parseLimit("ledger.max_withdraw", c.Ledger.MaxWithdraw); err != nil {
		return domain.Limits{}, err
	}
	if limits.MaxOutstanding, err = parseLimit("ledger.max_outstanding", c.Ledger.MaxOutstanding); err != nil {
		return domain.Limits{}, err
	}
	if err := limits.Validate(); err != nil {
		return domain.Limits{}, err
	}
	return limits, nil
}

func parseLimit(key, value string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func (c Config) IdempotencyTTL() (time.Duration, error) {
	ttl, err := time.ParseDuration(c.Idempotency.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid idempotency.ttl %q: %w", c.Idempotency.TTL, err)
	}
	if ttl < 0 {
		return 0, fmt.Errorf("invalid idempotency.ttl %q: must not be negative", c.Idempotency.TTL)
	}
	return ttl, nil
}
