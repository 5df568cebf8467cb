// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	JupiterBaseURL  string   `mapstructure:"jupiter_base_url"`
	BirdeyeBaseURL  string   `mapstructure:"birdeye_base_url"`
	BirdeyeWSURL    string   `mapstructure:"birdeye_ws_url"`
	BirdeyeAPIKey   string   `mapstructure:"birdeye_api_key"`
	RPCList         []string `mapstructure:"rpc_list"`
	WalletsFile     string   `mapstructure:"wallets_file"`
	QuoteDebounceMs int      `mapstructure:"quote_debounce_ms"`
	QuoteTTLSec     int      `mapstructure:"quote_ttl_sec"`
	CandleInterval  string   `mapstructure:"candle_interval"`
	CandleLookbackH int      `mapstructure:"candle_lookback_hours"`
	CandleRefreshS  int      `mapstructure:"candle_refresh_sec"`
	StaleAfterSec   int      `mapstructure:"stale_after_sec"`
	BalanceCacheSec int      `mapstructure:"balance_cache_sec"`
	HTTPTimeoutSec  int      `mapstructure:"http_timeout_sec"`
	DebugLogging    bool     `mapstructure:"debug_logging"`
}

const (
	DefaultJupiterBaseURL = "https://lite-api.jup.ag/ultra/v1"
	DefaultBirdeyeBaseURL = "https://public-api.birdeye.so"
	DefaultBirdeyeWSURL   = "wss://ws.birdeye.so"

	DefaultQuoteDebounceMs = 500
	DefaultQuoteTTLSec     = 30
	DefaultCandleInterval  = "1m"
	DefaultCandleLookbackH = 24
	DefaultCandleRefreshS  = 60
	DefaultStaleAfterSec   = 30
	DefaultBalanceCacheSec = 15
	DefaultHTTPTimeoutSec  = 10
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"jupiter_base_url":      DefaultJupiterBaseURL,
		"birdeye_base_url":      DefaultBirdeyeBaseURL,
		"birdeye_ws_url":        DefaultBirdeyeWSURL,
		"quote_debounce_ms":     DefaultQuoteDebounceMs,
		"quote_ttl_sec":         DefaultQuoteTTLSec,
		"candle_interval":       DefaultCandleInterval,
		"candle_lookback_hours": DefaultCandleLookbackH,
		"candle_refresh_sec":    DefaultCandleRefreshS,
		"stale_after_sec":       DefaultStaleAfterSec,
		"balance_cache_sec":     DefaultBalanceCacheSec,
		"http_timeout_sec":      DefaultHTTPTimeoutSec,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

// QuoteDebounce returns the quiescence window for the quote engine.
func (c *Config) QuoteDebounce() time.Duration {
	return time.Duration(c.QuoteDebounceMs) * time.Millisecond
}

// QuoteTTL returns the staleness window for fetched quotes.
func (c *Config) QuoteTTL() time.Duration {
	return time.Duration(c.QuoteTTLSec) * time.Second
}

// HTTPTimeout bounds every provider call.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

func validateConfig(cfg *Config) error {
	if err := validateURLWithCache(cfg.JupiterBaseURL, "http"); err != nil {
		return errors.New("invalid Jupiter base URL")
	}
	if err := validateURLWithCache(cfg.BirdeyeBaseURL, "http"); err != nil {
		return errors.New("invalid Birdeye base URL")
	}
	if err := validateURLWithCache(cfg.BirdeyeWSURL, "ws"); err != nil {
		return errors.New("invalid Birdeye WebSocket URL protocol")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.QuoteDebounceMs <= 0 {
		return errors.New("invalid quote_debounce_ms")
	}
	if cfg.QuoteTTLSec <= 0 {
		return errors.New("invalid quote_ttl_sec")
	}
	if cfg.CandleLookbackH <= 0 {
		return errors.New("invalid candle_lookback_hours")
	}
	if cfg.CandleRefreshS <= 0 {
		return errors.New("invalid candle_refresh_sec")
	}
	if cfg.StaleAfterSec <= 0 {
		return errors.New("invalid stale_after_sec")
	}
	if cfg.BalanceCacheSec < 0 {
		return errors.New("invalid balance_cache_sec")
	}
	if cfg.HTTPTimeoutSec <= 0 {
		return errors.New("invalid http_timeout_sec")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("SOLTERM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if key := v.GetString("BIRDEYE_API_KEY"); key != "" {
		cfg.BirdeyeAPIKey = key
	}

	if envRPCList := v.GetString("RPC_LIST"); envRPCList != "" {
		rpcs := strings.Split(envRPCList, ",")
		var cleanRPCs []string
		for _, rpc := range rpcs {
			clean := strings.TrimSpace(rpc)
			if clean != "" {
				cleanRPCs = append(cleanRPCs, clean)
			}
		}
		if len(cleanRPCs) > 0 {
			cfg.RPCList = cleanRPCs
		}
	}
	return nil
}
