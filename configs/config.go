package configs

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/web3guy0/basesniper/pkg/engine"
)

// Config represents the entire configuration structure from config.yml:
// the structural, non-secret knobs spec.md section 6 names. Secrets
// (bot token, chat id) load from the environment via godotenv so they
// never sit in a committed file.
type Config struct {
	ChainWSSEndpoint string   `yaml:"chain_wss_endpoint"`
	ChainHTTPEndpoint string  `yaml:"chain_http_endpoint"`
	WETH             string   `yaml:"weth"`
	SafeHooks        []string `yaml:"safe_hooks"`

	V4PoolManager string `yaml:"v4_pool_manager"`
	V3Factory     string `yaml:"v3_factory"`

	MaxTokenAgeSec       int     `yaml:"max_token_age_sec"`
	MaxMcapUSD           float64 `yaml:"max_mcap_usd"`
	MinLiquidityUSD      float64 `yaml:"min_liquidity_usd"`
	MinBuys              int     `yaml:"min_buys"`
	MinLargestBuyPct     float64 `yaml:"min_largest_buy_pct"`
	MaxSignalsPerHour    int     `yaml:"max_signals_per_hour"`
	IgnoreLiquidityBelow float64 `yaml:"ignore_liquidity_below"`
	MaxDeployerTokens24h int     `yaml:"max_deployer_tokens_24h"`
	TokenTTLSec          int     `yaml:"token_ttl_sec"`

	DryRun bool `yaml:"dry_run"`

	EnrichmentBaseURL    string `yaml:"enrichment_base_url"`
	EnrichmentChain      string `yaml:"enrichment_chain"`
	EnrichmentConcurrency int   `yaml:"enrichment_concurrency"`

	SignalAuditDSN string `yaml:"signal_audit_dsn"`
}

// Secrets holds credentials loaded from the environment, never from the
// YAML file.
type Secrets struct {
	TelegramBotToken string
	TelegramChatID   int64
}

// Default mirrors spec.md section 6's configuration surface defaults.
func Default() Config {
	return Config{
		ChainHTTPEndpoint:     "https://mainnet.base.org",
		SafeHooks:             []string{"0x0000000000000000000000000000000000000000"},
		V4PoolManager:         "0x498581fF718922c3f8e6A244956aF099B2652b2b",
		V3Factory:             "0x33128a8fC17869897dcE68Ed026d694621f6FDfD",
		MaxTokenAgeSec:        180,
		MaxMcapUSD:            30000,
		MinLiquidityUSD:       3000,
		MinBuys:               2,
		MinLargestBuyPct:      10,
		MaxSignalsPerHour:     5,
		IgnoreLiquidityBelow:  2000,
		MaxDeployerTokens24h:  2,
		TokenTTLSec:           300,
		DryRun:                true,
		EnrichmentConcurrency: 4,
	}
}

// LoadConfig reads and parses config.yml into a Config struct, starting
// from Default() so an omitted field keeps its documented default.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("configs: read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("configs: parse config YAML: %w", err)
	}
	if cfg.ChainWSSEndpoint == "" {
		return nil, fmt.Errorf("configs: chain_wss_endpoint is required")
	}
	return &cfg, nil
}

// LoadSecrets loads credentials from a .env file (if present) and the
// process environment, env taking precedence.
func LoadSecrets(envPath string) (*Secrets, error) {
	_ = godotenv.Load(envPath) // best-effort; real secrets may already be in the environment

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("configs: TELEGRAM_BOT_TOKEN not set")
	}

	chatIDStr := os.Getenv("TELEGRAM_CHAT_ID")
	if chatIDStr == "" {
		return nil, fmt.Errorf("configs: TELEGRAM_CHAT_ID not set")
	}
	var chatID int64
	if _, err := fmt.Sscanf(chatIDStr, "%d", &chatID); err != nil {
		return nil, fmt.Errorf("configs: TELEGRAM_CHAT_ID malformed: %w", err)
	}

	return &Secrets{TelegramBotToken: token, TelegramChatID: chatID}, nil
}

// WETHAddress parses the configured WETH address.
func (c *Config) WETHAddress() common.Address {
	return common.HexToAddress(c.WETH)
}

// PoolManagerAddress parses the configured V4 PoolManager address, which
// Initialize and Swap subscriptions are scoped to.
func (c *Config) PoolManagerAddress() common.Address {
	return common.HexToAddress(c.V4PoolManager)
}

// FactoryAddress parses the configured V3 Factory address, which the
// PoolCreated subscription is scoped to.
func (c *Config) FactoryAddress() common.Address {
	return common.HexToAddress(c.V3Factory)
}

// HooksAllowlist turns the configured hex addresses into the set the V4
// listener checks Initialize.hooks against.
func (c *Config) HooksAllowlist() map[common.Address]struct{} {
	out := make(map[common.Address]struct{}, len(c.SafeHooks))
	for _, h := range c.SafeHooks {
		out[common.HexToAddress(h)] = struct{}{}
	}
	return out
}

// Thresholds converts the YAML-loaded floats/ints into the Signal Engine's
// decimal-typed threshold struct.
func (c *Config) Thresholds() engine.Thresholds {
	return engine.Thresholds{
		MaxTokenAge:          time.Duration(c.MaxTokenAgeSec) * time.Second,
		MinLiquidityUSD:      decimal.NewFromFloat(c.MinLiquidityUSD),
		MaxMcapUSD:           decimal.NewFromFloat(c.MaxMcapUSD),
		MinBuys:              c.MinBuys,
		MinLargestBuyPct:     decimal.NewFromFloat(c.MinLargestBuyPct),
		MaxSignalsPerHour:    c.MaxSignalsPerHour,
		MaxDeployerTokens24h: c.MaxDeployerTokens24h,
	}
}

// IgnoreLiquidityFloor converts the admission floor to decimal.
func (c *Config) IgnoreLiquidityFloor() decimal.Decimal {
	return decimal.NewFromFloat(c.IgnoreLiquidityBelow)
}

// TokenTTL converts the configured TTL to a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLSec) * time.Second
}
