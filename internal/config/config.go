// Package config provides configuration management for the arena.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	apperrors "paper-arena/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Arena      ArenaConfig      `mapstructure:"arena"`
	MarketData MarketDataConfig `mapstructure:"marketdata"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	API        APIConfig        `mapstructure:"api"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ArenaConfig holds competition parameters.
type ArenaConfig struct {
	StartingCash     float64  `mapstructure:"starting_cash"`
	HistoryLimit     int      `mapstructure:"history_limit"`
	EliminationCount int      `mapstructure:"elimination_count"`
	MinActiveAgents  int      `mapstructure:"min_active_agents"`
	RandomSeed       int64    `mapstructure:"random_seed"` // 0 = time-seeded
	Universe         []string `mapstructure:"universe"`
}

// MarketDataConfig holds market-data provider configuration.
type MarketDataConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	CacheTTLSecs  int     `mapstructure:"cache_ttl_secs"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	MaxRetries    int     `mapstructure:"max_retries"`
	TimeoutSecs   int     `mapstructure:"timeout_secs"`
}

// ScheduleConfig holds cron specs for the periodic cycles.
type ScheduleConfig struct {
	RoundCron       string `mapstructure:"round_cron"`
	EliminationCron string `mapstructure:"elimination_cron"`
	SummaryCron     string `mapstructure:"summary_cron"`
}

// APIConfig holds HTTP API configuration.
type APIConfig struct {
	ListenAddr  string `mapstructure:"listen_addr"`
	AdminSecret string `mapstructure:"admin_secret"`
}

// DatabaseConfig holds persistence configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
	Path    string `mapstructure:"path"`
}

// AgentSeed describes one roster slot loaded from agents.toml.
type AgentSeed struct {
	Key              string   `mapstructure:"key"`
	Name             string   `mapstructure:"name"`
	Strategy         string   `mapstructure:"strategy"`
	RiskTolerance    float64  `mapstructure:"risk_tolerance"`
	TradeFrequency   float64  `mapstructure:"trade_frequency"`
	PreferredSymbols []string `mapstructure:"preferred_symbols"`
	AvoidSymbols     []string `mapstructure:"avoid_symbols"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/paper-arena"
	}
	return filepath.Join(home, ".config", "paper-arena")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
		// Missing config file falls back to defaults.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadAgents loads the roster seeds from agents.toml in the config directory.
// A missing file yields the default roster of seven personalities.
func LoadAgents(configDir string) ([]AgentSeed, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("agents")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultRoster(), nil
		}
		return nil, fmt.Errorf("reading agents.toml: %w", err)
	}

	var wrapper struct {
		Agents []AgentSeed `mapstructure:"agents"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return nil, fmt.Errorf("unmarshaling agents.toml: %w", err)
	}
	if len(wrapper.Agents) == 0 {
		return DefaultRoster(), nil
	}
	return wrapper.Agents, nil
}

// DefaultRoster returns the built-in seven-agent roster, one per strategy.
func DefaultRoster() []AgentSeed {
	return []AgentSeed{
		{Key: "warren", Name: "Warren", Strategy: "value", RiskTolerance: 0.3, TradeFrequency: 0.5, PreferredSymbols: []string{"AAPL", "MSFT", "JNJ", "KO"}},
		{Key: "diamond", Name: "Diamond", Strategy: "meme", RiskTolerance: 0.95, TradeFrequency: 0.9, PreferredSymbols: []string{"GME", "AMC", "TSLA", "PLTR"}},
		{Key: "cathie", Name: "Cathie", Strategy: "growth", RiskTolerance: 0.7, TradeFrequency: 0.6, PreferredSymbols: []string{"NVDA", "TSLA", "SHOP", "SQ"}},
		{Key: "jesse", Name: "Jesse", Strategy: "momentum", RiskTolerance: 0.8, TradeFrequency: 0.8},
		{Key: "hodler", Name: "Hodler", Strategy: "hodl", RiskTolerance: 0.4, TradeFrequency: 0.3, PreferredSymbols: []string{"AAPL", "GOOGL", "AMZN"}},
		{Key: "flash", Name: "Flash", Strategy: "scalp", RiskTolerance: 0.6, TradeFrequency: 0.95},
		{Key: "quant", Name: "Quant", Strategy: "technical", RiskTolerance: 0.5, TradeFrequency: 0.7},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("arena.starting_cash", 10000.0)
	v.SetDefault("arena.history_limit", 100)
	v.SetDefault("arena.elimination_count", 2)
	v.SetDefault("arena.min_active_agents", 3)
	v.SetDefault("arena.universe", []string{
		"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "TSLA", "META",
		"JNJ", "KO", "GME", "AMC", "PLTR", "SHOP", "SQ", "AMD", "NFLX",
	})
	v.SetDefault("marketdata.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("marketdata.cache_ttl_secs", 300)
	v.SetDefault("marketdata.rate_per_second", 2.0)
	v.SetDefault("marketdata.max_retries", 3)
	v.SetDefault("marketdata.timeout_secs", 10)
	v.SetDefault("schedule.round_cron", "0 */30 9-16 * * 1-5")
	v.SetDefault("schedule.elimination_cron", "0 0 17 * * 5")
	v.SetDefault("schedule.summary_cron", "0 10 17 * * 1-5")
	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("database.path", filepath.Join(DefaultConfigDir(), "arena.db"))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", false)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ARENA_ADMIN_SECRET"); v != "" {
		cfg.API.AdminSecret = v
	}
	if v := os.Getenv("ARENA_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("ARENA_LISTEN_ADDR"); v != "" {
		cfg.API.ListenAddr = v
	}
	if v := os.Getenv("ARENA_MARKETDATA_URL"); v != "" {
		cfg.MarketData.BaseURL = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Arena.StartingCash <= 0 {
		return fmt.Errorf("%w: starting_cash must be positive", apperrors.ErrConfigInvalid)
	}
	if c.Arena.HistoryLimit <= 0 {
		return fmt.Errorf("%w: history_limit must be positive", apperrors.ErrConfigInvalid)
	}
	if c.Arena.EliminationCount <= 0 {
		return fmt.Errorf("%w: elimination_count must be positive", apperrors.ErrConfigInvalid)
	}
	if c.Arena.MinActiveAgents <= c.Arena.EliminationCount {
		return fmt.Errorf("%w: min_active_agents must exceed elimination_count", apperrors.ErrConfigInvalid)
	}
	if len(c.Arena.Universe) == 0 {
		return fmt.Errorf("%w: universe must not be empty", apperrors.ErrConfigInvalid)
	}
	if c.MarketData.RatePerSecond <= 0 {
		return fmt.Errorf("%w: rate_per_second must be positive", apperrors.ErrConfigInvalid)
	}
	return nil
}
