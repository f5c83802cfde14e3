// Package config loads the pricing core's nested YAML configuration,
// following the same structure-then-env-override pattern the gateway's
// config loader uses.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/priceye/pricing-engine/internal/pricingerr"
)

// Config is the root configuration tree for every binary in this module.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Models    ModelsConfig    `yaml:"models"`
	Retrain   RetrainConfig   `yaml:"retrain"`
	Grid      GridConfig      `yaml:"grid"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig points at the Postgres instance backing the repository.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig points at the Redis instance backing the predictor cache.
type CacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Enabled  bool          `yaml:"enabled"`
}

// ModelsConfig controls where trained artifacts live on disk.
type ModelsConfig struct {
	Root string `yaml:"root"`
}

// RetrainConfig carries the eligibility thresholds 4.G evaluates against.
type RetrainConfig struct {
	MinDaysSinceTraining   int     `yaml:"min_days_since_training"`
	MinNewRecommendations  int     `yaml:"min_new_recommendations"`
	DegradationThreshold   float64 `yaml:"degradation_threshold"`
	PromotionThreshold     float64 `yaml:"promotion_threshold"`
	RollbackThreshold      float64 `yaml:"rollback_threshold"`
	LookbackDays           int     `yaml:"lookback_days"`
	MaxConcurrentProperty  int     `yaml:"max_concurrent_property"`
}

// GridConfig controls the price-grid constructed by the optimizer.
type GridConfig struct {
	StepSize    float64 `yaml:"step_size"`
	MaxPoints   int     `yaml:"max_points"`
	SpreadRatio float64 `yaml:"spread_ratio"`
}

// LoggingConfig controls the obslog logger.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// Default returns the spec-mandated defaults; callers layer Load on top.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Cache: CacheConfig{
			TTL:     10 * time.Minute,
			Enabled: true,
		},
		Models: ModelsConfig{
			Root: "./data/models",
		},
		Retrain: RetrainConfig{
			MinDaysSinceTraining:  30,
			MinNewRecommendations: 50,
			DegradationThreshold:  0.20,
			PromotionThreshold:    0.05,
			RollbackThreshold:     -0.05,
			LookbackDays:          180,
			MaxConcurrentProperty: 4,
		},
		Grid: GridConfig{
			StepSize:    1.0,
			MaxPoints:   50,
			SpreadRatio: 0.4,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Load reads a YAML file at path onto the defaults, then applies the
// well-known environment variable overrides (so a container can tune the
// database DSN and cache address without baking a file into the image).
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, pricingerr.Configuration("failed to read config file", err).WithContext("path", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, pricingerr.Configuration("failed to parse config file", err).WithContext("path", path)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRICING_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("PRICING_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("PRICING_MODELS_ROOT"); v != "" {
		cfg.Models.Root = v
	}
}

// Validate fails fast on configuration that would make every downstream
// operation meaningless.
func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return pricingerr.Configuration("database DSN is required", nil)
	}
	if c.Models.Root == "" {
		return pricingerr.Configuration("models root directory is required", nil)
	}
	if c.Grid.MaxPoints <= 0 {
		return pricingerr.Configuration("grid.max_points must be positive", nil)
	}
	return nil
}
