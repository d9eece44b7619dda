// Package config loads server configuration from the environment via
// viper, grounded on Seednode-partybox/config.go's SetEnvPrefix/
// AutomaticEnv pattern. Unlike that teacher, this package intentionally
// drops the cobra/pflag CLI-flag layer: spec.md explicitly lists CLI
// wrappers among the out-of-scope external collaborators, so only the
// environment-variable surface is carried forward.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is every knob this server exposes, sourced from BOARDGO_*
// environment variables.
type Config struct {
	Host                  string
	Port                  int
	PackID                string
	PersistPath           string
	LogLevel              string
	IdempotencyCapacity   int
	RateLimitRPS          float64
	RateLimitBurst        int
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOARDGO")
	v.AutomaticEnv()

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("pack_id", "cardgame.reference")
	v.SetDefault("persist_path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("idempotency_capacity", 1000)
	v.SetDefault("rate_limit_rps", 0.0)
	v.SetDefault("rate_limit_burst", 5)

	cfg := &Config{
		Host:                v.GetString("host"),
		Port:                v.GetInt("port"),
		PackID:              v.GetString("pack_id"),
		PersistPath:         v.GetString("persist_path"),
		LogLevel:            v.GetString("log_level"),
		IdempotencyCapacity: v.GetInt("idempotency_capacity"),
		RateLimitRPS:        v.GetFloat64("rate_limit_rps"),
		RateLimitBurst:      v.GetInt("rate_limit_burst"),
	}

	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("config: port %d out of range", cfg.Port)
	}
	return cfg, nil
}
