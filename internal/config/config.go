package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration (file + env overrides)
type Config struct {
	Server struct {
		Addr     string `mapstructure:"addr"`
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"server"`

	API struct {
		BaseURL        string `mapstructure:"base_url"`
		AppID          string `mapstructure:"app_id"`
		AccountID      string `mapstructure:"account_id"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"api"`

	Engine struct {
		CacheTTLMinutes  int    `mapstructure:"cache_ttl_minutes"`
		DebounceMillis   int    `mapstructure:"debounce_millis"`
		OfflineStorePath string `mapstructure:"offline_store_path"`
	} `mapstructure:"engine"`
}

func Load() Config {
	v := viper.New()
	v.SetConfigName("application")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	_ = v.ReadInConfig() // optional; env can fully configure

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}
	validate(&cfg)
	return cfg
}

func validate(c *Config) {
	if c.Server.Addr == "" { c.Server.Addr = ":8080" }
	if c.API.BaseURL == "" { c.API.BaseURL = "https://backend.appstorys.com" }
	if c.API.TimeoutSeconds <= 0 { c.API.TimeoutSeconds = 10 }
	if c.Engine.CacheTTLMinutes <= 0 { c.Engine.CacheTTLMinutes = 15 }
	if c.Engine.DebounceMillis <= 0 { c.Engine.DebounceMillis = 50 }
	if c.Engine.OfflineStorePath == "" { c.Engine.OfflineStorePath = "appstorys.db" }
}

func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Engine.CacheTTLMinutes) * time.Minute
}

func (c Config) Debounce() time.Duration {
	return time.Duration(c.Engine.DebounceMillis) * time.Millisecond
}
