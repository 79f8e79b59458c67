package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string   `mapstructure:"PORT"`
	Env             string   `mapstructure:"ENV"`
	WarehousePath   string   `mapstructure:"WAREHOUSE_PATH"`
	ModelDir        string   `mapstructure:"MODEL_DIR"`
	StaticDir       string   `mapstructure:"STATIC_DIR"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
	Seed            int64    `mapstructure:"SEED"`
	PatientCount    int      `mapstructure:"PATIENT_COUNT"`
	VisitCount      int      `mapstructure:"VISIT_COUNT"`
	CacheTTLSeconds int      `mapstructure:"CACHE_TTL_SECONDS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("WAREHOUSE_PATH", "data/hospital_warehouse.db")
	v.SetDefault("MODEL_DIR", "data/models")
	v.SetDefault("STATIC_DIR", "web/static")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("SEED", 42)
	v.SetDefault("PATIENT_COUNT", 5000)
	v.SetDefault("VISIT_COUNT", 15000)
	v.SetDefault("CACHE_TTL_SECONDS", 60)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("WAREHOUSE_PATH")
	v.BindEnv("MODEL_DIR")
	v.BindEnv("STATIC_DIR")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("SEED")
	v.BindEnv("PATIENT_COUNT")
	v.BindEnv("VISIT_COUNT")
	v.BindEnv("CACHE_TTL_SECONDS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks the configuration before either the server or the
// pipeline runs.
func (c *Config) Validate() error {
	if c.WarehousePath == "" {
		return fmt.Errorf("WAREHOUSE_PATH is required")
	}
	if c.ModelDir == "" {
		return fmt.Errorf("MODEL_DIR is required")
	}
	if c.PatientCount <= 0 {
		return fmt.Errorf("PATIENT_COUNT must be positive, got %d", c.PatientCount)
	}
	if c.VisitCount <= 0 {
		return fmt.Errorf("VISIT_COUNT must be positive, got %d", c.VisitCount)
	}
	if c.CacheTTLSeconds < 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must not be negative, got %d", c.CacheTTLSeconds)
	}
	return nil
}
