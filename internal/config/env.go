package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PETNOTIFY_"

// envOverrides lists the settings deployments usually inject from the
// environment instead of the config file (secrets, addresses, paths).
type envOverrides struct {
	HTTPAddr      string `env:"HTTP_ADDR"`
	JWTSecret     string `env:"JWT_SECRET"`
	InternalToken string `env:"INTERNAL_TOKEN"`
	StorageDriver string `env:"STORAGE_DRIVER"`
	StoragePath   string `env:"STORAGE_PATH"`
	LogLevel      string `env:"LOG_LEVEL"`
	Timezone      string `env:"TIMEZONE"`
}

// ApplyEnv overlays PETNOTIFY_* variables onto cfg. A nil environ reads the
// process environment.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	if cfg == nil {
		return nil
	}
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	var o envOverrides
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&cfg.HTTP.Addr, o.HTTPAddr)
	set(&cfg.Auth.JWTSecret, o.JWTSecret)
	set(&cfg.Auth.InternalToken, o.InternalToken)
	set(&cfg.Storage.Driver, o.StorageDriver)
	set(&cfg.Storage.Path, o.StoragePath)
	set(&cfg.Logging.Level, o.LogLevel)
	set(&cfg.Scheduler.Timezone, o.Timezone)
	return nil
}
