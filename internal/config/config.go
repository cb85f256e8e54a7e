// Package config layers mnemo's settings: built-in defaults, then an
// optional YAML file, then MNEMO_-prefixed environment variables, then
// command-line flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Study holds the session-shaping knobs.
type Study struct {
	TestLimit          int     `koanf:"test-limit"`
	CardTimeoutSeconds int     `koanf:"card-timeout"`
	NewCardHorizonDays int     `koanf:"new-card-horizon-days"`
	MinutesPerCard     float64 `koanf:"minutes-per-card"`
}

// Config is the resolved process configuration.
type Config struct {
	DB       string `koanf:"db"`
	Listen   string `koanf:"listen"`
	ReposDir string `koanf:"repos-dir"`
	Study    Study  `koanf:"study"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DB:       "mnemo.db",
		Listen:   ":8484",
		ReposDir: "repos",
		Study: Study{
			TestLimit:          30,
			CardTimeoutSeconds: 30,
			NewCardHorizonDays: 7,
			MinutesPerCard:     1.5,
		},
	}
}

// CardTimeout converts the configured per-card countdown to a duration.
func (s Study) CardTimeout() time.Duration {
	return time.Duration(s.CardTimeoutSeconds) * time.Second
}

// Load resolves the configuration. path is the YAML file to read; a
// missing file is not an error so the tool works out of the box.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return cfg, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: "MNEMO_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "MNEMO_"))
			key = strings.ReplaceAll(key, "__", ".")
			key = strings.ReplaceAll(key, "_", "-")
			return key, value
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return cfg, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return cfg, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
