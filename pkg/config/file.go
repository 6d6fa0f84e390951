package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the subset of Config that may be set from a YAML file.
// Pointer fields distinguish "absent" from a zero value.
type fileConfig struct {
	Port      *string `yaml:"port"`
	Env       *string `yaml:"env"`
	LogLevel  *string `yaml:"log_level"`
	LogFormat *string `yaml:"log_format"`
	Metrics   *bool   `yaml:"metrics_enabled"`

	Watchlist []string `yaml:"watchlist"`

	Feed *struct {
		BaseURL   *string  `yaml:"base_url"`
		URL       *string  `yaml:"url"`
		Referer   *string  `yaml:"referer"`
		UserAgent *string  `yaml:"user_agent"`
		Timeout   *string  `yaml:"timeout"`
		RateLimit *float64 `yaml:"rate_limit"`
	} `yaml:"feed"`

	Reference *struct {
		Source   *string `yaml:"source"`
		Path     *string `yaml:"path"`
		URL      *string `yaml:"url"`
		Table    *string `yaml:"table"`
		CacheTTL *string `yaml:"cache_ttl"`
		Schedule *string `yaml:"schedule"`
	} `yaml:"reference"`

	Refresh *struct {
		Interval        *string `yaml:"interval"`
		MaxBackoff      *string `yaml:"max_backoff"`
		BreakerFailures *int    `yaml:"breaker_failures"`
		BreakerTimeout  *string `yaml:"breaker_timeout"`
		MirrorTTL       *string `yaml:"snapshot_mirror_ttl"`
	} `yaml:"refresh"`

	Market *struct {
		Timezone *string `yaml:"timezone"`
	} `yaml:"market"`

	Redis *struct {
		Host    *string `yaml:"host"`
		Port    *string `yaml:"port"`
		DB      *int    `yaml:"db"`
		Enabled *bool   `yaml:"enabled"`
	} `yaml:"redis"`
}

// applyFile overlays values from a YAML file onto cfg.
// Unknown keys are rejected so typos surface at startup.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return applyYAML(cfg, data)
}

func applyYAML(cfg *Config, data []byte) error {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	setString(&cfg.Port, fc.Port)
	setString(&cfg.Env, fc.Env)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	if fc.Metrics != nil {
		cfg.MetricsEnabled = *fc.Metrics
	}

	if fc.Watchlist != nil {
		cfg.Watchlist = fc.Watchlist
	}

	if f := fc.Feed; f != nil {
		setString(&cfg.Feed.BaseURL, f.BaseURL)
		setString(&cfg.Feed.URL, f.URL)
		setString(&cfg.Feed.Referer, f.Referer)
		setString(&cfg.Feed.UserAgent, f.UserAgent)
		if err := setDuration(&cfg.Feed.Timeout, f.Timeout, "feed.timeout"); err != nil {
			return err
		}
		if f.RateLimit != nil {
			cfg.Feed.RateLimit = *f.RateLimit
		}
	}

	if r := fc.Reference; r != nil {
		setString(&cfg.Reference.Source, r.Source)
		setString(&cfg.Reference.Path, r.Path)
		setString(&cfg.Reference.URL, r.URL)
		setString(&cfg.Reference.Table, r.Table)
		setString(&cfg.Reference.Schedule, r.Schedule)
		if err := setDuration(&cfg.Reference.CacheTTL, r.CacheTTL, "reference.cache_ttl"); err != nil {
			return err
		}
	}

	if r := fc.Refresh; r != nil {
		if err := setDuration(&cfg.Refresh.Interval, r.Interval, "refresh.interval"); err != nil {
			return err
		}
		if err := setDuration(&cfg.Refresh.MaxBackoff, r.MaxBackoff, "refresh.max_backoff"); err != nil {
			return err
		}
		if err := setDuration(&cfg.Refresh.BreakerTimeout, r.BreakerTimeout, "refresh.breaker_timeout"); err != nil {
			return err
		}
		if err := setDuration(&cfg.Refresh.SnapshotMirrorTTL, r.MirrorTTL, "refresh.snapshot_mirror_ttl"); err != nil {
			return err
		}
		if r.BreakerFailures != nil {
			cfg.Refresh.BreakerFailures = *r.BreakerFailures
		}
	}

	if m := fc.Market; m != nil {
		setString(&cfg.Market.Timezone, m.Timezone)
	}

	if r := fc.Redis; r != nil {
		setString(&cfg.Redis.Host, r.Host)
		setString(&cfg.Redis.Port, r.Port)
		if r.DB != nil {
			cfg.Redis.DB = *r.DB
		}
		if r.Enabled != nil {
			cfg.Redis.Enabled = *r.Enabled
		}
	}

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, field string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}
