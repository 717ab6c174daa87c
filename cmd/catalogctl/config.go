package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type runConfig struct {
	CatalogPath   string
	Ticks         int
	JoinTick      int
	Interval      time.Duration
	ConsumerOrder []string
	AdminAddr     string
	CorsOrigins   []string
}

type fileConfig struct {
	Catalog       string   `toml:"catalog"`
	Ticks         int      `toml:"ticks"`
	JoinTick      int      `toml:"join_tick"`
	Interval      string   `toml:"interval"`
	IntervalMS    int64    `toml:"interval_ms"`
	ConsumerOrder []string `toml:"consumer_order"`
	AdminAddr     string   `toml:"admin_addr"`
	CorsOrigins   []string `toml:"cors_origins"`
}

func defaultRunConfig() runConfig {
	return runConfig{
		CorsOrigins: []string{"http://localhost:3000"},
	}
}

// loadRunConfig overlays the keys present in path onto the defaults. A
// relative catalog path is resolved against the config file's directory.
func loadRunConfig(path string) (runConfig, error) {
	cfg := defaultRunConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runConfig{}, fmt.Errorf("load catalogctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return runConfig{}, fmt.Errorf("load catalogctl config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("catalog") {
		catalog := strings.TrimSpace(raw.Catalog)
		if catalog != "" && !filepath.IsAbs(catalog) {
			catalog = filepath.Join(filepath.Dir(path), catalog)
		}
		cfg.CatalogPath = catalog
	}

	if meta.IsDefined("ticks") {
		if raw.Ticks < 0 {
			return runConfig{}, fmt.Errorf("ticks must not be negative: %d", raw.Ticks)
		}
		cfg.Ticks = raw.Ticks
	}

	if meta.IsDefined("join_tick") {
		cfg.JoinTick = raw.JoinTick
	}

	if meta.IsDefined("interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Interval))
		if err != nil {
			return runConfig{}, fmt.Errorf("parse interval: %w", err)
		}
		cfg.Interval = d
	}

	if meta.IsDefined("interval_ms") {
		cfg.Interval = time.Duration(raw.IntervalMS) * time.Millisecond
	}

	if meta.IsDefined("consumer_order") {
		cfg.ConsumerOrder = normalizeNames(raw.ConsumerOrder)
	}

	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}

	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeNames(raw.CorsOrigins)
	}

	return cfg, nil
}

func normalizeNames(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, name := range in {
		v := strings.TrimSpace(name)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
