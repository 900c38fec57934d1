// Package config holds runtime configuration, loaded from the environment
// with an optional YAML file underneath.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	RedisURL         string
	AutosaveInterval time.Duration
	DefaultTitle     string
	HistoryEnabled   bool
	HistoryDir       string
	SearchEnabled    bool
	MeiliURL         string
	MeiliMasterKey   string
}

// fileConfig mirrors Config for YAML decoding. Pointer fields distinguish
// "absent" from "set to the zero value".
type fileConfig struct {
	RedisURL        *string `yaml:"redis_url"`
	AutosaveSeconds *int    `yaml:"autosave_seconds"`
	DefaultTitle    *string `yaml:"default_title"`
	HistoryEnabled  *bool   `yaml:"history_enabled"`
	HistoryDir      *string `yaml:"history_dir"`
	SearchEnabled   *bool   `yaml:"search_enabled"`
	MeiliURL        *string `yaml:"meili_url"`
	MeiliMasterKey  *string `yaml:"meili_master_key"`
}

// Load reads configuration from environment variables, falling back to
// development defaults.
func Load() Config {
	return Config{
		RedisURL:         getenv("REDIS_URL", "redis://localhost:6379/0"),
		AutosaveInterval: time.Duration(getenvInt("DRAFTDESK_AUTOSAVE_SECONDS", 2)) * time.Second,
		DefaultTitle:     getenv("DRAFTDESK_DEFAULT_TITLE", "Untitled document"),
		HistoryEnabled:   getenvBool("DRAFTDESK_HISTORY_ENABLED", false),
		HistoryDir:       getenv("DRAFTDESK_HISTORY_DIR", "./data/history"),
		SearchEnabled:    getenvBool("DRAFTDESK_SEARCH_ENABLED", false),
		MeiliURL:         getenv("MEILI_URL", "http://localhost:7700"),
		MeiliMasterKey:   getenv("MEILI_MASTER_KEY", ""),
	}
}

// LoadFile reads a YAML config file and applies environment variables on
// top, so the environment always wins.
func LoadFile(path string) (Config, error) {
	cfg := Load()

	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config file: %w", err)
	}
	defer file.Close()

	var ff fileConfig
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&ff); err != nil {
		return Config{}, fmt.Errorf("decode config file: %w", err)
	}

	// File values apply only where the environment is silent.
	if ff.RedisURL != nil && !envSet("REDIS_URL") {
		cfg.RedisURL = *ff.RedisURL
	}
	if ff.AutosaveSeconds != nil && !envSet("DRAFTDESK_AUTOSAVE_SECONDS") {
		cfg.AutosaveInterval = time.Duration(*ff.AutosaveSeconds) * time.Second
	}
	if ff.DefaultTitle != nil && !envSet("DRAFTDESK_DEFAULT_TITLE") {
		cfg.DefaultTitle = *ff.DefaultTitle
	}
	if ff.HistoryEnabled != nil && !envSet("DRAFTDESK_HISTORY_ENABLED") {
		cfg.HistoryEnabled = *ff.HistoryEnabled
	}
	if ff.HistoryDir != nil && !envSet("DRAFTDESK_HISTORY_DIR") {
		cfg.HistoryDir = *ff.HistoryDir
	}
	if ff.SearchEnabled != nil && !envSet("DRAFTDESK_SEARCH_ENABLED") {
		cfg.SearchEnabled = *ff.SearchEnabled
	}
	if ff.MeiliURL != nil && !envSet("MEILI_URL") {
		cfg.MeiliURL = *ff.MeiliURL
	}
	if ff.MeiliMasterKey != nil && !envSet("MEILI_MASTER_KEY") {
		cfg.MeiliMasterKey = *ff.MeiliMasterKey
	}
	return cfg, nil
}

func envSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
