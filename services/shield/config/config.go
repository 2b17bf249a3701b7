// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the shield service configuration.
//
// Configuration lives in ~/.aleutian/shield.yaml and is created with
// defaults on first run. Endpoint URLs and credentials may be overridden
// by environment variables so container deployments never need to edit
// the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the shield service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Routing   RoutingConfig   `yaml:"routing"`
	Tiers     TiersConfig     `yaml:"tiers"`
	Cache     CacheConfig     `yaml:"cache"`
	Memory    MemoryConfig    `yaml:"memory"`
	Providers ProvidersConfig `yaml:"providers"`
	Store     StoreConfig     `yaml:"store"`
	LogDir    string          `yaml:"log_dir"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

// AuthConfig controls the session lifecycle against the auth backend.
type AuthConfig struct {
	BaseURL  string `yaml:"base_url" validate:"required,url"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`

	// SessionTTL is a conservative local guess at the cookie session
	// lifetime. The backend does not advertise one.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// ExpiryBuffer re-authenticates this long before the recorded
	// expiry so no caller ever holds a token already past it.
	ExpiryBuffer time.Duration `yaml:"expiry_buffer"`

	Timeout time.Duration `yaml:"timeout"`
}

// RoutingConfig holds the confidence thresholds. They are configuration,
// not constants, so tuning never requires a redeploy of routing logic.
type RoutingConfig struct {
	HighConfidence   float64 `yaml:"high_confidence" validate:"gt=0,lte=1"`
	MediumConfidence float64 `yaml:"medium_confidence" validate:"gt=0,lte=1"`
}

// TiersConfig holds per-tier endpoints and timeouts.
type TiersConfig struct {
	Edge   EdgeTierConfig   `yaml:"edge"`
	Hybrid HybridTierConfig `yaml:"hybrid"`
	Deep   DeepTierConfig   `yaml:"deep"`
}

// EdgeTierConfig configures the on-device inference sidecar.
type EdgeTierConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// HybridTierConfig configures the threat-intelligence lookup.
type HybridTierConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DeepTierConfig configures the full scanning pipeline client.
type DeepTierConfig struct {
	BaseURL    string        `yaml:"base_url" validate:"required,url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries" validate:"min=0,max=10"`

	// RetryBackoff is the linear backoff unit: attempt n waits n*unit.
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// RatePerSecond bounds deep scans; the pipeline is expensive.
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// CacheConfig bounds the scan result cache.
type CacheConfig struct {
	Capacity int           `yaml:"capacity" validate:"min=1"`
	TTL      time.Duration `yaml:"ttl"`
}

// MemoryConfig configures the memory backend client.
type MemoryConfig struct {
	BaseURL       string        `yaml:"base_url" validate:"required,url"`
	Timeout       time.Duration `yaml:"timeout"`
	CacheCapacity int           `yaml:"cache_capacity" validate:"min=1"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

// ProvidersConfig configures the answer-generation chain, in order.
type ProvidersConfig struct {
	Primary  PrimaryProviderConfig `yaml:"primary"`
	Local    LocalProviderConfig   `yaml:"local"`
	OpenAI   OpenAIProviderConfig  `yaml:"openai"`
	MaxToken int                   `yaml:"max_tokens"`
}

// PrimaryProviderConfig is the networked inference service.
type PrimaryProviderConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// LocalProviderConfig is the llama.cpp-style offline fallback.
type LocalProviderConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// OpenAIProviderConfig is the cloud fallback of last resort.
type OpenAIProviderConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig configures the local key-value store.
type StoreConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 12310},
		Auth: AuthConfig{
			BaseURL:      "http://localhost:12300",
			SessionTTL:   24 * time.Hour,
			ExpiryBuffer: 300 * time.Second,
			Timeout:      10 * time.Second,
		},
		Routing: RoutingConfig{
			HighConfidence:   0.90,
			MediumConfidence: 0.70,
		},
		Tiers: TiersConfig{
			Edge: EdgeTierConfig{
				BaseURL: "http://localhost:12301",
				Timeout: 5 * time.Second,
			},
			Hybrid: HybridTierConfig{
				BaseURL: "http://localhost:12300",
				Timeout: 10 * time.Second,
			},
			Deep: DeepTierConfig{
				BaseURL:       "http://localhost:12302",
				Timeout:       60 * time.Second,
				MaxRetries:    2,
				RetryBackoff:  time.Second,
				RatePerSecond: 2,
			},
		},
		Cache: CacheConfig{
			Capacity: 256,
			TTL:      10 * time.Minute,
		},
		Memory: MemoryConfig{
			BaseURL:       "http://localhost:12303",
			Timeout:       10 * time.Second,
			CacheCapacity: 64,
			CacheTTL:      5 * time.Minute,
		},
		Providers: ProvidersConfig{
			Primary: PrimaryProviderConfig{
				BaseURL: "http://localhost:12304",
				Timeout: 30 * time.Second,
			},
			Local: LocalProviderConfig{
				BaseURL: "http://localhost:8080",
				Timeout: 30 * time.Second,
			},
			OpenAI: OpenAIProviderConfig{
				Model:   "gpt-4o-mini",
				Timeout: 30 * time.Second,
			},
			MaxToken: 1024,
		},
		Store:  StoreConfig{Path: "~/.aleutian/shield-store"},
		LogDir: "~/.aleutian/logs",
	}
}

// Load reads the config at path, creating it with defaults on first run.
// An empty path means ~/.aleutian/shield.yaml. Environment overrides are
// applied after parsing and the result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not find the user's home directory: %w", err)
		}
		path = filepath.Join(home, ".aleutian", "shield.yaml")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse the config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// applyEnvOverrides lets deployments point at different backends and
// inject credentials without touching the config file.
func applyEnvOverrides(cfg *Config) {
	overrides := map[string]*string{
		"SHIELD_AUTH_URL":      &cfg.Auth.BaseURL,
		"SHIELD_AUTH_EMAIL":    &cfg.Auth.Email,
		"SHIELD_AUTH_PASSWORD": &cfg.Auth.Password,
		"SHIELD_EDGE_URL":      &cfg.Tiers.Edge.BaseURL,
		"SHIELD_TI_URL":        &cfg.Tiers.Hybrid.BaseURL,
		"SHIELD_SCANNER_URL":   &cfg.Tiers.Deep.BaseURL,
		"SHIELD_MEMORY_URL":    &cfg.Memory.BaseURL,
		"SHIELD_INFERENCE_URL": &cfg.Providers.Primary.BaseURL,
		"SHIELD_INFERENCE_KEY": &cfg.Providers.Primary.APIKey,
		"SHIELD_LOCAL_LLM_URL": &cfg.Providers.Local.BaseURL,
		"OPENAI_API_KEY":       &cfg.Providers.OpenAI.APIKey,
		"OPENAI_MODEL":         &cfg.Providers.OpenAI.Model,
		"SHIELD_STORE_PATH":    &cfg.Store.Path,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}
