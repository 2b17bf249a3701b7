// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoad_FirstRunWritesDefaults tests that a missing config file is
// created and loads as the defaults.
func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shield.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 12310 {
		t.Errorf("Port = %d, want 12310", cfg.Server.Port)
	}
	if cfg.Auth.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want 24h", cfg.Auth.SessionTTL)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default config file was not written: %v", err)
	}
}

// TestLoad_FileOverridesDefaults tests partial YAML merging over the
// defaults.
func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shield.yaml")
	contents := `
server:
  port: 9999
routing:
  high_confidence: 0.95
  medium_confidence: 0.75
`
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Routing.HighConfidence != 0.95 {
		t.Errorf("HighConfidence = %v, want 0.95", cfg.Routing.HighConfidence)
	}
	// Untouched sections keep their defaults.
	if cfg.Tiers.Deep.Timeout != 60*time.Second {
		t.Errorf("Deep.Timeout = %v, want default 60s", cfg.Tiers.Deep.Timeout)
	}
}

// TestLoad_EnvOverrides tests that environment variables win over the
// file for endpoints and credentials.
func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shield.yaml")
	t.Setenv("SHIELD_AUTH_URL", "http://auth.internal:12300")
	t.Setenv("SHIELD_AUTH_PASSWORD", "hunter2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.BaseURL != "http://auth.internal:12300" {
		t.Errorf("Auth.BaseURL = %s, want the env value", cfg.Auth.BaseURL)
	}
	if cfg.Auth.Password != "hunter2" {
		t.Errorf("Auth.Password not taken from the environment")
	}
}

// TestLoad_RejectsInvalidConfig tests struct validation.
func TestLoad_RejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shield.yaml")
	contents := `
server:
  port: 70000
`
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("want error for out-of-range port")
	}
}

// TestDefaultConfig_IsValid tests that the shipped defaults pass their
// own validation.
func TestDefaultConfig_IsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shield.yaml")
	if _, err := Load(path); err != nil {
		t.Errorf("default configuration should validate: %v", err)
	}
}
