/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points the config path at a fresh temp dir so tests never read the developer's file.
func isolate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, path)
	for _, k := range []string{EnvBackendURL, EnvBackendTimeoutMs, EnvBackendTLSInsec, EnvExportDir, EnvCacheDriver, EnvCachePath, EnvCacheDSN, EnvLogLevel, EnvLogFormat, EnvLogSource, EnvLogFile} {
		t.Setenv(k, "")
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	path := isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Backend.BaseURL != "http://localhost:5000/api" {
		t.Fatalf("BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Editor.Width != 800 || cfg.Editor.Height != 600 || cfg.Editor.ExportPrefix != "matty-design" {
		t.Fatalf("editor defaults wrong: %+v", cfg.Editor)
	}
	if want := filepath.Join(filepath.Dir(path), "designs.sqlite"); cfg.Cache.Path != want {
		t.Fatalf("Cache.Path = %q, want %q", cfg.Cache.Path, want)
	}
}

func TestEnvOverridesBackendURL(t *testing.T) {
	isolate(t)
	t.Setenv(EnvBackendURL, "https://example.test:8443/api")
	t.Setenv(EnvBackendTimeoutMs, "2500")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Backend.BaseURL, "https://example.test:8443/api"; got != want {
		t.Fatalf("Backend.BaseURL = %q, want %q", got, want)
	}
	if cfg.Backend.Timeout() != 2500*time.Millisecond {
		t.Fatalf("Timeout = %v", cfg.Backend.Timeout())
	}
	if name, ok := EnvOverrideFor("backend.base_url"); !ok || name != EnvBackendURL {
		t.Fatalf("EnvOverrideFor = %q %v", name, ok)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Editor.Width = 1024
	cfg.Editor.ExportDir = "/tmp/exports"
	cfg.Logging.Level = "debug"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Editor.Width != 1024 || got.Editor.Height != 600 || got.Editor.ExportDir != "/tmp/exports" || got.Logging.Level != "debug" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestMalformedFileFallsBackToDefaults(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("backend: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != Defaults().Backend.BaseURL {
		t.Fatalf("expected defaults, got %+v", cfg.Backend)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "DEBUG"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/mde.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/mde.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
	opts := dst.Logging.Options()
	if opts.Level != "debug" || !opts.AddSource || opts.File != "/tmp/mde.log" {
		t.Fatalf("Options() mismatch: %+v", opts)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/var/tmp/mde.log")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/var/tmp/mde.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestEnvOverridesCacheDriver(t *testing.T) {
	isolate(t)
	t.Setenv(EnvCacheDriver, "Postgres")
	t.Setenv(EnvCacheDSN, "postgres://u:p@db/matty")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.Driver != "postgres" || cfg.Cache.DSN != "postgres://u:p@db/matty" {
		t.Fatalf("cache overrides not applied: %+v", cfg.Cache)
	}
	if Defaults().Cache.Driver != "sqlite" {
		t.Fatalf("default cache driver should be sqlite")
	}
}
