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
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	applog "mattydesign/internal/log"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// The session credential is never stored here; it lives in the OS keychain.

type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
}

type EditorConfig struct {
	Width        int    `yaml:"width"`
	Height       int    `yaml:"height"`
	Background   string `yaml:"background"`
	ExportPrefix string `yaml:"export_prefix"`
	ExportDir    string `yaml:"export_dir"` // empty means the current directory
}

type CacheConfig struct {
	// Driver is sqlite (default), postgres or memory.
	Driver string `yaml:"driver"`
	// Path of the SQLite design cache. Empty resolves next to the config file.
	Path string `yaml:"path"`
	// DSN of the PostgreSQL cache, used when Driver is postgres.
	DSN string `yaml:"dsn"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Backend       BackendConfig `yaml:"backend"`
	Editor        EditorConfig  `yaml:"editor"`
	Cache         CacheConfig   `yaml:"cache"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Backend:       BackendConfig{BaseURL: "http://localhost:5000/api", TimeoutMs: 15000},
		Editor: EditorConfig{
			Width:        800,
			Height:       600,
			Background:   "#ffffff",
			ExportPrefix: "matty-design",
		},
		Cache:   CacheConfig{Driver: "sqlite"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "MDE_CONFIG"
	EnvBackendURL       = "MDE_BACKEND_URL"
	EnvBackendTimeoutMs = "MDE_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec  = "MDE_TLS_INSECURE"
	EnvExportDir        = "MDE_EXPORT_DIR"
	EnvCacheDriver      = "MDE_CACHE_DRIVER"
	EnvCachePath        = "MDE_CACHE_PATH"
	EnvCacheDSN         = "MDE_CACHE_DSN"
	EnvLogLevel         = "MDE_LOG_LEVEL"
	EnvLogFormat        = "MDE_LOG_FORMAT"
	EnvLogSource        = "MDE_LOG_SOURCE"
	EnvLogFile          = "MDE_LOG_FILE"
)

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "MattyDesign")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "MattyDesign")
	default:
		home := os.Getenv("HOME")
		if home == "" {
			return "", errors.New("cannot resolve config directory")
		}
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "mattydesign")
		} else {
			base = filepath.Join(home, ".config", "mattydesign")
		}
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// A malformed file is ignored in favour of defaults, mirroring a first start.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		} else {
			applog.WithComponent("config").Warn("ignoring malformed config", "path", path, "err", err)
		}
	}
	applyEnvOverrides(&cfg)
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = filepath.Join(filepath.Dir(path), "designs.sqlite")
	}
	return cfg, nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if s := strings.TrimSpace(src.Backend.BaseURL); s != "" {
		dst.Backend.BaseURL = s
	}
	if src.Backend.TimeoutMs > 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	dst.Backend.TLSInsecure = src.Backend.TLSInsecure
	if src.Editor.Width > 0 {
		dst.Editor.Width = src.Editor.Width
	}
	if src.Editor.Height > 0 {
		dst.Editor.Height = src.Editor.Height
	}
	if s := strings.TrimSpace(src.Editor.Background); s != "" {
		dst.Editor.Background = s
	}
	if s := strings.TrimSpace(src.Editor.ExportPrefix); s != "" {
		dst.Editor.ExportPrefix = s
	}
	if s := strings.TrimSpace(src.Editor.ExportDir); s != "" {
		dst.Editor.ExportDir = s
	}
	if s := strings.TrimSpace(src.Cache.Driver); s != "" {
		dst.Cache.Driver = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Cache.Path); s != "" {
		dst.Cache.Path = s
	}
	if s := strings.TrimSpace(src.Cache.DSN); s != "" {
		dst.Cache.DSN = s
	}
	if s := strings.TrimSpace(src.Logging.Level); s != "" {
		dst.Logging.Level = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Logging.Format); s != "" {
		dst.Logging.Format = strings.ToLower(s)
	}
	dst.Logging.Source = src.Logging.Source
	if s := strings.TrimSpace(src.Logging.File); s != "" {
		dst.Logging.File = s
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTLSInsec)); v != "" {
		cfg.Backend.TLSInsecure = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvExportDir)); v != "" {
		cfg.Editor.ExportDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCacheDriver)); v != "" {
		cfg.Cache.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvCachePath)); v != "" {
		cfg.Cache.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCacheDSN)); v != "" {
		cfg.Cache.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"backend.base_url":     EnvBackendURL,
		"backend.timeout_ms":   EnvBackendTimeoutMs,
		"backend.tls_insecure": EnvBackendTLSInsec,
		"editor.export_dir":    EnvExportDir,
		"cache.driver":         EnvCacheDriver,
		"cache.path":           EnvCachePath,
		"cache.dsn":            EnvCacheDSN,
		"logging.level":        EnvLogLevel,
		"logging.format":       EnvLogFormat,
		"logging.source":       EnvLogSource,
		"logging.file":         EnvLogFile,
	}
	name, ok := names[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Timeout returns the backend request timeout, falling back to the default.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// Options converts the logging section into logger options.
func (l LoggingConfig) Options() applog.Options {
	return applog.Options{Level: l.Level, Format: l.Format, AddSource: l.Source, File: l.File}
}
