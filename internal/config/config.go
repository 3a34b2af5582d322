// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for adkchat.
//
// Supports TOML, YAML and JSON configuration formats, with sensible defaults,
// .env files, environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.adkchat/config.toml
//   - ~/.adkchat/config.yaml
//   - ~/.adkchat/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/prefs"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/util"
)

// CurrentVersion is written into new config files.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete adkchat configuration.
type Config struct {
	Version string `toml:"version" json:"version" yaml:"version"`

	// Server identifies the ADK backend and conversation.
	Server ServerConfig `toml:"server" json:"server" yaml:"server"`

	// Chat holds presentation and send settings.
	Chat ChatSettings `toml:"chat" json:"chat" yaml:"chat"`

	// Transport tunes the HTTP client.
	Transport TransportConfig `toml:"transport" json:"transport" yaml:"transport"`

	// Storage selects where chat preferences persist.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`
	UI      UIConfig      `toml:"ui" json:"ui" yaml:"ui"`
}

// ServerConfig contains the backend address and conversation identity.
type ServerConfig struct {
	// APIURL is the ADK server base URL, e.g. http://localhost:8000
	APIURL    string `toml:"api_url" json:"api_url" yaml:"api_url"`
	AppName   string `toml:"app_name" json:"app_name" yaml:"app_name"`
	UserID    string `toml:"user_id" json:"user_id" yaml:"user_id"`
	SessionID string `toml:"session_id" json:"session_id" yaml:"session_id"`
}

// ChatSettings contains chat behavior configuration.
type ChatSettings struct {
	// ResponseMode is "stream" or "standard"
	ResponseMode string `toml:"response_mode" json:"response_mode" yaml:"response_mode"`
	// Mode is the display layout: "fullscreen" or "widget"
	Mode  string `toml:"mode" json:"mode" yaml:"mode"`
	Title string `toml:"title" json:"title" yaml:"title"`
	// SendLimit is the number of sends allowed per SendWindowSecs (0 = unlimited)
	SendLimit      int `toml:"send_limit" json:"send_limit" yaml:"send_limit"`
	SendWindowSecs int `toml:"send_window_secs" json:"send_window_secs" yaml:"send_window_secs"`
}

// TransportConfig contains HTTP client configuration.
type TransportConfig struct {
	// TimeoutSecs bounds each request attempt
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs"`
	// MaxRetries is the number of retries after the first attempt
	MaxRetries            int    `toml:"max_retries" json:"max_retries" yaml:"max_retries"`
	RetryBaseDelayMs      int    `toml:"retry_base_delay_ms" json:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs       int    `toml:"retry_max_delay_ms" json:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
	RateLimitFallbackSecs int    `toml:"rate_limit_fallback_secs" json:"rate_limit_fallback_secs" yaml:"rate_limit_fallback_secs"`
	UserAgent             string `toml:"user_agent" json:"user_agent" yaml:"user_agent"`
}

// StorageConfig contains preference persistence configuration.
type StorageConfig struct {
	// Backend is "sqlite", "pebble" or "memory"
	Backend string `toml:"backend" json:"backend" yaml:"backend"`
	// Path is the database location (empty = inside the config directory)
	Path string `toml:"path" json:"path" yaml:"path"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `toml:"level" json:"level" yaml:"level"`
	// Format is "text" or "json"
	Format string `toml:"format" json:"format" yaml:"format"`
	// File is the log file used by interactive commands (empty = ~/.adkchat/adkchat.log)
	File string `toml:"file" json:"file" yaml:"file"`
}

// MetricsConfig contains Prometheus exposition configuration.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Addr    string `toml:"addr" json:"addr" yaml:"addr"`
}

// UIConfig contains terminal UI preferences.
type UIConfig struct {
	// Theme is "dark", "light" or "auto"
	Theme          string `toml:"theme" json:"theme" yaml:"theme"`
	ShowTimestamps bool   `toml:"show_timestamps" json:"show_timestamps" yaml:"show_timestamps"`
	RenderMarkdown bool   `toml:"render_markdown" json:"render_markdown" yaml:"render_markdown"`
	CompactMode    bool   `toml:"compact_mode" json:"compact_mode" yaml:"compact_mode"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Server: ServerConfig{
			APIURL:    model.DefaultAPIBaseURL,
			AppName:   model.DefaultAppName,
			UserID:    model.DefaultUserID,
			SessionID: model.DefaultSessionID,
		},
		Chat: ChatSettings{
			ResponseMode:   string(model.ResponseModeStream),
			Mode:           string(model.ChatModeFullscreen),
			Title:          model.DefaultTitle,
			SendLimit:      10,
			SendWindowSecs: 60,
		},
		Transport: TransportConfig{
			TimeoutSecs:           30,
			MaxRetries:            3,
			RetryBaseDelayMs:      1000,
			RetryMaxDelayMs:       10000,
			RateLimitFallbackSecs: 5,
			UserAgent:             "adkchat/1.0",
		},
		Storage: StorageConfig{
			Backend: prefs.BackendSQLite,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		UI: UIConfig{
			Theme:          "auto",
			ShowTimestamps: true,
			RenderMarkdown: true,
		},
	}
}

// ChatConfig returns the backend identity and response mode as the
// model type used by the client and store.
func (c *Config) ChatConfig() model.ChatConfig {
	return model.ChatConfig{
		APIBaseURL:   c.Server.APIURL,
		AppName:      c.Server.AppName,
		UserID:       c.Server.UserID,
		SessionID:    c.Server.SessionID,
		ResponseMode: model.ResponseMode(c.Chat.ResponseMode),
	}
}

// Timeout returns the per-attempt request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Transport.TimeoutSecs) * time.Second
}

// RetryBaseDelay returns the first retry delay.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Transport.RetryBaseDelayMs) * time.Millisecond
}

// RetryMaxDelay returns the retry delay cap.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Transport.RetryMaxDelayMs) * time.Millisecond
}

// RateLimitFallback returns the wait used for a 429 without Retry-After.
func (c *Config) RateLimitFallback() time.Duration {
	return time.Duration(c.Transport.RateLimitFallbackSecs) * time.Second
}

// SendWindow returns the send limiter window.
func (c *Config) SendWindow() time.Duration {
	return time.Duration(c.Chat.SendWindowSecs) * time.Second
}

// StorageSpec returns the "backend:path" string accepted by prefs.Open.
// An empty path resolves inside the config directory.
func (c *Config) StorageSpec() (string, error) {
	backend := strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if backend == prefs.BackendMemory {
		return prefs.BackendMemory, nil
	}
	path := c.Storage.Path
	if path == "" {
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		switch backend {
		case prefs.BackendPebble:
			path = filepath.Join(dir, "prefs.pebble")
		default:
			path = filepath.Join(dir, "prefs.db")
		}
	}
	return backend + ":" + path, nil
}

// LogFile returns the log file path for interactive commands.
func (c *Config) LogFile() (string, error) {
	if c.Logging.File != "" {
		return c.Logging.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "adkchat.log"), nil
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// HomeEnv overrides the configuration directory.
const HomeEnv = "ADKCHAT_HOME"

// ConfigDir returns the adkchat configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".adkchat"), nil
}

func configPath(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) { return configPath("config.toml") }

// ConfigPathYAML returns the path to the YAML config file.
func ConfigPathYAML() (string, error) { return configPath("config.yaml") }

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) { return configPath("config.json") }

// FindConfigFile returns the config file Load would read: the first of
// TOML, YAML and JSON that exists, else the TOML path.
func FindConfigFile() (string, error) {
	for _, find := range []func() (string, error){ConfigPathTOML, ConfigPathYAML, ConfigPathJSON} {
		path, err := find()
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return ConfigPathTOML()
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only).
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv loads .env from the working directory and from the config
// directory. Variables already set in the environment win; missing files
// are ignored.
func LoadDotEnv() {
	_ = godotenv.Load(".env")
	if dir, err := ConfigDir(); err == nil {
		_ = godotenv.Load(filepath.Join(dir, ".env"))
	}
}

// Load loads configuration from the first config file found in the config
// directory, trying TOML, then YAML, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	LoadDotEnv()

	finders := []func() (string, error){ConfigPathTOML, ConfigPathYAML, ConfigPathJSON}
	var loadErr error
	for _, find := range finders {
		path, err := find()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg := Default()
		if err := loadFile(cfg, path); err != nil {
			loadErr = err
			continue
		}
		if err := finish(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg := Default()
	if err := finish(cfg); err != nil {
		return nil, err
	}
	// Defaults are usable even when a file failed to parse.
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file with full validation.
// The format follows the file extension; anything unknown is read as TOML.
func LoadFromPath(path string) (*Config, error) {
	LoadDotEnv()

	cfg := Default()
	if err := loadFile(cfg, path); err != nil {
		return nil, err
	}
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := LoadJSON(cfg, path); err != nil {
			return fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := LoadYAML(cfg, path); err != nil {
			return fmt.Errorf("failed to load YAML config from %s: %w", path, err)
		}
	default:
		if err := LoadTOML(cfg, path); err != nil {
			return fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return nil
}

func finish(cfg *Config) error {
	cfg.ApplyEnvOverrides()
	cfg.Migrate()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadTOML loads configuration from a TOML file on top of cfg.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadYAML loads configuration from a YAML file on top of cfg.
func LoadYAML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode YAML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file on top of cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// SECURITY: Ensure permissions are correct even if file already existed
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# adkchat configuration file")
	fmt.Fprintln(file, "# Generated by adkchat - edit with care")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveYAML saves the configuration to a YAML file.
func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveTo saves cfg in the format matching the extension of path.
func SaveTo(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return SaveJSON(cfg, path)
	case ".yaml", ".yml":
		return SaveYAML(cfg, path)
	}
	return SaveTOML(cfg, path)
}

// ReadFile returns the defaults overlaid with the file at path, without
// environment overrides. A missing file yields the defaults. Use it to
// edit the file itself.
func ReadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err := loadFile(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether field failed validation.
func (e ValidateErrors) Has(field string) bool {
	for _, err := range e {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Validate validates the configuration. The returned error is a
// ValidateErrors listing every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// ==========================================================================
	// Server
	// ==========================================================================

	if _, err := model.ParseBaseURL(c.Server.APIURL); err != nil {
		add("server.api_url", "%v", err)
	}
	for field, v := range map[string]string{
		"server.app_name":   c.Server.AppName,
		"server.user_id":    c.Server.UserID,
		"server.session_id": c.Server.SessionID,
	} {
		if strings.TrimSpace(v) == "" {
			add(field, "must not be empty")
		}
	}

	// ==========================================================================
	// Chat
	// ==========================================================================

	if !model.ResponseMode(c.Chat.ResponseMode).Valid() {
		add("chat.response_mode", "invalid mode '%s', must be one of: stream, standard", c.Chat.ResponseMode)
	}
	if !model.ChatMode(c.Chat.Mode).Valid() {
		add("chat.mode", "invalid mode '%s', must be one of: fullscreen, widget", c.Chat.Mode)
	}
	if c.Chat.SendLimit < 0 {
		add("chat.send_limit", "cannot be negative")
	}
	if c.Chat.SendLimit > 0 && c.Chat.SendWindowSecs <= 0 {
		add("chat.send_window_secs", "must be positive when send_limit is set")
	}

	// ==========================================================================
	// Transport
	// ==========================================================================

	if c.Transport.TimeoutSecs <= 0 || c.Transport.TimeoutSecs > 600 {
		add("transport.timeout_secs", "must be between 1 and 600, got %d", c.Transport.TimeoutSecs)
	}
	if c.Transport.MaxRetries < 0 || c.Transport.MaxRetries > 10 {
		add("transport.max_retries", "must be between 0 and 10, got %d", c.Transport.MaxRetries)
	}
	if c.Transport.RetryBaseDelayMs < 0 {
		add("transport.retry_base_delay_ms", "cannot be negative")
	}
	if c.Transport.RetryMaxDelayMs < c.Transport.RetryBaseDelayMs {
		add("transport.retry_max_delay_ms", "must not be below retry_base_delay_ms")
	}
	if c.Transport.RateLimitFallbackSecs < 0 {
		add("transport.rate_limit_fallback_secs", "cannot be negative")
	}

	// ==========================================================================
	// Storage, logging, metrics, UI
	// ==========================================================================

	switch strings.ToLower(c.Storage.Backend) {
	case prefs.BackendSQLite, prefs.BackendPebble, prefs.BackendMemory:
	default:
		add("storage.backend", "invalid backend '%s', must be one of: sqlite, pebble, memory", c.Storage.Backend)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		add("logging.format", "invalid format '%s', must be text or json", c.Logging.Format)
	}

	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Addr) == "" {
		add("metrics.addr", "required when metrics are enabled")
	}

	switch strings.ToLower(c.UI.Theme) {
	case "dark", "light", "auto":
	default:
		add("ui.theme", "invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills empty or zero values that have no meaningful zero.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Server.APIURL == "" {
		c.Server.APIURL = d.Server.APIURL
	}
	if c.Chat.ResponseMode == "" {
		c.Chat.ResponseMode = d.Chat.ResponseMode
	}
	if c.Chat.Mode == "" {
		c.Chat.Mode = d.Chat.Mode
	}
	if c.Chat.Title == "" {
		c.Chat.Title = d.Chat.Title
	}
	if c.Transport.TimeoutSecs == 0 {
		c.Transport.TimeoutSecs = d.Transport.TimeoutSecs
	}
	if c.Transport.RetryBaseDelayMs == 0 {
		c.Transport.RetryBaseDelayMs = d.Transport.RetryBaseDelayMs
	}
	if c.Transport.RetryMaxDelayMs == 0 {
		c.Transport.RetryMaxDelayMs = d.Transport.RetryMaxDelayMs
	}
	if c.Transport.UserAgent == "" {
		c.Transport.UserAgent = d.Transport.UserAgent
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = d.Metrics.Addr
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
}

// Migrate upgrades older config layouts in place.
func (c *Config) Migrate() {
	if c.Version == "" {
		c.Version = CurrentVersion
	}
	// "streaming" was accepted by early builds.
	if strings.EqualFold(c.Chat.ResponseMode, "streaming") {
		c.Chat.ResponseMode = string(model.ResponseModeStream)
	}
	c.Chat.ResponseMode = strings.ToLower(c.Chat.ResponseMode)
	c.Chat.Mode = strings.ToLower(c.Chat.Mode)
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - ADK_API_URL: overrides server.api_url
//   - ADK_APP_NAME: overrides server.app_name
//   - ADK_USER_ID: overrides server.user_id
//   - ADK_SESSION_ID: overrides server.session_id
//   - ADK_RESPONSE_MODE: overrides chat.response_mode
//   - ADKCHAT_MODE: overrides chat.mode
//   - ADKCHAT_TITLE: overrides chat.title
//   - ADKCHAT_LOG_LEVEL: overrides logging.level
//   - ADKCHAT_STORAGE: "memory" or "backend:path", overrides storage
func (c *Config) ApplyEnvOverrides() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"ADK_API_URL", &c.Server.APIURL},
		{"ADK_APP_NAME", &c.Server.AppName},
		{"ADK_USER_ID", &c.Server.UserID},
		{"ADK_SESSION_ID", &c.Server.SessionID},
		{"ADK_RESPONSE_MODE", &c.Chat.ResponseMode},
		{"ADKCHAT_MODE", &c.Chat.Mode},
		{"ADKCHAT_TITLE", &c.Chat.Title},
		{"ADKCHAT_LOG_LEVEL", &c.Logging.Level},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.dst = v
		}
	}

	if v := strings.TrimSpace(os.Getenv("ADKCHAT_STORAGE")); v != "" {
		backend, path, _ := strings.Cut(v, ":")
		c.Storage.Backend = backend
		c.Storage.Path = path
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "server.app_name").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "chat.response_mode").
// String values are converted to the field type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(part[:1]))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal, err := parseBool(strVal)
			if err != nil {
				return err
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	if value == nil {
		return errors.New("cannot assign nil")
	}
	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value %q", s)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation, derived from
// the toml tags.
func GetAllKeys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := f.Tag.Get("toml")
			if name == "" || name == "-" {
				continue
			}
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, prefix+name+".")
				continue
			}
			keys = append(keys, prefix+name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// Clone creates a copy of the configuration. Config holds only value
// fields, so a struct copy is deep.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns an indented JSON rendering for display.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
