// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a temp dir and clears every
// override variable for the duration of the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)
	for _, env := range []string{
		"ADK_API_URL", "ADK_APP_NAME", "ADK_USER_ID", "ADK_SESSION_ID",
		"ADK_RESPONSE_MODE", "ADKCHAT_MODE", "ADKCHAT_TITLE",
		"ADKCHAT_LOG_LEVEL", "ADKCHAT_STORAGE",
	} {
		t.Setenv(env, "")
	}
	return dir
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:8000", cfg.Server.APIURL)
	assert.Equal(t, "my_sample_agent", cfg.Server.AppName)
	assert.Equal(t, "user_123", cfg.Server.UserID)
	assert.Equal(t, "session_123", cfg.Server.SessionID)
	assert.Equal(t, "stream", cfg.Chat.ResponseMode)
	assert.Equal(t, "ADK Assistant", cfg.Chat.Title)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, 3, cfg.Transport.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay())
	assert.Equal(t, 10*time.Second, cfg.RetryMaxDelay())
	assert.Equal(t, 5*time.Second, cfg.RateLimitFallback())
}

func TestConfig_ChatConfig(t *testing.T) {
	cfg := Default()
	cfg.Chat.ResponseMode = "standard"

	cc := cfg.ChatConfig()
	require.NoError(t, cc.Validate())
	assert.Equal(t, cfg.Server.APIURL, cc.APIBaseURL)
	assert.Equal(t, "standard", string(cc.ResponseMode))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"valid default config", func(c *Config) {}, ""},
		{"bad url scheme", func(c *Config) { c.Server.APIURL = "ftp://host" }, "server.api_url"},
		{"empty app name", func(c *Config) { c.Server.AppName = " " }, "server.app_name"},
		{"empty user id", func(c *Config) { c.Server.UserID = "" }, "server.user_id"},
		{"empty session id", func(c *Config) { c.Server.SessionID = "" }, "server.session_id"},
		{"bad response mode", func(c *Config) { c.Chat.ResponseMode = "batch" }, "chat.response_mode"},
		{"bad chat mode", func(c *Config) { c.Chat.Mode = "popup" }, "chat.mode"},
		{"negative send limit", func(c *Config) { c.Chat.SendLimit = -1 }, "chat.send_limit"},
		{"limit without window", func(c *Config) { c.Chat.SendWindowSecs = 0 }, "chat.send_window_secs"},
		{"zero timeout", func(c *Config) { c.Transport.TimeoutSecs = 0 }, "transport.timeout_secs"},
		{"too many retries", func(c *Config) { c.Transport.MaxRetries = 11 }, "transport.max_retries"},
		{"max below base", func(c *Config) { c.Transport.RetryMaxDelayMs = 10 }, "transport.retry_max_delay_ms"},
		{"bad storage", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }, "metrics.addr"},
		{"invalid theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			var verrs ValidateErrors
			require.ErrorAs(t, err, &verrs)
			if !verrs.Has(tt.field) {
				t.Errorf("Validate() = %v, want an error for %s", err, tt.field)
			}
		})
	}
}

func TestConfig_ValidateCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Server.AppName = ""
	cfg.Chat.ResponseMode = "x"

	var verrs ValidateErrors
	require.ErrorAs(t, cfg.Validate(), &verrs)
	assert.Len(t, verrs, 2)
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	val, err := cfg.Get("server.app_name")
	require.NoError(t, err)
	assert.Equal(t, "my_sample_agent", val)

	require.NoError(t, cfg.Set("chat.response_mode", "standard"))
	assert.Equal(t, "standard", cfg.Chat.ResponseMode)

	require.NoError(t, cfg.Set("transport.max_retries", "5"))
	assert.Equal(t, 5, cfg.Transport.MaxRetries)

	require.NoError(t, cfg.Set("metrics.enabled", "yes"))
	assert.True(t, cfg.Metrics.Enabled)

	require.NoError(t, cfg.Set("ui.show-timestamps", false))
	assert.False(t, cfg.UI.ShowTimestamps)

	tests := []struct {
		key   string
		value interface{}
	}{
		{"invalid.key", "x"},
		{"server", "x"},
		{"server.app_name.extra", "x"},
		{"transport.max_retries", "many"},
		{"metrics.enabled", "maybe"},
		{"", "x"},
	}
	for _, tc := range tests {
		if err := cfg.Set(tc.key, tc.value); err == nil {
			t.Errorf("Set(%q, %v) succeeded, want error", tc.key, tc.value)
		}
	}
}

func TestGetAllKeys(t *testing.T) {
	keys := GetAllKeys()
	cfg := Default()
	for _, k := range keys {
		if _, err := cfg.Get(k); err != nil {
			t.Errorf("Get(%q) error = %v", k, err)
		}
	}
	assert.Contains(t, keys, "server.api_url")
	assert.Contains(t, keys, "transport.rate_limit_fallback_secs")
	assert.Contains(t, keys, "ui.render_markdown")
}

func TestConfig_Clone(t *testing.T) {
	original := Default()
	clone := original.Clone()
	clone.Server.AppName = "cloned"

	if original.Server.AppName == "cloned" {
		t.Error("Clone should create an independent copy")
	}
}

func TestConfig_Migrate(t *testing.T) {
	cfg := Default()
	cfg.Version = ""
	cfg.Chat.ResponseMode = "Streaming"
	cfg.Chat.Mode = "WIDGET"
	cfg.Migrate()

	assert.Equal(t, CurrentVersion, cfg.Version)
	assert.Equal(t, "stream", cfg.Chat.ResponseMode)
	assert.Equal(t, "widget", cfg.Chat.Mode)
}

// =============================================================================
// ENVIRONMENT AND FILES
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("ADK_API_URL", "https://agents.example.com")
	t.Setenv("ADK_APP_NAME", "weather_agent")
	t.Setenv("ADK_USER_ID", "u-9")
	t.Setenv("ADK_SESSION_ID", "s-9")
	t.Setenv("ADK_RESPONSE_MODE", "standard")
	t.Setenv("ADKCHAT_MODE", "widget")
	t.Setenv("ADKCHAT_TITLE", "Weather")
	t.Setenv("ADKCHAT_LOG_LEVEL", "debug")
	t.Setenv("ADKCHAT_STORAGE", "pebble:/tmp/p")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "https://agents.example.com", cfg.Server.APIURL)
	assert.Equal(t, "weather_agent", cfg.Server.AppName)
	assert.Equal(t, "u-9", cfg.Server.UserID)
	assert.Equal(t, "s-9", cfg.Server.SessionID)
	assert.Equal(t, "standard", cfg.Chat.ResponseMode)
	assert.Equal(t, "widget", cfg.Chat.Mode)
	assert.Equal(t, "Weather", cfg.Chat.Title)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "pebble", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/p", cfg.Storage.Path)
}

func TestStorageSpec(t *testing.T) {
	dir := isolate(t)

	cfg := Default()
	spec, err := cfg.StorageSpec()
	require.NoError(t, err)
	assert.Equal(t, "sqlite:"+filepath.Join(dir, "prefs.db"), spec)

	cfg.Storage.Backend = "pebble"
	spec, err = cfg.StorageSpec()
	require.NoError(t, err)
	assert.Equal(t, "pebble:"+filepath.Join(dir, "prefs.pebble"), spec)

	cfg.Storage.Backend = "memory"
	spec, err = cfg.StorageSpec()
	require.NoError(t, err)
	assert.Equal(t, "memory", spec)
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("server:\n  app_name: from_yaml\n"), 0600))
	jsonPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"server":{"app_name":"from_json"}}`), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from_yaml", cfg.Server.AppName)
	assert.Equal(t, "user_123", cfg.Server.UserID, "unset keys keep defaults")

	tomlPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("[server]\napp_name = \"from_toml\"\n"), 0600))
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "from_toml", cfg.Server.AppName)

	t.Setenv("ADK_APP_NAME", "from_env")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.Server.AppName)
}

func TestLoad_BrokenFileFallsBack(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[server\n"), 0600))

	cfg, err := Load()
	require.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, Default().Server, cfg.Server)
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[chat]\nresponse_mode = \"batch\"\n"), 0600))

	_, err := Load()
	var verrs ValidateErrors
	require.ErrorAs(t, err, &verrs)
	assert.True(t, verrs.Has("chat.response_mode"))
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	t.Setenv("ADK_USER_ID", "")
	os.Unsetenv("ADK_USER_ID")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ADK_USER_ID=dotenv_user\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("ADK_USER_ID") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dotenv_user", cfg.Server.UserID)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := isolate(t)

	cfg := Default()
	cfg.Server.AppName = "saved_agent"
	cfg.UI.CompactMode = true

	tomlPath := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(cfg, tomlPath))
	info, err := os.Stat(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	jsonPath := filepath.Join(dir, "out", "config.json")
	require.NoError(t, SaveJSON(cfg, jsonPath))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded Config
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "saved_agent", decoded.Server.AppName)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { changes <- c }, WatchOptions{Debounce: 20 * time.Millisecond})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	cfg := Default()
	cfg.Server.SessionID = "reloaded"
	require.NoError(t, SaveTOML(cfg, path))

	// A truncate-then-write save can surface an intermediate reload.
	deadline := time.After(3 * time.Second)
	for seen := false; !seen; {
		select {
		case got := <-changes:
			seen = got.Server.SessionID == "reloaded"
		case <-deadline:
			t.Fatal("no reload after write")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := isolate(t)

	path, err := FindConfigFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), path, "TOML path when nothing exists")

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("server:\n  app_name: yaml_app\n"), 0o600))
	path, err = FindConfigFile()
	require.NoError(t, err)
	assert.Equal(t, yamlPath, path)
}
