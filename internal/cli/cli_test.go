// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/adk"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/config"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/lifecycle"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/server"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/store"
)

// =============================================================================
// HELPERS
// =============================================================================

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.HomeEnv, dir)
	for _, env := range []string{
		"ADK_API_URL", "ADK_APP_NAME", "ADK_USER_ID", "ADK_SESSION_ID",
		"ADK_RESPONSE_MODE", "ADKCHAT_MODE", "ADKCHAT_TITLE",
		"ADKCHAT_LOG_LEVEL", "ADKCHAT_STORAGE",
	} {
		t.Setenv(env, "")
	}
	return dir
}

func mockServer(t *testing.T) string {
	t.Helper()
	ts := httptest.NewServer(server.NewServer("").WithChunkDelay(0).Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// run executes one adkchat invocation with stdin and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	app, root := newRoot()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	app.Close()
	return out.String(), err
}

// =============================================================================
// COMMAND TREE
// =============================================================================

func TestRootCmd_Commands(t *testing.T) {
	root := NewRootCmd()

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"tui", "chat", "ask", "apps", "health", "session", "config", "serve-mock"} {
		assert.True(t, names[want], "missing command %q", want)
	}

	for _, flag := range []string{"config", "api-url", "app-name", "user-id", "session-id", "response-mode", "log-level"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "missing flag --%s", flag)
	}
	assert.NotNil(t, root.Flags().Lookup("widget"), "root should accept tui flags")
}

func TestPropsFor(t *testing.T) {
	t.Run("defaults are dropped", func(t *testing.T) {
		app, _ := newRoot()
		assert.Equal(t, lifecycle.Props{}, app.propsFor(config.Default()))
	})

	t.Run("non-default values are kept", func(t *testing.T) {
		app, _ := newRoot()
		cfg := config.Default()
		cfg.Server.AppName = "planner"
		cfg.Chat.ResponseMode = string(model.ResponseModeStandard)
		cfg.Chat.Title = "Support"

		props := app.propsFor(cfg)
		assert.Equal(t, "planner", props.AppName)
		assert.Equal(t, model.ResponseModeStandard, props.ResponseMode)
		assert.Equal(t, "Support", props.Title)
		assert.Empty(t, props.UserID)
	})

	t.Run("flags are kept even at default", func(t *testing.T) {
		app, root := newRoot()
		cfg := config.Default()
		require.NoError(t, root.PersistentFlags().Set("api-url", cfg.Server.APIURL))

		assert.Equal(t, cfg.Server.APIURL, app.propsFor(cfg).APIURL)
	})

	t.Run("widget forces mode", func(t *testing.T) {
		app, _ := newRoot()
		assert.Equal(t, model.ChatModeWidget, app.tuiProps(config.Default(), true).Mode)
	})
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk(t *testing.T) {
	isolate(t)
	url := mockServer(t)

	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"streaming", "", []string{"ask", "--api-url", url, "hello"}, "You said: hello\n"},
		{"standard", "", []string{"ask", "--api-url", url, "--response-mode", "standard", "hello", "there"}, "You said: hello there\n"},
		{"stdin", "piped text\n", []string{"ask", "--api-url", url, "--raw", "-"}, "You said: piped text\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.stdin, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestAsk_JSON(t *testing.T) {
	isolate(t)
	url := mockServer(t)

	for _, mode := range []string{"stream", "standard"} {
		t.Run(mode, func(t *testing.T) {
			out, err := run(t, "", "ask", "--api-url", url, "--response-mode", mode, "--json", "hi")
			require.NoError(t, err)

			var resp struct {
				Success bool      `json:"success"`
				Data    AskResult `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.True(t, resp.Success)
			assert.Equal(t, "You said: hi", resp.Data.Reply)
			assert.Equal(t, mode, resp.Data.Mode)
			assert.Equal(t, model.DefaultAppName, resp.Data.AppName)
			assert.NotEmpty(t, resp.Data.Events)
		})
	}
}

func TestAsk_Blank(t *testing.T) {
	isolate(t)
	_, err := run(t, "", "ask", "--api-url", mockServer(t), "   ")
	require.Error(t, err)
	assert.ErrorIs(t, err, adk.ErrEmptyMessage)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// REPLY PRINTER
// =============================================================================

func TestReplyPrinter(t *testing.T) {
	st := store.New()
	old := st.AppendMessage(model.RoleAssistant, "earlier reply", false)

	var buf bytes.Buffer
	p := newReplyPrinter(&buf, st.Snapshot())
	unsubscribe := st.Subscribe(p.onState)
	defer unsubscribe()

	// Changes to the earlier reply are not ours.
	content := "edited"
	st.UpdateMessage(old.ID, model.MessagePatch{Content: &content})

	msg := st.AppendMessage(model.RoleAssistant, "", true)
	for _, text := range []string{"Hel", "Hello", "Hello, world"} {
		st.UpdateMessage(msg.ID, model.MessagePatch{Content: &text})
	}
	assert.Equal(t, "Hello, world", buf.String())

	p.finish("Hello, world!")
	assert.Equal(t, "Hello, world!\n", buf.String())
}

func TestReplyPrinter_Replaced(t *testing.T) {
	st := store.New()
	var buf bytes.Buffer
	p := newReplyPrinter(&buf, st.Snapshot())
	defer st.Subscribe(p.onState)()

	msg := st.AppendMessage(model.RoleAssistant, "", true)
	partial := "partial"
	st.UpdateMessage(msg.ID, model.MessagePatch{Content: &partial})

	p.finish("Sorry, something went wrong.")
	assert.Equal(t, "partial\nSorry, something went wrong.\n", buf.String())
}

func TestReplyPrinter_NothingStreamed(t *testing.T) {
	var buf bytes.Buffer
	p := newReplyPrinter(&buf, store.New().Snapshot())
	p.finish("whole reply")
	assert.Equal(t, "whole reply\n", buf.String())
}

// =============================================================================
// BACKEND COMMANDS
// =============================================================================

func TestApps(t *testing.T) {
	isolate(t)
	url := mockServer(t)

	out, err := run(t, "", "apps", "--api-url", url)
	require.NoError(t, err)
	assert.Contains(t, out, model.DefaultAppName)
	assert.Contains(t, out, "(configured)")

	out, err = run(t, "", "apps", "--api-url", url, "--json")
	require.NoError(t, err)
	var resp struct {
		Success bool     `json:"success"`
		Data    []string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{model.DefaultAppName}, resp.Data)
}

func TestPrintApps_Empty(t *testing.T) {
	var buf bytes.Buffer
	printApps(&buf, nil, "x")
	assert.Contains(t, buf.String(), "no apps")
}

func TestHealth(t *testing.T) {
	isolate(t)
	url := mockServer(t)

	out, err := run(t, "", "health", "--api-url", url)
	require.NoError(t, err)
	assert.Contains(t, out, "[OK]")
	assert.Contains(t, out, url)

	out, err = run(t, "", "health", "--api-url", url, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"healthy": true`)
}

func TestPrintHealth_Down(t *testing.T) {
	var buf bytes.Buffer
	printHealth(&buf, "http://127.0.0.1:1", false)
	assert.Contains(t, buf.String(), "[FAIL]")
	assert.Contains(t, buf.String(), "not responding")
}

func TestSession_CreateAndGet(t *testing.T) {
	isolate(t)
	url := mockServer(t)

	_, err := run(t, "", "session", "get", "--api-url", url, "--session-id", "demo")
	require.Error(t, err)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
	assert.EqualError(t, err, "session not found: demo")
	assert.Equal(t, "Create it with 'adkchat session create'.", Suggestion(err))

	out, err := run(t, "", "session", "create", "--api-url", url, "--session-id", "demo", "--state", "topic=billing")
	require.NoError(t, err)
	assert.Contains(t, out, "Session created")
	assert.Contains(t, out, "demo")
	assert.Contains(t, out, "billing")

	out, err = run(t, "", "session", "get", "--api-url", url, "--session-id", "demo", "--json")
	require.NoError(t, err)
	var resp struct {
		Data SessionInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "demo", resp.Data.ID)
	assert.Equal(t, "billing", resp.Data.State["topic"])
}

func TestParseState(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    map[string]any
		wantErr bool
	}{
		{"none", nil, nil, false},
		{"pairs", []string{"a=1", " b =x=y"}, map[string]any{"a": "1", "b": "x=y"}, false},
		{"empty value", []string{"a="}, map[string]any{"a": ""}, false},
		{"missing equals", []string{"a"}, nil, true},
		{"missing key", []string{"=v"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseState(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ExitUsageError, GetExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func TestConfigCmd(t *testing.T) {
	dir := isolate(t)

	out, err := run(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml")+"\n", out)

	out, err = run(t, "", "config", "set", "chat.response_mode", "standard")
	require.NoError(t, err)
	assert.Contains(t, out, "chat.response_mode = standard")

	out, err = run(t, "", "config", "get", "chat.response_mode")
	require.NoError(t, err)
	assert.Equal(t, "standard\n", out)

	out, err = run(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `response_mode = "standard"`)

	out, err = run(t, "", "config", "keys")
	require.NoError(t, err)
	assert.Contains(t, out, "server.api_url\n")
}

func TestConfigCmd_Errors(t *testing.T) {
	isolate(t)

	_, err := run(t, "", "config", "get", "nope.key")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	_, err = run(t, "", "config", "set", "chat.response_mode", "bogus")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))
}

// =============================================================================
// ERRORS AND OUTPUT
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"generic", errors.New("boom"), ExitGeneralError},
		{"validation", NewValidationErrorWithExample("mode", "x", "bad", "stream"), ExitUsageError},
		{"tty", &TTYRequiredError{Operation: "chat"}, ExitUsageError},
		{"not found", NewNotFoundError("session", "s1"), ExitNotFoundError},
		{"api not found", &adk.APIError{Status: 404}, ExitNotFoundError},
		{"api other", &adk.APIError{Status: 500}, ExitServerError},
		{"timeout", &adk.TimeoutError{}, ExitTimeoutError},
		{"network", &adk.NetworkError{}, ExitNetworkError},
		{"cancelled", context.Canceled, ExitInterrupted},
		{"config", config.ValidateErrors{{Field: "a", Message: "b"}}, ExitConfigError},
		{"wrapped", NewCommandError("ask", "send", "failed", &adk.TimeoutError{}), ExitTimeoutError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestDisplayError(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, &TTYRequiredError{Operation: "open the chat"})
	assert.Contains(t, buf.String(), "[Error]")
	assert.Contains(t, buf.String(), "adkchat ask")

	buf.Reset()
	DisplayError(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	err := OutputJSON(&buf, true, "demo", func() (interface{}, error) {
		return nil, errors.New("nope")
	})
	require.Error(t, err)

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "nope", *resp.Error)
	assert.Equal(t, "demo", resp.Command)

	buf.Reset()
	require.NoError(t, OutputJSON(&buf, false, "demo", func() (interface{}, error) {
		return "ignored", nil
	}))
	assert.Empty(t, buf.String())
}

func TestRenderStatus(t *testing.T) {
	ForceColorsEnabled(false)
	assert.Contains(t, RenderStatus("ok"), "[OK]")
	assert.Contains(t, RenderStatus("fail"), "[FAIL]")
	assert.Contains(t, RenderStatus("warn"), "[WARN]")
	assert.Contains(t, RenderStatus("skipped"), "[SKIPPED]")
}

// =============================================================================
// LINE CHAT
// =============================================================================

func newTestChatSession(t *testing.T) (*chatSession, *bytes.Buffer) {
	t.Helper()
	isolate(t)
	app, _ := newRoot()
	require.NoError(t, app.loadConfig())
	app.cfg.Server.APIURL = mockServer(t)
	t.Cleanup(app.Close)

	var out bytes.Buffer
	s, err := app.newChatSession(context.Background(), &out)
	require.NoError(t, err)
	t.Cleanup(s.comp.OnUnmount)
	return s, &out
}

func TestChatSession_Send(t *testing.T) {
	s, out := newTestChatSession(t)

	require.NoError(t, s.send(context.Background(), "hello"))
	assert.Equal(t, "You said: hello\n", out.String())
	assert.Equal(t, 1, s.sent)
}

func TestChatSession_SlashCommands(t *testing.T) {
	s, out := newTestChatSession(t)
	ctx := context.Background()

	tests := []struct {
		line     string
		want     string
		wantErr  bool
		wantQuit bool
	}{
		{line: "/help", want: "/export [markdown|json] [path]"},
		{line: "/?", want: "Commands"},
		{line: "/mode widget", want: "Display mode: widget"},
		{line: "/mode tiny", wantErr: true},
		{line: "/response standard", want: "Response mode: standard"},
		{line: "/config", want: "response_mode"},
		{line: "/apps", want: model.DefaultAppName},
		{line: "/health", want: "[OK]"},
		{line: "/export pdf", wantErr: true},
		{line: "/bogus", wantErr: true},
		{line: "/q", wantQuit: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			out.Reset()
			keepGoing, err := s.handleSlashCommand(ctx, tt.line)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, !tt.wantQuit, keepGoing)
			assert.Contains(t, out.String(), tt.want)
		})
	}

	assert.Equal(t, model.ChatModeWidget, s.store.Snapshot().Mode)
	assert.Equal(t, model.ResponseModeStandard, s.store.Config().ResponseMode)
}

func TestChatSession_Export(t *testing.T) {
	s, out := newTestChatSession(t)
	ctx := context.Background()

	require.NoError(t, s.send(ctx, "hello"))
	path := filepath.Join(t.TempDir(), "chat.md")

	_, err := s.handleSlashCommand(ctx, "/export markdown "+path)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Saved "+path)
	assert.FileExists(t, path)

	_, err = s.handleSlashCommand(ctx, "/clear")
	require.NoError(t, err)
	_, err = s.handleSlashCommand(ctx, "/export json "+path)
	assert.Error(t, err)
}
