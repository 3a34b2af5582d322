// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/adk"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/store"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/telemetry"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeTransport struct {
	mu sync.Mutex

	events    []adk.Event
	sendErr   error
	getErr    error
	createErr error
	apps      []string

	// beforeEvent runs before each streamed event is delivered.
	beforeEvent func(i int)

	gets, creates, sends int
	lastText             string
}

func textEvent(s string) adk.Event {
	return adk.DecodeEvent(json.RawMessage(`{"content":{"parts":[{"text":` + quote(s) + `}]}}`))
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (f *fakeTransport) GetSession(ctx context.Context, cfg model.ChatConfig) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &model.Session{ID: cfg.SessionID}, nil
}

func (f *fakeTransport) CreateSession(ctx context.Context, cfg model.ChatConfig, state map[string]any) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &model.Session{ID: cfg.SessionID}, nil
}

func (f *fakeTransport) SendMessage(ctx context.Context, cfg model.ChatConfig, text string) ([]adk.Event, error) {
	f.mu.Lock()
	f.sends++
	f.lastText = text
	f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return f.events, nil
}

func (f *fakeTransport) SendMessageStreaming(ctx context.Context, cfg model.ChatConfig, text string, onEvent func(adk.Event), onError func(error)) error {
	f.mu.Lock()
	f.sends++
	f.lastText = text
	f.mu.Unlock()
	for i, ev := range f.events {
		if f.beforeEvent != nil {
			f.beforeEvent(i)
		}
		onEvent(ev)
	}
	return f.sendErr
}

func (f *fakeTransport) ListApps(ctx context.Context, cfg model.ChatConfig) ([]string, error) {
	return f.apps, nil
}

// recordingGate is a Gate that can be closed.
type recordingGate struct {
	mu     sync.Mutex
	closed bool
}

func (g *recordingGate) Guard(fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	fn()
	return true
}

func (g *recordingGate) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(mode model.ResponseMode) *store.Store {
	cfg := model.DefaultChatConfig()
	cfg.ResponseMode = mode
	return store.New(store.WithInitialConfig(cfg))
}

// contentHistory records every content value the placeholder takes.
func contentHistory(st *store.Store) *[]string {
	var mu sync.Mutex
	var history []string
	st.Subscribe(func(s store.State) {
		if len(s.Messages) < 2 {
			return
		}
		last := s.Messages[len(s.Messages)-1]
		mu.Lock()
		if n := len(history); n == 0 || history[n-1] != last.Content {
			history = append(history, last.Content)
		}
		mu.Unlock()
	})
	return &history
}

// =============================================================================
// SEND
// =============================================================================

func TestSend_StreamingAccumulates(t *testing.T) {
	st := newStore(model.ResponseModeStream)
	tr := &fakeTransport{events: []adk.Event{textEvent("Hel"), textEvent(""), textEvent("lo")}}
	var streamingDuring []bool
	tr.beforeEvent = func(int) { streamingDuring = append(streamingDuring, st.Snapshot().IsStreaming) }
	history := contentHistory(st)
	metrics := telemetry.New()

	o := New(st, tr, WithLogger(quiet()), WithMetrics(metrics))
	require.NoError(t, o.Send(context.Background(), "hi"))

	s := st.Snapshot()
	require.Len(t, s.Messages, 2)
	assert.Equal(t, model.RoleUser, s.Messages[0].Role)
	assert.Equal(t, "hi", s.Messages[0].Content)
	assert.Equal(t, model.RoleAssistant, s.Messages[1].Role)
	assert.Equal(t, "Hello", s.Messages[1].Content)
	assert.False(t, s.Messages[1].IsStreaming)
	assert.False(t, s.IsLoading)
	assert.False(t, s.IsStreaming)
	assert.Empty(t, s.Error)

	assert.Equal(t, []string{"", "Hel", "Hello"}, *history)
	assert.Equal(t, []bool{true, true, true}, streamingDuring)
}

func TestSend_StandardConcatenates(t *testing.T) {
	st := newStore(model.ResponseModeStandard)
	tr := &fakeTransport{events: []adk.Event{
		textEvent("one "),
		adk.DecodeEvent(json.RawMessage(`{"data":{"content":"two "}}`)),
		adk.DecodeEvent(json.RawMessage(`{"content":"three"}`)),
	}}
	var sawStreaming bool
	st.Subscribe(func(s store.State) { sawStreaming = sawStreaming || s.IsStreaming })

	o := New(st, tr, WithLogger(quiet()))
	require.NoError(t, o.Send(context.Background(), "count"))

	s := st.Snapshot()
	assert.Equal(t, "one two three", s.Messages[1].Content)
	assert.False(t, s.Messages[1].IsStreaming)
	assert.False(t, sawStreaming, "standard mode never sets the streaming flag")
}

func TestSend_EmptyReplyUsesFallback(t *testing.T) {
	for _, mode := range []model.ResponseMode{model.ResponseModeStream, model.ResponseModeStandard} {
		t.Run(string(mode), func(t *testing.T) {
			st := newStore(mode)
			metrics := telemetry.New()
			o := New(st, &fakeTransport{}, WithLogger(quiet()), WithMetrics(metrics))
			require.NoError(t, o.Send(context.Background(), "hi"))

			msg := st.Snapshot().Messages[1]
			assert.Equal(t, NoResponseText, msg.Content)
			assert.False(t, msg.IsStreaming)
		})
	}
}

func TestSend_FailureWritesApology(t *testing.T) {
	for _, mode := range []model.ResponseMode{model.ResponseModeStream, model.ResponseModeStandard} {
		t.Run(string(mode), func(t *testing.T) {
			st := newStore(mode)
			boom := &adk.NetworkError{Op: "run", Err: errors.New("connection refused")}
			tr := &fakeTransport{sendErr: boom}
			if mode == model.ResponseModeStream {
				tr.events = []adk.Event{textEvent("partial")}
			}

			o := New(st, tr, WithLogger(quiet()))
			err := o.Send(context.Background(), "hi")
			require.ErrorIs(t, err, boom)

			s := st.Snapshot()
			assert.Equal(t, ApologyText, s.Messages[1].Content)
			assert.False(t, s.Messages[1].IsStreaming)
			assert.Equal(t, boom.Error(), s.Error)
			assert.False(t, s.IsLoading)
			assert.False(t, s.IsStreaming)
			assert.Zero(t, s.StreamingCount())
		})
	}
}

func TestSend_ClearsPreviousError(t *testing.T) {
	st := newStore(model.ResponseModeStandard)
	st.SetError("old")
	o := New(st, &fakeTransport{events: []adk.Event{textEvent("ok")}}, WithLogger(quiet()))
	require.NoError(t, o.Send(context.Background(), "hi"))
	assert.Empty(t, st.Snapshot().Error)
}

func TestSend_BlankIgnored(t *testing.T) {
	st := newStore(model.ResponseModeStream)
	tr := &fakeTransport{}
	o := New(st, tr, WithLogger(quiet()))

	for _, text := range []string{"", "   ", "\n\t"} {
		require.NoError(t, o.Send(context.Background(), text))
	}
	assert.Empty(t, st.Snapshot().Messages)
	assert.Zero(t, tr.sends)
}

func TestSend_SanitizesText(t *testing.T) {
	st := newStore(model.ResponseModeStandard)
	tr := &fakeTransport{}
	o := New(st, tr, WithLogger(quiet()))
	require.NoError(t, o.Send(context.Background(), "  he\x00llo "))
	assert.Equal(t, "hello", tr.lastText)
	assert.Equal(t, "hello", st.Snapshot().Messages[0].Content)
}

func TestSend_BusyRejected(t *testing.T) {
	st := newStore(model.ResponseModeStandard)
	st.SetLoading(true)
	o := New(st, &fakeTransport{}, WithLogger(quiet()))

	assert.ErrorIs(t, o.Send(context.Background(), "hi"), ErrBusy)
	assert.Empty(t, st.Snapshot().Messages)
}

func TestSend_RateLimited(t *testing.T) {
	st := newStore(model.ResponseModeStandard)
	o := New(st, &fakeTransport{}, WithLogger(quiet()), WithLimiter(adk.NewSendLimiter(1, time.Hour)))

	require.NoError(t, o.Send(context.Background(), "one"))
	err := o.Send(context.Background(), "two")
	require.ErrorIs(t, err, adk.ErrRateLimited)

	s := st.Snapshot()
	assert.Len(t, s.Messages, 2, "refused send appends nothing")
	assert.NotEmpty(t, s.Error)
}

func TestSend_ClosedGateDropsDeltasButFinalizes(t *testing.T) {
	st := newStore(model.ResponseModeStream)
	gate := &recordingGate{}
	tr := &fakeTransport{
		events:  []adk.Event{textEvent("a"), textEvent("b")},
		sendErr: adk.ErrCancelled,
	}
	var afterClose []string
	tr.beforeEvent = func(i int) {
		if i == 1 {
			gate.close()
			afterClose = append(afterClose, st.Snapshot().Messages[1].Content)
		}
	}

	o := New(st, tr, WithLogger(quiet()), WithGate(gate))
	err := o.Send(context.Background(), "hi")
	require.ErrorIs(t, err, adk.ErrCancelled)

	s := st.Snapshot()
	assert.Equal(t, []string{"a"}, afterClose)
	assert.Equal(t, ApologyText, s.Messages[1].Content)
	assert.False(t, s.Messages[1].IsStreaming, "placeholder never stays streaming")
	assert.Empty(t, s.Error, "error banner dropped after the gate closed")
	assert.False(t, s.Busy())
}

// TestSend_OverHTTP runs the streaming example end to end through a real
// client.
func TestSend_OverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range []string{
			"data: {\"content\":{\"parts\":[{\"text\":\"Hel\"}]}}\n",
			"data: {\"content\":{\"parts\":[{\"text\":\"lo\"}]}}\n",
			"data: [DONE]\n",
		} {
			io.WriteString(w, line)
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	client, err := adk.NewClient(srv.URL)
	require.NoError(t, err)
	client.WithLogger(quiet())

	cfg := model.DefaultChatConfig()
	cfg.APIBaseURL = srv.URL
	st := store.New(store.WithInitialConfig(cfg))
	history := contentHistory(st)

	o := New(st, client, WithLogger(quiet()))
	require.NoError(t, o.Send(context.Background(), "hi"))

	assert.Equal(t, []string{"", "Hel", "Hello"}, *history)
	msg := st.Snapshot().Messages[1]
	assert.Equal(t, "Hello", msg.Content)
	assert.False(t, msg.IsStreaming)
}

// TestSend_OverHTTP_RetryAfter waits out a 429 and surfaces nothing.
func TestSend_OverHTTP_RetryAfter(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for Retry-After")
	}
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, `[{"content":{"parts":[{"text":"ok"}]}}]`)
	}))
	defer srv.Close()

	client, err := adk.NewClient(srv.URL)
	require.NoError(t, err)
	client.WithLogger(quiet())

	cfg := model.DefaultChatConfig()
	cfg.APIBaseURL = srv.URL
	cfg.ResponseMode = model.ResponseModeStandard
	st := store.New(store.WithInitialConfig(cfg))

	start := time.Now()
	require.NoError(t, New(st, client, WithLogger(quiet())).Send(context.Background(), "hi"))
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Second)

	s := st.Snapshot()
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "ok", s.Messages[1].Content)
	assert.False(t, s.Messages[1].IsStreaming)
	assert.Empty(t, s.Error)
	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()
}

// TestSend_OverHTTP_RetriesExhausted drops every connection until the
// client gives up.
func TestSend_OverHTTP_RetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer srv.Close()

	client, err := adk.NewClient(srv.URL)
	require.NoError(t, err)
	client.WithLogger(quiet()).WithMaxRetries(2).WithBackoff(time.Millisecond, time.Millisecond)

	cfg := model.DefaultChatConfig()
	cfg.APIBaseURL = srv.URL
	st := store.New(store.WithInitialConfig(cfg))

	err = New(st, client, WithLogger(quiet())).Send(context.Background(), "hi")
	var netErr *adk.NetworkError
	require.ErrorAs(t, err, &netErr)

	s := st.Snapshot()
	require.Len(t, s.Messages, 2)
	assert.Equal(t, ApologyText, s.Messages[1].Content)
	assert.False(t, s.Messages[1].IsStreaming)
	assert.NotEmpty(t, s.Error)
	assert.False(t, s.Busy())
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestResolveSession_GetThenCached(t *testing.T) {
	st := newStore(model.ResponseModeStream)
	tr := &fakeTransport{}
	o := New(st, tr, WithLogger(quiet()))

	require.NoError(t, o.ResolveSession(context.Background()))
	require.NoError(t, o.ResolveSession(context.Background()))

	assert.Equal(t, 1, tr.gets)
	assert.Zero(t, tr.creates)
	s := st.Snapshot()
	assert.True(t, s.IsConnected)
	assert.False(t, s.IsConnecting)

	sess, ok := o.Session()
	require.True(t, ok)
	assert.Equal(t, model.DefaultSessionID, sess.ID)
}

func TestResolveSession_CreatesWhenMissing(t *testing.T) {
	st := newStore(model.ResponseModeStream)
	tr := &fakeTransport{getErr: &adk.APIError{Status: 404, Message: "Session not found"}}
	o := New(st, tr, WithLogger(quiet()))

	require.NoError(t, o.ResolveSession(context.Background()))
	assert.Equal(t, 1, tr.creates)
	assert.True(t, st.Snapshot().IsConnected)
}

func TestResolveSession_BothFail(t *testing.T) {
	st := newStore(model.ResponseModeStream)
	st.SetConnected(true)
	tr := &fakeTransport{
		getErr:    errors.New("get failed"),
		createErr: errors.New("create failed"),
	}
	o := New(st, tr, WithLogger(quiet()))

	err := o.ResolveSession(context.Background())
	var serr *adk.SessionError
	require.ErrorAs(t, err, &serr)

	s := st.Snapshot()
	assert.False(t, s.IsConnected)
	assert.Equal(t, "Failed to connect to ADK server", s.Error)
	assert.Equal(t, "Disconnected", s.ConnectionStatus())
}

func TestResolveSession_IdentityChangeRefetches(t *testing.T) {
	st := newStore(model.ResponseModeStream)
	tr := &fakeTransport{}
	o := New(st, tr, WithLogger(quiet()))

	require.NoError(t, o.ResolveSession(context.Background()))
	mode := model.ResponseModeStandard
	st.UpdateConfig(model.ConfigPatch{ResponseMode: &mode})
	require.NoError(t, o.ResolveSession(context.Background()))
	assert.Equal(t, 1, tr.gets, "response mode is not part of the session identity")

	st.UpdateConfig(model.ConfigPatch{SessionID: model.String("other")})
	_, ok := o.Session()
	assert.False(t, ok)
	require.NoError(t, o.ResolveSession(context.Background()))
	assert.Equal(t, 2, tr.gets)

	o.InvalidateSession()
	require.NoError(t, o.ResolveSession(context.Background()))
	assert.Equal(t, 3, tr.gets)
}

func TestListApps_FollowsStoreBaseURL(t *testing.T) {
	serve := func(apps string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, apps)
		}))
	}
	oldSrv, newSrv := serve(`["old_app"]`), serve(`["new_app"]`)
	defer oldSrv.Close()
	defer newSrv.Close()

	client, err := adk.NewClient(oldSrv.URL)
	require.NoError(t, err)
	client.WithLogger(quiet())

	cfg := model.DefaultChatConfig()
	cfg.APIBaseURL = oldSrv.URL
	st := store.New(store.WithInitialConfig(cfg))
	o := New(st, client, WithLogger(quiet()))

	apps, err := o.ListApps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"old_app"}, apps)

	st.UpdateConfig(model.ConfigPatch{APIBaseURL: model.String(newSrv.URL)})
	apps, err = o.ListApps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"new_app"}, apps)
}

func TestListApps(t *testing.T) {
	o := New(newStore(model.ResponseModeStream), &fakeTransport{apps: []string{"a", "b"}})
	apps, err := o.ListApps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, apps)
}
