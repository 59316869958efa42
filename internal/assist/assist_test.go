package assist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedBackend answers per model from a queue of replies.
type scriptedBackend struct {
	mu      sync.Mutex
	replies map[string][]reply
	calls   []string
	prompts []string
}

type reply struct {
	text string
	err  error
}

func (b *scriptedBackend) Generate(_ context.Context, _, model, prompt string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, model)
	b.prompts = append(b.prompts, prompt)

	queue := b.replies[model]
	if len(queue) == 0 {
		return "", &StatusError{Code: http.StatusNotFound, Body: "model not found"}
	}
	r := queue[0]
	b.replies[model] = queue[1:]
	return r.text, r.err
}

func instantPolicy(retries uint64, models ...string) Policy {
	return Policy{
		Backends:   models,
		Retries:    retries,
		NewBackOff: func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	}
}

func TestRun_FirstBackendSucceeds(t *testing.T) {
	b := &scriptedBackend{replies: map[string][]reply{
		"a": {{text: "<p>hi</p>"}},
	}}
	svc := NewService(b, instantPolicy(1, "a", "b"))

	res, err := svc.Generate(context.Background(), "write a poem", "key")
	require.NoError(t, err)
	assert.Equal(t, "a", res.Model)
	assert.Equal(t, "<p>hi</p>", res.HTML)
	assert.Equal(t, []string{"a"}, b.calls)
	assert.True(t, strings.HasPrefix(b.prompts[0], "System Instruction: You are CloverAI Agent"))
	assert.True(t, strings.HasSuffix(b.prompts[0], "\n\nUser Request: write a poem"))
}

func TestRun_FallsThroughToNextBackend(t *testing.T) {
	b := &scriptedBackend{replies: map[string][]reply{
		"b": {{text: "# Plan\n\nSteps"}},
	}}
	svc := NewService(b, instantPolicy(1, "a", "b"))

	res, err := svc.Generate(context.Background(), "plan", "key")
	require.NoError(t, err)
	assert.Equal(t, "b", res.Model)
	assert.Equal(t, "Plan", res.Title)
	assert.Contains(t, res.HTML, "<h1")
	assert.Equal(t, []string{"a", "b"}, b.calls)
}

func TestRun_RetriesTransientErrors(t *testing.T) {
	b := &scriptedBackend{replies: map[string][]reply{
		"a": {
			{err: &StatusError{Code: http.StatusTooManyRequests, Body: "slow down"}},
			{text: "<p>ok</p>"},
		},
	}}
	svc := NewService(b, instantPolicy(2, "a", "b"))

	res, err := svc.Generate(context.Background(), "p", "key")
	require.NoError(t, err)
	assert.Equal(t, "a", res.Model)
	assert.Equal(t, []string{"a", "a"}, b.calls)
}

func TestRun_RetryBudgetExhaustedMovesOn(t *testing.T) {
	unavailable := &StatusError{Code: http.StatusServiceUnavailable, Body: "overloaded"}
	b := &scriptedBackend{replies: map[string][]reply{
		"a": {{err: unavailable}, {err: unavailable}, {err: unavailable}},
		"b": {{text: "<p>fine</p>"}},
	}}
	svc := NewService(b, instantPolicy(1, "a", "b"))

	res, err := svc.Generate(context.Background(), "p", "key")
	require.NoError(t, err)
	assert.Equal(t, "b", res.Model)
	assert.Equal(t, []string{"a", "a", "b"}, b.calls)
}

func TestRun_AuthorizationAborts(t *testing.T) {
	b := &scriptedBackend{replies: map[string][]reply{
		"a": {{err: &StatusError{Code: http.StatusBadRequest, Body: `{"reason":"API_KEY_INVALID"}`}}},
		"b": {{text: "<p>never</p>"}},
	}}
	svc := NewService(b, instantPolicy(3, "a", "b"))

	_, err := svc.Generate(context.Background(), "p", "bad-key")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthorization)
	assert.Equal(t, []string{"a"}, b.calls)
}

func TestRun_PermissionDeniedAborts(t *testing.T) {
	b := &scriptedBackend{replies: map[string][]reply{
		"a": {{err: &StatusError{Code: http.StatusBadRequest, Body: `{"error":{"status":"PERMISSION_DENIED"}}`}}},
		"b": {{text: "<p>never</p>"}},
	}}
	svc := NewService(b, instantPolicy(2, "a", "b"))

	_, err := svc.Generate(context.Background(), "p", "key")
	assert.ErrorIs(t, err, ErrAuthorization)
	assert.Equal(t, []string{"a"}, b.calls)
}

func TestRun_AllBackendsFail(t *testing.T) {
	b := &scriptedBackend{replies: map[string][]reply{}}
	svc := NewService(b, instantPolicy(0, "a", "b", "c"))

	_, err := svc.Generate(context.Background(), "p", "key")
	var fe *FallbackError
	require.ErrorAs(t, err, &fe)
	require.Len(t, fe.Attempts, 3)
	assert.Equal(t, "c", fe.Attempts[2].Backend)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.NotErrorIs(t, err, ErrAuthorization)
}

func TestRun_CustomClassifier(t *testing.T) {
	boom := errors.New("boom")
	b := &scriptedBackend{replies: map[string][]reply{
		"a": {{err: boom}},
		"b": {{text: "<p>unused</p>"}},
	}}
	p := instantPolicy(0, "a", "b")
	p.Classify = func(err error) Decision {
		if errors.Is(err, boom) {
			return Abort
		}
		return Next
	}

	_, _, err := Run(context.Background(), p, func(ctx context.Context, model string) (string, error) {
		return b.Generate(ctx, "key", model, "p")
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, b.calls)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, _, err := Run(ctx, instantPolicy(2, "a", "b"), func(ctx context.Context, model string) (string, error) {
		calls++
		return "", ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestGenerate_Validation(t *testing.T) {
	b := &scriptedBackend{replies: map[string][]reply{}}
	svc := NewService(b, instantPolicy(0, "a"))

	_, err := svc.Generate(context.Background(), "p", "  ")
	assert.ErrorIs(t, err, ErrMissingKey)
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = svc.Generate(context.Background(), "   ", "key")
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	assert.Empty(t, b.calls)
}

func TestNewService_DefaultModels(t *testing.T) {
	svc := NewService(&scriptedBackend{}, Policy{})
	assert.Equal(t, DefaultModels, svc.policy.Backends)
}

func TestDefaultClassifier(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Decision
	}{
		{"unauthorized", &StatusError{Code: 401}, Abort},
		{"forbidden", &StatusError{Code: 403}, Abort},
		{"invalid key body", &StatusError{Code: 400, Body: "API_KEY_INVALID"}, Abort},
		{"permission denied body", &StatusError{Code: 400, Body: `{"status":"PERMISSION_DENIED"}`}, Abort},
		{"permission on server error", &StatusError{Code: 500, Body: "caller lacks permission"}, Abort},
		{"rate limited", &StatusError{Code: 429}, Retry},
		{"server error", &StatusError{Code: 500}, Retry},
		{"not found", &StatusError{Code: 404}, Next},
		{"missing key", ErrMissingKey, Abort},
		{"cancelled", context.Canceled, Abort},
		{"permission text", errors.New("Permission denied for project"), Abort},
		{"network", errors.New("connection reset"), Next},
		{"deadline", context.DeadlineExceeded, Next},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultClassifier(tt.err))
		})
	}
}

func TestClient_Generate(t *testing.T) {
	var got generateRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"<p>drafted</p>"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	text, err := c.Generate(context.Background(), "secret", "gemini-2.0-flash", "hello")
	require.NoError(t, err)
	assert.Equal(t, "<p>drafted</p>", text)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, generateRequest{Model: "gemini-2.0-flash", Prompt: "hello"}, got)
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "key rejected", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Generate(context.Background(), "bad", "m", "hello")

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, "key rejected", se.Body)
	assert.ErrorIs(t, err, ErrAuthorization)
}

func TestClient_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Generate(context.Background(), "k", "m", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}
