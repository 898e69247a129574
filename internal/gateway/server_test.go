package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shareit/internal/config"
	"shareit/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upstreamCall struct {
	Method string
	Path   string
	Query  string
	UserID string
	Body   []byte
}

// setupGateway поднимает фиктивный сервер и шлюз перед ним.
func setupGateway(t *testing.T, cfg config.GatewayRateLimitConfig) (*Server, *[]upstreamCall) {
	t.Helper()

	var calls []upstreamCall
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := new(bytes.Buffer)
		_, _ = body.ReadFrom(r.Body)
		calls = append(calls, upstreamCall{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			UserID: r.Header.Get(headerUserID),
			Body:   body.Bytes(),
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	t.Cleanup(upstream.Close)

	if cfg.RPS == 0 {
		cfg.RPS = 1000
		cfg.Burst = 1000
	}
	gwCfg := &config.GatewayConfig{Port: 0, ServerURL: upstream.URL, RateLimit: cfg}
	logger := zerolog.Nop()
	return NewServer(gwCfg, NewClient(upstream.URL), nil, &logger), &calls
}

func gwRequest(t *testing.T, srv *Server, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set(headerUserID, userID)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestGateway_ForwardsValidRequest(t *testing.T) {
	srv, calls := setupGateway(t, config.GatewayRateLimitConfig{})

	rec := gwRequest(t, srv, http.MethodPost, "/users", "", map[string]string{
		"name": "Alice", "email": "alice@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":1}`, rec.Body.String())

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, http.MethodPost, call.Method)
	assert.Equal(t, "/users", call.Path)
}

func TestGateway_RelaysUserHeaderAndQuery(t *testing.T) {
	srv, calls := setupGateway(t, config.GatewayRateLimitConfig{})

	rec := gwRequest(t, srv, http.MethodGet, "/bookings?state=FUTURE&from=0&size=5", "7", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "7", call.UserID)
	assert.Contains(t, call.Query, "state=FUTURE")
}

func TestGateway_RejectsWithoutForwarding(t *testing.T) {
	srv, calls := setupGateway(t, config.GatewayRateLimitConfig{})

	cases := []struct {
		name   string
		method string
		path   string
		userID string
		body   any
	}{
		{"blank user name", http.MethodPost, "/users", "", map[string]string{"name": " ", "email": "a@b.c"}},
		{"bad email", http.MethodPost, "/users", "", map[string]string{"name": "A", "email": "nope"}},
		{"missing user header", http.MethodPost, "/items", "", map[string]any{"name": "x", "description": "y", "available": true}},
		{"bad user header", http.MethodPost, "/items", "abc", map[string]any{"name": "x", "description": "y", "available": true}},
		{"item without available", http.MethodPost, "/items", "1", map[string]any{"name": "x", "description": "y"}},
		{"blank comment", http.MethodPost, "/items/1/comment", "1", map[string]string{"text": "  "}},
		{"unknown state", http.MethodGet, "/bookings?state=BOGUS", "1", nil},
		{"negative from", http.MethodGet, "/items?from=-1", "1", nil},
		{"zero size", http.MethodGet, "/items?size=0", "1", nil},
		{"bad approved", http.MethodPatch, "/bookings/1?approved=maybe", "1", nil},
		{"blank request description", http.MethodPost, "/requests", "1", map[string]string{"description": " "}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := gwRequest(t, srv, tc.method, tc.path, tc.userID, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
	assert.Empty(t, *calls)
}

func TestGateway_UnknownStateMessage(t *testing.T) {
	srv, calls := setupGateway(t, config.GatewayRateLimitConfig{})

	rec := gwRequest(t, srv, http.MethodGet, "/bookings?state=BOGUS", "1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	// текст не зависит от присланного значения
	assert.Equal(t, "Unknown state: UNSUPPORTED_STATUS", body["error"])
	assert.Empty(t, *calls)
}

func TestGateway_BookingTimeValidation(t *testing.T) {
	srv, calls := setupGateway(t, config.GatewayRateLimitConfig{})

	now := time.Now()

	rec := gwRequest(t, srv, http.MethodPost, "/bookings", "1", map[string]any{
		"itemId": 1, "start": now.Add(-time.Hour), "end": now.Add(time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = gwRequest(t, srv, http.MethodPost, "/bookings", "1", map[string]any{
		"itemId": 1, "start": now.Add(2 * time.Hour), "end": now.Add(time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, *calls)

	rec = gwRequest(t, srv, http.MethodPost, "/bookings", "1", map[string]any{
		"itemId": 1, "start": now.Add(time.Hour), "end": now.Add(2 * time.Hour),
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, *calls, 1)
}

func TestGateway_TokenBucketLimit(t *testing.T) {
	srv, _ := setupGateway(t, config.GatewayRateLimitConfig{RPS: 0.001, Burst: 2})

	rec := gwRequest(t, srv, http.MethodGet, "/users", "", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = gwRequest(t, srv, http.MethodGet, "/users", "", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = gwRequest(t, srv, http.MethodGet, "/users", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestGateway_WindowCounterLimit(t *testing.T) {
	var calls []upstreamCall
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, upstreamCall{Path: r.URL.Path})
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	gwCfg := &config.GatewayConfig{
		Port:      0,
		ServerURL: upstream.URL,
		RateLimit: config.GatewayRateLimitConfig{RPS: 1000, Burst: 1000, Requests: 2, Window: 60},
	}
	logger := zerolog.Nop()
	srv := NewServer(gwCfg, NewClient(upstream.URL), repository.NewMemoryRateLimitRepository(), &logger)

	for i := 0; i < 2; i++ {
		rec := gwRequest(t, srv, http.MethodGet, "/users", "9", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := gwRequest(t, srv, http.MethodGet, "/users", "9", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Len(t, calls, 2)
}

func TestGateway_UpstreamDown(t *testing.T) {
	gwCfg := &config.GatewayConfig{
		Port:      0,
		ServerURL: "http://127.0.0.1:1",
		RateLimit: config.GatewayRateLimitConfig{RPS: 1000, Burst: 1000},
	}
	logger := zerolog.Nop()
	srv := NewServer(gwCfg, NewClient("http://127.0.0.1:1"), nil, &logger)

	rec := gwRequest(t, srv, http.MethodGet, "/users", "", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
