package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"shareit/internal/config"
	"shareit/internal/domain"

	"github.com/rs/zerolog"
)

const headerUserID = "X-Sharer-User-Id"

// Server is the validating gateway in front of the main REST API. It
// rate-limits clients, rejects malformed requests and proxies the rest.
type Server struct {
	cfg     *config.GatewayConfig
	client  *Client
	limiter *rateLimiter
	counter domain.RateLimitRepository
	server  *http.Server
	log     zerolog.Logger
}

func NewServer(cfg *config.GatewayConfig, client *Client, counter domain.RateLimitRepository, logger *zerolog.Logger) *Server {
	srv := &Server{
		cfg:     cfg,
		client:  client,
		limiter: newRateLimiter(&cfg.RateLimit),
		counter: counter,
		log:     logger.With().Str("component", "gateway").Logger(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /users", srv.withChecks(validateBody(validateCreateUser), false))
	mux.HandleFunc("GET /users", srv.withChecks(nil, false))
	mux.HandleFunc("GET /users/{id}", srv.withChecks(nil, false))
	mux.HandleFunc("PATCH /users/{id}", srv.withChecks(validateBody(validatePatchUser), false))
	mux.HandleFunc("DELETE /users/{id}", srv.withChecks(nil, false))

	mux.HandleFunc("POST /items", srv.withChecks(validateBody(validateCreateItem), true))
	mux.HandleFunc("PATCH /items/{itemId}", srv.withChecks(validateBody(validatePatchItem), true))
	mux.HandleFunc("GET /items/{itemId}", srv.withChecks(nil, true))
	mux.HandleFunc("GET /items", srv.withChecks(checkPaging, true))
	mux.HandleFunc("GET /items/search", srv.withChecks(checkPaging, false))
	mux.HandleFunc("POST /items/{itemId}/comment", srv.withChecks(validateBody(validateComment), true))

	mux.HandleFunc("POST /bookings", srv.withChecks(checkCreateBooking, true))
	mux.HandleFunc("PATCH /bookings/{bookingId}", srv.withChecks(checkApproved, true))
	mux.HandleFunc("GET /bookings/{bookingId}", srv.withChecks(nil, true))
	mux.HandleFunc("GET /bookings", srv.withChecks(checkStateAndPaging, true))
	mux.HandleFunc("GET /bookings/owner", srv.withChecks(checkStateAndPaging, true))

	mux.HandleFunc("POST /requests", srv.withChecks(validateBody(validateCreateRequest), true))
	mux.HandleFunc("GET /requests", srv.withChecks(nil, true))
	mux.HandleFunc("GET /requests/all", srv.withChecks(checkPaging, true))
	mux.HandleFunc("GET /requests/{requestId}", srv.withChecks(nil, true))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler возвращает корневой обработчик. Используется в тестах.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("gateway listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// checkFunc валидирует запрос; тело уже прочитано и передается срезом.
type checkFunc func(r *http.Request, body []byte) error

func validateBody(validate func([]byte) error) checkFunc {
	return func(_ *http.Request, body []byte) error {
		return validate(body)
	}
}

func checkPaging(r *http.Request, _ []byte) error {
	return validatePaging(r.URL.Query().Get("from"), r.URL.Query().Get("size"))
}

func checkStateAndPaging(r *http.Request, _ []byte) error {
	if err := validateState(r.URL.Query().Get("state")); err != nil {
		return err
	}
	return checkPaging(r, nil)
}

func checkCreateBooking(_ *http.Request, body []byte) error {
	return validateCreateBooking(body, time.Now())
}

func checkApproved(r *http.Request, _ []byte) error {
	return validateApproved(r.URL.Query().Get("approved"))
}

// withChecks строит обработчик: лимит запросов, заголовок пользователя,
// валидация, проксирование.
func (s *Server) withChecks(check checkFunc, requireUser bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.allow(r) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		userID := r.Header.Get(headerUserID)
		if requireUser {
			if userID == "" {
				writeError(w, http.StatusBadRequest, headerUserID+" header is required")
				return
			}
			if id, err := strconv.ParseInt(userID, 10, 64); err != nil || id <= 0 {
				writeError(w, http.StatusBadRequest, headerUserID+" header is invalid")
				return
			}
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}

		if check != nil {
			if err := check(r, body); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		resp, err := s.client.Forward(r.Context(), r.Method, r.URL.Path, r.URL.Query(), userID, body)
		if err != nil {
			s.log.Error().Err(err).Str("path", r.URL.Path).Msg("upstream error")
			writeError(w, http.StatusBadGateway, "upstream is unavailable")
			return
		}

		contentType := resp.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(resp.Body)
	}
}

// allow сочетает мгновенный token-bucket лимит и счетчик в окне. Клиент
// определяется заголовком пользователя, иначе адресом.
func (s *Server) allow(r *http.Request) bool {
	key := r.Header.Get(headerUserID)
	if key == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		key = "ip:" + host
	}

	if !s.limiter.getLimiter(key).Allow() {
		return false
	}

	if s.counter != nil && s.cfg.RateLimit.Requests > 0 {
		window := time.Duration(s.cfg.RateLimit.Window) * time.Second
		allowed, err := s.counter.CheckRateLimit(r.Context(), key, s.cfg.RateLimit.Requests, window)
		if err != nil {
			s.log.Error().Err(err).Msg("rate limit check failed")
			return true
		}
		return allowed
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
