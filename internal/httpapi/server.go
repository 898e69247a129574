package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"shareit/internal/config"
	"shareit/internal/export"
	"shareit/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes the main REST API of the item sharing backend.
type Server struct {
	cfg      *config.Config
	users    *service.UserService
	items    *service.ItemService
	bookings *service.BookingService
	requests *service.RequestService
	reporter *export.Reporter
	server   *http.Server
	log      zerolog.Logger
	pageSize int
}

func NewServer(cfg *config.Config, users *service.UserService, items *service.ItemService, bookings *service.BookingService, requests *service.RequestService, reporter *export.Reporter, logger *zerolog.Logger) *Server {
	srv := &Server{
		cfg:      cfg,
		users:    users,
		items:    items,
		bookings: bookings,
		requests: requests,
		reporter: reporter,
		log:      logger.With().Str("component", "httpapi").Logger(),
		pageSize: cfg.Server.DefaultPageSize,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /users", srv.handleCreateUser)
	mux.HandleFunc("GET /users", srv.handleGetAllUsers)
	mux.HandleFunc("GET /users/{id}", srv.handleGetUser)
	mux.HandleFunc("PATCH /users/{id}", srv.handleUpdateUser)
	mux.HandleFunc("DELETE /users/{id}", srv.handleDeleteUser)

	mux.HandleFunc("POST /items", srv.handleCreateItem)
	mux.HandleFunc("PATCH /items/{itemId}", srv.handleUpdateItem)
	mux.HandleFunc("GET /items/{itemId}", srv.handleGetItem)
	mux.HandleFunc("GET /items", srv.handleGetOwnerItems)
	mux.HandleFunc("GET /items/search", srv.handleSearchItems)
	mux.HandleFunc("POST /items/{itemId}/comment", srv.handleAddComment)
	mux.HandleFunc("GET /items/{itemId}/report", srv.handleItemReport)

	mux.HandleFunc("POST /bookings", srv.handleCreateBooking)
	mux.HandleFunc("PATCH /bookings/{bookingId}", srv.handleConfirmBooking)
	mux.HandleFunc("GET /bookings/{bookingId}", srv.handleGetBooking)
	mux.HandleFunc("GET /bookings", srv.handleGetBookerBookings)
	mux.HandleFunc("GET /bookings/owner", srv.handleGetOwnerBookings)

	mux.HandleFunc("POST /requests", srv.handleCreateRequest)
	mux.HandleFunc("GET /requests", srv.handleGetOwnRequests)
	mux.HandleFunc("GET /requests/all", srv.handleGetAllRequests)
	mux.HandleFunc("GET /requests/{requestId}", srv.handleGetRequest)

	mux.HandleFunc("GET /health", srv.handleHealth)
	if cfg.Monitoring.PrometheusEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           loggingMiddleware(logger, mux),
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
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
