package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"shareit/internal/config"
	"shareit/internal/database"
	"shareit/internal/export"
	"shareit/internal/models"
	"shareit/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupServer собирает сервер поверх sqlite в памяти: хендлеры тестируются
// вместе с сервисами и хранилищем.
func setupServer(t *testing.T) *Server {
	t.Helper()

	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{Port: 0, DefaultPageSize: models.DefaultPageSize},
	}

	users := service.NewUserService(db, &logger)
	items := service.NewItemService(db, db, db, db, db, &logger)
	bookings := service.NewBookingService(db, db, db, nil, nil, &logger)
	requests := service.NewRequestService(db, db, db, &logger)
	reporter := export.NewReporter(t.TempDir(), zerolog.Nop())

	return NewServer(cfg, users, items, bookings, requests, reporter, &logger)
}

func doRequest(t *testing.T, srv *Server, method, path string, userID int64, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID > 0 {
		req.Header.Set(HeaderUserID, fmt.Sprintf("%d", userID))
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func createUser(t *testing.T, srv *Server, name, email string) models.User {
	rec := doRequest(t, srv, http.MethodPost, "/users", 0, map[string]string{"name": name, "email": email})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var user models.User
	decodeInto(t, rec, &user)
	return user
}

func createItem(t *testing.T, srv *Server, ownerID int64, name string) models.Item {
	rec := doRequest(t, srv, http.MethodPost, "/items", ownerID, map[string]any{
		"name": name, "description": name + " description", "available": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item models.Item
	decodeInto(t, rec, &item)
	return item
}

func TestUsersEndpoints(t *testing.T) {
	srv := setupServer(t)

	user := createUser(t, srv, "Alice", "alice@example.com")
	assert.NotZero(t, user.ID)

	// дубликат email дает 409
	rec := doRequest(t, srv, http.MethodPost, "/users", 0, map[string]string{"name": "Dup", "email": "alice@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/users/%d", user.ID), 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodPatch, fmt.Sprintf("/users/%d", user.ID), 0, map[string]string{"name": "Alicia"})
	assert.Equal(t, http.StatusOK, rec.Code)
	var updated models.User
	decodeInto(t, rec, &updated)
	assert.Equal(t, "Alicia", updated.Name)
	assert.Equal(t, "alice@example.com", updated.Email)

	rec = doRequest(t, srv, http.MethodGet, "/users/999", 0, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/users/%d", user.ID), 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/users/%d", user.ID), 0, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestItemsEndpoints(t *testing.T) {
	srv := setupServer(t)

	owner := createUser(t, srv, "Owner", "owner@example.com")
	item := createItem(t, srv, owner.ID, "Drill")

	// без заголовка пользователя создание невозможно
	rec := doRequest(t, srv, http.MethodPost, "/items", 0, map[string]any{
		"name": "x", "description": "y", "available": true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// чужой пользователь не может редактировать вещь
	stranger := createUser(t, srv, "Stranger", "stranger@example.com")
	rec = doRequest(t, srv, http.MethodPatch, fmt.Sprintf("/items/%d", item.ID), stranger.ID,
		map[string]string{"name": "Stolen"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodPatch, fmt.Sprintf("/items/%d", item.ID), owner.ID,
		map[string]string{"description": "updated"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/items/%d", item.ID), stranger.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var detail models.ItemDetail
	decodeInto(t, rec, &detail)
	assert.Equal(t, "updated", detail.Description)

	rec = doRequest(t, srv, http.MethodGet, "/items", owner.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/items/search?text=dri", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var found []models.Item
	decodeInto(t, rec, &found)
	require.Len(t, found, 1)

	// пустой поисковый запрос дает пустой список
	rec = doRequest(t, srv, http.MethodGet, "/items/search?text=", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestBookingFlow(t *testing.T) {
	srv := setupServer(t)

	owner := createUser(t, srv, "Owner", "owner@example.com")
	booker := createUser(t, srv, "Booker", "booker@example.com")
	item := createItem(t, srv, owner.ID, "Tent")

	start := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	end := start.Add(24 * time.Hour)

	rec := doRequest(t, srv, http.MethodPost, "/bookings", booker.ID, map[string]any{
		"itemId": item.ID, "start": start, "end": end,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var booking models.Booking
	decodeInto(t, rec, &booking)
	assert.Equal(t, models.StatusWaiting, booking.Status)

	// пересекающееся бронирование отклоняется
	rec = doRequest(t, srv, http.MethodPost, "/bookings", booker.ID, map[string]any{
		"itemId": item.ID, "start": start.Add(time.Hour), "end": end.Add(time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// бронирование своей вещи выглядит как отсутствие вещи
	rec = doRequest(t, srv, http.MethodPost, "/bookings", owner.ID, map[string]any{
		"itemId": item.ID, "start": start.Add(100 * time.Hour), "end": end.Add(100 * time.Hour),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// подтверждать может только владелец
	rec = doRequest(t, srv, http.MethodPatch, fmt.Sprintf("/bookings/%d?approved=true", booking.ID), booker.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodPatch, fmt.Sprintf("/bookings/%d?approved=true", booking.ID), owner.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeInto(t, rec, &booking)
	assert.Equal(t, models.StatusApproved, booking.Status)

	// повторное подтверждение запрещено
	rec = doRequest(t, srv, http.MethodPatch, fmt.Sprintf("/bookings/%d?approved=true", booking.ID), owner.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// бронирование видят только участники
	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/bookings/%d", booking.ID), booker.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	stranger := createUser(t, srv, "Stranger", "stranger@example.com")
	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/bookings/%d", booking.ID), stranger.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/bookings?state=FUTURE", booker.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var list []models.Booking
	decodeInto(t, rec, &list)
	assert.Len(t, list, 1)

	rec = doRequest(t, srv, http.MethodGet, "/bookings/owner", owner.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &list)
	assert.Len(t, list, 1)
}

func TestBookingUnknownState(t *testing.T) {
	srv := setupServer(t)
	booker := createUser(t, srv, "Booker", "booker@example.com")

	// текст ошибки фиксированный и не повторяет присланное значение
	for _, state := range []string{"BOGUS", "UNSUPPORTED_STATUS", "waiting"} {
		rec := doRequest(t, srv, http.MethodGet, "/bookings?state="+state, booker.ID, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body map[string]string
		decodeInto(t, rec, &body)
		assert.Equal(t, "Unknown state: UNSUPPORTED_STATUS", body["error"])
	}
}

func TestRequestsEndpoints(t *testing.T) {
	srv := setupServer(t)

	requester := createUser(t, srv, "Requester", "req@example.com")
	owner := createUser(t, srv, "Owner", "owner@example.com")

	rec := doRequest(t, srv, http.MethodPost, "/requests", requester.ID, map[string]string{"description": "need a drill"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.ItemRequest
	decodeInto(t, rec, &created)

	// вещь в ответ на запрос
	rec = doRequest(t, srv, http.MethodPost, "/items", owner.ID, map[string]any{
		"name": "Drill", "description": "answers the request", "available": true, "requestId": created.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, srv, http.MethodGet, "/requests", requester.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var own []models.RequestDetail
	decodeInto(t, rec, &own)
	require.Len(t, own, 1)
	assert.Len(t, own[0].Items, 1)

	// свои запросы не попадают в /requests/all
	rec = doRequest(t, srv, http.MethodGet, "/requests/all", requester.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var others []models.RequestDetail
	decodeInto(t, rec, &others)
	assert.Empty(t, others)

	rec = doRequest(t, srv, http.MethodGet, "/requests/all", owner.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &others)
	assert.Len(t, others, 1)

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/requests/%d", created.ID), owner.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/requests/999", owner.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommentFlow(t *testing.T) {
	srv := setupServer(t)

	owner := createUser(t, srv, "Owner", "owner@example.com")
	booker := createUser(t, srv, "Booker", "booker@example.com")
	item := createItem(t, srv, owner.ID, "Tent")

	// без завершенного бронирования комментарий запрещен
	rec := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/items/%d/comment", item.ID), booker.ID,
		map[string]string{"text": "never used"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// завершенная подтвержденная аренда открывает право на комментарий
	start := time.Now().Add(-2 * time.Hour).UTC()
	rec = doRequest(t, srv, http.MethodPost, "/bookings", booker.ID, map[string]any{
		"itemId": item.ID, "start": start, "end": start.Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var booking models.Booking
	decodeInto(t, rec, &booking)

	rec = doRequest(t, srv, http.MethodPatch, fmt.Sprintf("/bookings/%d?approved=true", booking.ID), owner.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, fmt.Sprintf("/items/%d/comment", item.ID), booker.ID,
		map[string]string{"text": "served me well"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var comment models.Comment
	decodeInto(t, rec, &comment)
	assert.Equal(t, "Booker", comment.AuthorName)

	// комментарии видны всем в карточке вещи
	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/items/%d", item.ID), booker.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail models.ItemDetail
	decodeInto(t, rec, &detail)
	require.Len(t, detail.Comments, 1)
	assert.Nil(t, detail.LastBooking)

	// владелец видит и последнее бронирование
	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/items/%d", item.ID), owner.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &detail)
	require.NotNil(t, detail.LastBooking)
	assert.Equal(t, booker.ID, detail.LastBooking.BookerID)
}

func TestItemReportEndpoint(t *testing.T) {
	srv := setupServer(t)

	owner := createUser(t, srv, "Owner", "owner@example.com")
	stranger := createUser(t, srv, "Stranger", "stranger@example.com")
	item := createItem(t, srv, owner.ID, "Drill")

	rec := doRequest(t, srv, http.MethodGet, fmt.Sprintf("/items/%d/report", item.ID), owner.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.NotZero(t, rec.Body.Len())

	// отчет доступен только владельцу
	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/items/%d/report", item.ID), stranger.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	srv := setupServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
