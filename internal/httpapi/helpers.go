package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"shareit/internal/models"
	"shareit/internal/service"
)

// HeaderUserID идентифицирует пользователя, от имени которого выполняется
// запрос. Заголовок обязателен для всех операций, кроме работы с users.
const HeaderUserID = "X-Sharer-User-Id"

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeServiceError транслирует сентинельные ошибки сервисного слоя в коды
// ответа. Неопознанные ошибки считаются внутренними.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func userIDFromHeader(r *http.Request) (int64, error) {
	raw := r.Header.Get(HeaderUserID)
	if raw == "" {
		return 0, fmt.Errorf("%s header is required", HeaderUserID)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s header is invalid", HeaderUserID)
	}
	return id, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

// queryInt читает целочисленный query-параметр с значением по умолчанию.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// parseState разбирает фильтр состояния бронирований. Текст ошибки для
// любого неизвестного значения фиксированный, его ждут существующие
// интеграции.
func parseState(r *http.Request) (models.BookingState, error) {
	raw := r.URL.Query().Get("state")
	if raw == "" {
		return models.StateAll, nil
	}
	state, ok := models.ParseBookingState(raw)
	if !ok {
		return "", errors.New("Unknown state: UNSUPPORTED_STATUS")
	}
	return state, nil
}
