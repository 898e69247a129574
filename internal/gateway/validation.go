package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"shareit/internal/models"
)

// Шлюз повторяет проверки формы запроса до похода на сервер: явно кривые
// запросы отсекаются с 400, не нагружая основной сервис.

type userBody struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

type itemBody struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Available   *bool   `json:"available"`
	RequestID   *int64  `json:"requestId"`
}

type bookingBody struct {
	ItemID int64      `json:"itemId"`
	Start  *time.Time `json:"start"`
	End    *time.Time `json:"end"`
}

type commentBody struct {
	Text string `json:"text"`
}

type requestBody struct {
	Description string `json:"description"`
}

func validateCreateUser(raw []byte) error {
	var body userBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	if body.Name == nil || strings.TrimSpace(*body.Name) == "" {
		return fmt.Errorf("name must not be blank")
	}
	if body.Email == nil {
		return fmt.Errorf("email is required")
	}
	return validateEmailShape(*body.Email)
}

func validatePatchUser(raw []byte) error {
	var body userBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	if body.Name != nil && strings.TrimSpace(*body.Name) == "" {
		return fmt.Errorf("name must not be blank")
	}
	if body.Email != nil {
		return validateEmailShape(*body.Email)
	}
	return nil
}

func validateEmailShape(email string) error {
	trimmed := strings.TrimSpace(email)
	at := strings.Index(trimmed, "@")
	if trimmed == "" || at <= 0 || at == len(trimmed)-1 {
		return fmt.Errorf("email is malformed")
	}
	return nil
}

func validateCreateItem(raw []byte) error {
	var body itemBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	if body.Name == nil || strings.TrimSpace(*body.Name) == "" {
		return fmt.Errorf("name must not be blank")
	}
	if body.Description == nil || strings.TrimSpace(*body.Description) == "" {
		return fmt.Errorf("description must not be blank")
	}
	if body.Available == nil {
		return fmt.Errorf("available is required")
	}
	return nil
}

func validatePatchItem(raw []byte) error {
	var body itemBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	if body.Name != nil && strings.TrimSpace(*body.Name) == "" {
		return fmt.Errorf("name must not be blank")
	}
	if body.Description != nil && strings.TrimSpace(*body.Description) == "" {
		return fmt.Errorf("description must not be blank")
	}
	return nil
}

func validateCreateBooking(raw []byte, now time.Time) error {
	var body bookingBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	if body.ItemID <= 0 {
		return fmt.Errorf("itemId must be positive")
	}
	if body.Start == nil || body.End == nil {
		return fmt.Errorf("start and end are required")
	}
	if body.Start.Before(now) {
		return fmt.Errorf("start must not be in the past")
	}
	if !body.End.After(now) {
		return fmt.Errorf("end must be in the future")
	}
	if !body.Start.Before(*body.End) {
		return fmt.Errorf("start must be before end")
	}
	return nil
}

func validateComment(raw []byte) error {
	var body commentBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	if strings.TrimSpace(body.Text) == "" {
		return fmt.Errorf("text must not be blank")
	}
	if len(body.Text) > models.MaxCommentLength {
		return fmt.Errorf("text must not exceed %d characters", models.MaxCommentLength)
	}
	return nil
}

func validateCreateRequest(raw []byte) error {
	var body requestBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	if strings.TrimSpace(body.Description) == "" {
		return fmt.Errorf("description must not be blank")
	}
	return nil
}

func validatePaging(fromRaw, sizeRaw string) error {
	if fromRaw != "" {
		from, err := strconv.Atoi(fromRaw)
		if err != nil || from < 0 {
			return fmt.Errorf("from must be a non-negative integer")
		}
	}
	if sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil || size <= 0 {
			return fmt.Errorf("size must be a positive integer")
		}
	}
	return nil
}

func validateState(raw string) error {
	if raw == "" {
		return nil
	}
	if _, ok := models.ParseBookingState(raw); !ok {
		// Текст фиксированный для любого неизвестного значения
		return errors.New("Unknown state: UNSUPPORTED_STATUS")
	}
	return nil
}

func validateApproved(raw string) error {
	switch strings.ToLower(raw) {
	case "true", "false":
		return nil
	default:
		return fmt.Errorf("approved must be true or false")
	}
}
