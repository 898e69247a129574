package service

import "errors"

// Сентинельные ошибки сервисного слоя. HTTP-слой транслирует их в коды ответа.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)
