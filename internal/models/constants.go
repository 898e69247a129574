package models

const (
	// DefaultPageSize размер страницы списков по умолчанию
	DefaultPageSize = 10

	// MaxCommentLength максимальная длина текста комментария
	MaxCommentLength = 2000

	// RateLimitRequests количество запросов в окне на одного пользователя
	RateLimitRequests = 60

	// RateLimitWindow окно ограничения частоты запросов, секунды
	RateLimitWindow = 60

	// WorkerQueueSize размер очереди воркера синхронизации
	WorkerQueueSize = 128
)
