package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryRateLimitRepository держит счетчики в памяти процесса. Используется
// как резерв при недоступном Redis и в окружениях без него.
type MemoryRateLimitRepository struct {
	mu      sync.Mutex
	entries map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryRateLimitRepository() *MemoryRateLimitRepository {
	return &MemoryRateLimitRepository{entries: make(map[string]*rateLimitEntry)}
}

func (r *MemoryRateLimitRepository) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
		r.entries[key] = entry
	} else {
		entry.count++
	}

	return entry.count <= limit, nil
}
