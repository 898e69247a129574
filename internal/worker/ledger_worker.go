package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"shareit/internal/domain"
	"shareit/internal/models"
)

const (
	TaskUpsertBooking = "upsert_booking"
	TaskUpdateStatus  = "update_status"

	redisQueueKey      = "ledger:queue"
	redisDeadletterKey = "ledger:deadletter"
)

// LedgerClient пишет бронирования во внешний журнал.
type LedgerClient interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error
}

type taskPayload struct {
	BookingID int64           `json:"booking_id"`
	Booking   *models.Booking `json:"booking,omitempty"`
	Status    string          `json:"status,omitempty"`
}

// LedgerWorker асинхронно переносит изменения бронирований в журнал.
// Задачи складываются в sync_queue, сигнал о новой задаче идёт через
// redis либо локальный канал. Поллинг базы подбирает то, что сигнал
// потерял.
type LedgerWorker struct {
	queue  domain.SyncQueue
	ledger LedgerClient
	redis  *redis.Client
	log    zerolog.Logger

	retry        RetryPolicy
	pollInterval time.Duration
	batchSize    int

	local chan int64
}

type Options struct {
	Retry        RetryPolicy
	PollInterval time.Duration
	BatchSize    int
}

func NewLedgerWorker(queue domain.SyncQueue, ledger LedgerClient, redisClient *redis.Client, log zerolog.Logger, opts Options) *LedgerWorker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.Retry.MaxRetries == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	return &LedgerWorker{
		queue:        queue,
		ledger:       ledger,
		redis:        redisClient,
		log:          log.With().Str("component", "ledger_worker").Logger(),
		retry:        opts.Retry,
		pollInterval: opts.PollInterval,
		batchSize:    opts.BatchSize,
		local:        make(chan int64, 128),
	}
}

func (w *LedgerWorker) EnqueueUpsert(ctx context.Context, booking *models.Booking) error {
	return w.enqueue(ctx, TaskUpsertBooking, taskPayload{
		BookingID: booking.ID,
		Booking:   booking,
	})
}

func (w *LedgerWorker) EnqueueStatus(ctx context.Context, bookingID int64, status string) error {
	return w.enqueue(ctx, TaskUpdateStatus, taskPayload{
		BookingID: bookingID,
		Status:    status,
	})
}

func (w *LedgerWorker) enqueue(ctx context.Context, taskType string, payload taskPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	task := &models.SyncTask{
		TaskType:  taskType,
		BookingID: payload.BookingID,
		Payload:   string(data),
		Status:    "pending",
	}
	if err := w.queue.CreateSyncTask(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue ledger task: %w", err)
	}

	// Сигнал обработчику. Потеря сигнала не страшна, поллинг подберёт.
	if w.redis != nil {
		if err := w.redis.LPush(ctx, redisQueueKey, task.ID).Err(); err == nil {
			return nil
		}
	}
	select {
	case w.local <- task.ID:
	default:
	}
	return nil
}

// Start блокируется до отмены контекста.
func (w *LedgerWorker) Start(ctx context.Context) {
	w.log.Info().Dur("poll_interval", w.pollInterval).Int("batch_size", w.batchSize).Msg("ledger worker started")
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ledger worker stopped")
			return
		case <-w.local:
			w.drainPending(ctx)
		case <-ticker.C:
			w.waitRedisSignal(ctx)
			w.drainPending(ctx)
		}
	}
}

func (w *LedgerWorker) waitRedisSignal(ctx context.Context) {
	if w.redis == nil {
		return
	}
	// Короткий BRPop, чтобы не задерживать поллинг.
	w.redis.BRPop(ctx, 100*time.Millisecond, redisQueueKey)
}

func (w *LedgerWorker) drainPending(ctx context.Context) {
	tasks, err := w.queue.GetPendingSyncTasks(ctx, w.batchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("failed to load pending ledger tasks")
		return
	}
	for i := range tasks {
		if ctx.Err() != nil {
			return
		}
		w.processTask(ctx, &tasks[i])
	}
}

func (w *LedgerWorker) processTask(ctx context.Context, task *models.SyncTask) {
	err := w.applyTask(ctx, task)
	if err == nil {
		if uErr := w.queue.UpdateSyncTaskStatus(ctx, task.ID, "completed", "", nil); uErr != nil {
			w.log.Error().Err(uErr).Int64("task_id", task.ID).Msg("failed to mark ledger task completed")
		}
		w.log.Debug().Int64("task_id", task.ID).Str("task_type", task.TaskType).Msg("ledger task completed")
		return
	}

	w.log.Warn().Err(err).Int64("task_id", task.ID).Str("task_type", task.TaskType).
		Int("retry_count", task.RetryCount).Msg("ledger task failed")

	if w.retry.Exhausted(task.RetryCount + 1) {
		w.failTask(ctx, task, err)
		return
	}

	next := time.Now().Add(w.retry.NextDelay(task.RetryCount + 1))
	if uErr := w.queue.UpdateSyncTaskStatus(ctx, task.ID, "retry", err.Error(), &next); uErr != nil {
		w.log.Error().Err(uErr).Int64("task_id", task.ID).Msg("failed to schedule ledger task retry")
	}
}

func (w *LedgerWorker) applyTask(ctx context.Context, task *models.SyncTask) error {
	var payload taskPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	switch task.TaskType {
	case TaskUpsertBooking:
		if payload.Booking == nil {
			return fmt.Errorf("upsert task %d has no booking payload", task.ID)
		}
		return w.ledger.UpsertBooking(ctx, payload.Booking)
	case TaskUpdateStatus:
		return w.ledger.UpdateBookingStatus(ctx, payload.BookingID, payload.Status)
	default:
		return fmt.Errorf("unknown task type: %s", task.TaskType)
	}
}

func (w *LedgerWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	if err := w.queue.UpdateSyncTaskStatus(ctx, task.ID, "failed", cause.Error(), nil); err != nil {
		w.log.Error().Err(err).Int64("task_id", task.ID).Msg("failed to mark ledger task failed")
	}
	w.log.Error().Int64("task_id", task.ID).Str("task_type", task.TaskType).Msg("ledger task moved to deadletter")

	if w.redis == nil {
		return
	}
	if err := w.redis.LPush(ctx, redisDeadletterKey, task.Payload).Err(); err != nil {
		w.log.Error().Err(err).Int64("task_id", task.ID).Msg("failed to push deadletter entry")
	}
}
