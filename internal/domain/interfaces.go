package domain

import (
	"context"
	"time"

	"shareit/internal/models"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id int64) error
}

type ItemRepository interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItemByID(ctx context.Context, id int64) (*models.Item, error)
	UpdateItem(ctx context.Context, item *models.Item) error
	SearchItems(ctx context.Context, text string, limit, offset int) ([]*models.Item, error)
	GetItemsByOwnerID(ctx context.Context, ownerID int64, limit, offset int) ([]*models.Item, error)
	GetItemsByRequestIDs(ctx context.Context, requestIDs []int64) ([]*models.Item, error)
}

type BookingRepository interface {
	CreateBookingChecked(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, status string) error
	GetBookingsForUser(ctx context.Context, userID int64, role models.Role,
		state models.BookingState, now time.Time, limit, offset int) ([]*models.Booking, error)
	GetLastBooking(ctx context.Context, itemID int64, now time.Time) (*models.BookingShort, error)
	GetNextBooking(ctx context.Context, itemID int64, now time.Time) (*models.BookingShort, error)
	GetPastApprovedBooking(ctx context.Context, bookerID, itemID int64, now time.Time) (*models.Booking, error)
	GetBookingsForItem(ctx context.Context, itemID int64) ([]*models.Booking, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetCommentsByItemID(ctx context.Context, itemID int64) ([]models.Comment, error)
}

type RequestRepository interface {
	CreateRequest(ctx context.Context, request *models.ItemRequest) error
	GetRequestByID(ctx context.Context, id int64) (*models.ItemRequest, error)
	GetRequestsByRequesterID(ctx context.Context, requesterID int64) ([]*models.ItemRequest, error)
	GetRequestsExcludingRequester(ctx context.Context, requesterID int64, limit, offset int) ([]*models.ItemRequest, error)
}

type SyncQueue interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, lastError string, nextRetryAt *time.Time) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// RateLimitRepository считает запросы клиента в скользящем окне. Ключом
// служит идентификатор пользователя или адрес клиента.
type RateLimitRepository interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SyncWorker принимает задачи на отложенную синхронизацию журнала бронирований.
type SyncWorker interface {
	EnqueueUpsert(ctx context.Context, booking *models.Booking) error
	EnqueueStatus(ctx context.Context, bookingID int64, status string) error
}
