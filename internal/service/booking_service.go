package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shareit/internal/database"
	"shareit/internal/domain"
	"shareit/internal/events"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

type BookingService struct {
	bookings   domain.BookingRepository
	items      domain.ItemRepository
	users      domain.UserRepository
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	logger     *zerolog.Logger
}

func NewBookingService(bookings domain.BookingRepository, items domain.ItemRepository, users domain.UserRepository, eventBus domain.EventPublisher, syncWorker domain.SyncWorker, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		bookings:   bookings,
		items:      items,
		users:      users,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		logger:     logger,
	}
}

// CreateBooking проверяет арендатора, вещь и интервал, после чего создает
// бронирование в статусе WAITING. Порядок проверок важен: несуществующие
// сущности и попытка забронировать свою вещь дают ErrNotFound, проблемы
// с доступностью и временем дают ErrValidation.
func (s *BookingService) CreateBooking(ctx context.Context, bookerID int64, booking *models.Booking) (*models.Booking, error) {
	if _, err := s.users.GetUserByID(ctx, bookerID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("user %d: %w", bookerID, ErrNotFound)
		}
		return nil, err
	}

	item, err := s.items.GetItemByID(ctx, booking.ItemID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("item %d: %w", booking.ItemID, ErrNotFound)
		}
		return nil, err
	}

	if item.OwnerID == bookerID {
		return nil, fmt.Errorf("owner cannot book own item: %w", ErrNotFound)
	}
	if !item.Available {
		return nil, fmt.Errorf("item %d is not available: %w", booking.ItemID, ErrValidation)
	}
	if !booking.Start.Before(booking.End) {
		return nil, fmt.Errorf("booking start must be before end: %w", ErrValidation)
	}

	booking.BookerID = bookerID
	booking.Status = models.StatusWaiting

	if err := s.bookings.CreateBookingChecked(ctx, booking); err != nil {
		if errors.Is(err, database.ErrTimeCrossing) {
			return nil, fmt.Errorf("item %d is already booked for this period: %w", booking.ItemID, ErrValidation)
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	booking.ItemName = item.Name
	booking.ItemOwnerID = item.OwnerID

	s.publishEvent(events.EventBookingCreated, booking, "booker", bookerID)
	s.enqueueUpsert(ctx, booking)

	s.logger.Info().Int64("booking_id", booking.ID).Int64("item_id", booking.ItemID).Msg("booking created")
	return booking, nil
}

// ConfirmBooking переводит бронирование в APPROVED или REJECTED. Решение
// принимает только владелец вещи; для остальных бронирование невидимо.
// Повторное подтверждение уже одобренного бронирования запрещено, повторное
// решение по отклоненному допускается.
func (s *BookingService) ConfirmBooking(ctx context.Context, ownerID, bookingID int64, approved string) (*models.Booking, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.ItemOwnerID != ownerID {
		return nil, fmt.Errorf("user %d is not the owner of booking %d: %w", ownerID, bookingID, ErrNotFound)
	}
	if booking.Status == models.StatusApproved {
		return nil, fmt.Errorf("booking is already confirmed: %w", ErrValidation)
	}

	var status string
	var eventType string
	switch strings.ToLower(approved) {
	case "true":
		status = models.StatusApproved
		eventType = events.EventBookingApproved
	case "false":
		status = models.StatusRejected
		eventType = events.EventBookingRejected
	default:
		return nil, fmt.Errorf("approved must be true or false: %w", ErrValidation)
	}

	if err := s.bookings.UpdateBookingStatus(ctx, bookingID, status); err != nil {
		return nil, err
	}
	booking.Status = status

	s.publishEvent(eventType, booking, "owner", ownerID)
	s.enqueueStatus(ctx, booking.ID, status)

	s.logger.Info().Int64("booking_id", bookingID).Str("status", status).Msg("booking status changed")
	return booking, nil
}

// GetBooking показывает бронирование его арендатору и владельцу вещи.
func (s *BookingService) GetBooking(ctx context.Context, userID, bookingID int64) (*models.Booking, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.BookerID != userID && booking.ItemOwnerID != userID {
		return nil, fmt.Errorf("booking %d is not visible to user %d: %w", bookingID, userID, ErrNotFound)
	}
	return booking, nil
}

// GetUserBookings возвращает бронирования пользователя как арендатора или
// как владельца вещей, отфильтрованные по состоянию.
func (s *BookingService) GetUserBookings(ctx context.Context, userID int64, role models.Role, state models.BookingState, from, size int) ([]*models.Booking, error) {
	offset, err := pageOffset(from, size)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		return nil, err
	}

	bookings, err := s.bookings.GetBookingsForUser(ctx, userID, role, state, time.Now(), size, offset)
	if err != nil {
		return nil, err
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	return bookings, nil
}

func (s *BookingService) getBooking(ctx context.Context, bookingID int64) (*models.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, changedBy string, changedByID int64) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:   booking.ID,
		BookerID:    booking.BookerID,
		ItemID:      booking.ItemID,
		ItemName:    booking.ItemName,
		OwnerID:     booking.ItemOwnerID,
		Status:      booking.Status,
		Start:       booking.Start,
		End:         booking.End,
		ChangedBy:   changedBy,
		ChangedByID: changedByID,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueUpsert(ctx context.Context, booking *models.Booking) {
	if s.syncWorker == nil {
		return
	}
	if err := s.syncWorker.EnqueueUpsert(ctx, booking); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("ledger enqueue error")
	}
}

func (s *BookingService) enqueueStatus(ctx context.Context, bookingID int64, status string) {
	if s.syncWorker == nil {
		return
	}
	if err := s.syncWorker.EnqueueStatus(ctx, bookingID, status); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("ledger enqueue error")
	}
}
