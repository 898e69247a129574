package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shareit/internal/database"
	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

type ItemService struct {
	items    domain.ItemRepository
	users    domain.UserRepository
	bookings domain.BookingRepository
	comments domain.CommentRepository
	requests domain.RequestRepository
	logger   *zerolog.Logger
}

func NewItemService(items domain.ItemRepository, users domain.UserRepository, bookings domain.BookingRepository, comments domain.CommentRepository, requests domain.RequestRepository, logger *zerolog.Logger) *ItemService {
	return &ItemService{
		items:    items,
		users:    users,
		bookings: bookings,
		comments: comments,
		requests: requests,
		logger:   logger,
	}
}

func (s *ItemService) CreateItem(ctx context.Context, ownerID int64, item *models.Item) (*models.Item, error) {
	if strings.TrimSpace(item.Name) == "" {
		return nil, fmt.Errorf("item name is blank: %w", ErrValidation)
	}
	if strings.TrimSpace(item.Description) == "" {
		return nil, fmt.Errorf("item description is blank: %w", ErrValidation)
	}

	if err := s.checkUserExists(ctx, ownerID); err != nil {
		return nil, err
	}
	if item.RequestID != nil {
		if _, err := s.requests.GetRequestByID(ctx, *item.RequestID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, fmt.Errorf("request %d: %w", *item.RequestID, ErrNotFound)
			}
			return nil, err
		}
	}

	item.OwnerID = ownerID
	if err := s.items.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.logger.Info().Int64("item_id", item.ID).Int64("owner_id", ownerID).Msg("item created")
	return item, nil
}

// UpdateItem применяет частичное обновление. Редактировать вещь может
// только ее владелец; для остальных вещь выглядит несуществующей.
func (s *ItemService) UpdateItem(ctx context.Context, userID, itemID int64, patch *models.ItemPatch) (*models.Item, error) {
	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != userID {
		return nil, fmt.Errorf("item %d does not belong to user %d: %w", itemID, userID, ErrNotFound)
	}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, fmt.Errorf("item name is blank: %w", ErrValidation)
		}
		item.Name = *patch.Name
	}
	if patch.Description != nil {
		if strings.TrimSpace(*patch.Description) == "" {
			return nil, fmt.Errorf("item description is blank: %w", ErrValidation)
		}
		item.Description = *patch.Description
	}
	if patch.Available != nil {
		item.Available = *patch.Available
	}

	if err := s.items.UpdateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// GetItem возвращает вещь с комментариями. Сведения о последнем и
// следующем бронировании видит только владелец.
func (s *ItemService) GetItem(ctx context.Context, userID, itemID int64) (*models.ItemDetail, error) {
	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	detail := &models.ItemDetail{Item: *item}
	now := time.Now()

	if item.OwnerID == userID {
		s.attachBookings(ctx, detail, now)
	}

	comments, err := s.comments.GetCommentsByItemID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	detail.Comments = comments
	return detail, nil
}

// GetOwnerItems возвращает вещи владельца с бронированиями и комментариями.
func (s *ItemService) GetOwnerItems(ctx context.Context, ownerID int64, from, size int) ([]*models.ItemDetail, error) {
	offset, err := pageOffset(from, size)
	if err != nil {
		return nil, err
	}
	if err := s.checkUserExists(ctx, ownerID); err != nil {
		return nil, err
	}

	items, err := s.items.GetItemsByOwnerID(ctx, ownerID, size, offset)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	details := make([]*models.ItemDetail, 0, len(items))
	for _, item := range items {
		detail := &models.ItemDetail{Item: *item}
		s.attachBookings(ctx, detail, now)

		comments, err := s.comments.GetCommentsByItemID(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		detail.Comments = comments
		details = append(details, detail)
	}
	return details, nil
}

// SearchItems ищет доступные вещи по тексту. Пустой запрос дает пустой
// результат без обращения к хранилищу.
func (s *ItemService) SearchItems(ctx context.Context, text string, from, size int) ([]*models.Item, error) {
	offset, err := pageOffset(from, size)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return []*models.Item{}, nil
	}
	items, err := s.items.SearchItems(ctx, text, size, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.Item{}
	}
	return items, nil
}

// AddComment разрешает комментировать только тем, кто уже завершил
// подтвержденную аренду вещи.
func (s *ItemService) AddComment(ctx context.Context, authorID, itemID int64, text string) (*models.Comment, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("comment text is blank: %w", ErrValidation)
	}
	if len(text) > models.MaxCommentLength {
		return nil, fmt.Errorf("comment text is too long: %w", ErrValidation)
	}

	booking, err := s.bookings.GetPastApprovedBooking(ctx, authorID, itemID, time.Now())
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("user %d has no finished booking of item %d: %w", authorID, itemID, ErrValidation)
		}
		return nil, err
	}

	author, err := s.users.GetUserByID(ctx, booking.BookerID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Text:       text,
		ItemID:     booking.ItemID,
		AuthorID:   booking.BookerID,
		AuthorName: author.Name,
		Created:    time.Now(),
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return comment, nil
}

// GetItemBookings возвращает вещь и всю историю ее бронирований.
// Доступно только владельцу вещи.
func (s *ItemService) GetItemBookings(ctx context.Context, userID, itemID int64) (*models.Item, []*models.Booking, error) {
	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if item.OwnerID != userID {
		return nil, nil, fmt.Errorf("item %d does not belong to user %d: %w", itemID, userID, ErrNotFound)
	}

	bookings, err := s.bookings.GetBookingsForItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	return item, bookings, nil
}

func (s *ItemService) getItem(ctx context.Context, itemID int64) (*models.Item, error) {
	item, err := s.items.GetItemByID(ctx, itemID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *ItemService) checkUserExists(ctx context.Context, userID int64) error {
	_, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return err
}

// attachBookings заполняет last/next booking. Отсутствие бронирований не
// считается ошибкой, остальные сбои только логируются.
func (s *ItemService) attachBookings(ctx context.Context, detail *models.ItemDetail, now time.Time) {
	last, err := s.bookings.GetLastBooking(ctx, detail.ID, now)
	if err == nil {
		detail.LastBooking = last
	} else if !errors.Is(err, database.ErrNotFound) {
		s.logger.Error().Err(err).Int64("item_id", detail.ID).Msg("failed to load last booking")
	}

	next, err := s.bookings.GetNextBooking(ctx, detail.ID, now)
	if err == nil {
		detail.NextBooking = next
	} else if !errors.Is(err, database.ErrNotFound) {
		s.logger.Error().Err(err).Int64("item_id", detail.ID).Msg("failed to load next booking")
	}
}
