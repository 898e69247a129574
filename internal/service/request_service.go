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

type RequestService struct {
	requests domain.RequestRepository
	items    domain.ItemRepository
	users    domain.UserRepository
	logger   *zerolog.Logger
}

func NewRequestService(requests domain.RequestRepository, items domain.ItemRepository, users domain.UserRepository, logger *zerolog.Logger) *RequestService {
	return &RequestService{requests: requests, items: items, users: users, logger: logger}
}

func (s *RequestService) CreateRequest(ctx context.Context, requesterID int64, description string) (*models.ItemRequest, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("request description is blank: %w", ErrValidation)
	}
	if err := s.checkUserExists(ctx, requesterID); err != nil {
		return nil, err
	}

	req := &models.ItemRequest{
		Description: description,
		RequesterID: requesterID,
		Created:     time.Now(),
	}
	if err := s.requests.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	s.logger.Info().Int64("request_id", req.ID).Int64("requester_id", requesterID).Msg("item request created")
	return req, nil
}

// GetOwnRequests возвращает запросы пользователя с ответившими на них вещами.
func (s *RequestService) GetOwnRequests(ctx context.Context, requesterID int64) ([]*models.RequestDetail, error) {
	if err := s.checkUserExists(ctx, requesterID); err != nil {
		return nil, err
	}
	requests, err := s.requests.GetRequestsByRequesterID(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, requests)
}

// GetAllRequests возвращает чужие запросы постранично.
func (s *RequestService) GetAllRequests(ctx context.Context, userID int64, from, size int) ([]*models.RequestDetail, error) {
	offset, err := pageOffset(from, size)
	if err != nil {
		return nil, err
	}
	if err := s.checkUserExists(ctx, userID); err != nil {
		return nil, err
	}
	requests, err := s.requests.GetRequestsExcludingRequester(ctx, userID, size, offset)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, requests)
}

func (s *RequestService) GetRequest(ctx context.Context, userID, requestID int64) (*models.RequestDetail, error) {
	if err := s.checkUserExists(ctx, userID); err != nil {
		return nil, err
	}

	req, err := s.requests.GetRequestByID(ctx, requestID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("request %d: %w", requestID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	details, err := s.decorate(ctx, []*models.ItemRequest{req})
	if err != nil {
		return nil, err
	}
	return details[0], nil
}

// decorate прикрепляет к запросам вещи, созданные в ответ на них. Вещи
// загружаются одним запросом по всему набору идентификаторов.
func (s *RequestService) decorate(ctx context.Context, requests []*models.ItemRequest) ([]*models.RequestDetail, error) {
	details := make([]*models.RequestDetail, 0, len(requests))
	if len(requests) == 0 {
		return details, nil
	}

	ids := make([]int64, 0, len(requests))
	for _, req := range requests {
		ids = append(ids, req.ID)
	}

	items, err := s.items.GetItemsByRequestIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byRequest := make(map[int64][]models.Item)
	for _, item := range items {
		if item.RequestID == nil {
			continue
		}
		byRequest[*item.RequestID] = append(byRequest[*item.RequestID], *item)
	}

	for _, req := range requests {
		detail := &models.RequestDetail{ItemRequest: *req, Items: byRequest[req.ID]}
		if detail.Items == nil {
			detail.Items = []models.Item{}
		}
		details = append(details, detail)
	}
	return details, nil
}

func (s *RequestService) checkUserExists(ctx context.Context, userID int64) error {
	_, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return err
}
