package service

import (
	"context"
	"errors"
	"time"

	"fleetrental/internal/entities"
	"fleetrental/internal/entityapi"
	apperrors "fleetrental/internal/errors"
	"fleetrental/internal/repository"
)

// NotificationService is the in-app notification feed: unread listing,
// mark-as-read and confirmation of action-required items.
type NotificationService struct {
	Repo *repository.NotificationRepository
}

func NewNotificationService(repo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{Repo: repo}
}

func (s *NotificationService) Create(ctx context.Context, n *entities.Notification) error {
	if n.Priority == "" {
		n.Priority = entities.PriorityNormal
	}
	_, err := s.Repo.Create(ctx, n)
	return err
}

// ListUnread returns unread, unexpired notifications, newest first.
func (s *NotificationService) ListUnread(ctx context.Context, limit int) ([]entities.Notification, error) {
	items, err := s.Repo.Unread(ctx, limit)
	if err != nil {
		return nil, apperrors.RemoteWrite("could not load notifications", err)
	}
	now := time.Now().UTC()
	out := items[:0]
	for _, n := range items {
		if !n.Expired(now) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	err := s.Repo.Update(ctx, id, entityapi.Document{"read": true})
	if errors.Is(err, entityapi.ErrNotFound) {
		return apperrors.NotFound("notification not found")
	}
	if err != nil {
		return apperrors.RemoteWrite("could not mark notification read", err)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context) error {
	items, err := s.Repo.Unread(ctx, 0)
	if err != nil {
		return apperrors.RemoteWrite("could not load notifications", err)
	}
	for _, n := range items {
		if err := s.Repo.Update(ctx, n.ID, entityapi.Document{"read": true}); err != nil {
			return apperrors.RemoteWrite("could not mark notification read", err)
		}
	}
	return nil
}

// Confirm resolves an action-required notification, recording that the
// action was taken.
func (s *NotificationService) Confirm(ctx context.Context, id string) error {
	n, err := s.Repo.Get(ctx, id)
	if errors.Is(err, entityapi.ErrNotFound) {
		return apperrors.NotFound("notification not found")
	}
	if err != nil {
		return apperrors.RemoteWrite("could not load notification", err)
	}
	if !n.ActionRequired {
		return apperrors.Validation("notification does not require an action")
	}
	err = s.Repo.Update(ctx, id, entityapi.Document{
		"read":            true,
		"action_required": false,
		"action_taken":    true,
	})
	if err != nil {
		return apperrors.RemoteWrite("could not confirm notification", err)
	}
	return nil
}
