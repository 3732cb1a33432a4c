package repository

import (
	"context"

	"fleetrental/internal/entities"
	"fleetrental/internal/entityapi"
)

// NotificationRepository backs the in-app notification feed.
type NotificationRepository struct {
	Store entityapi.Store
}

func NewNotificationRepository(store entityapi.Store) *NotificationRepository {
	return &NotificationRepository{Store: store}
}

func (r *NotificationRepository) Create(ctx context.Context, n *entities.Notification) (*entities.Notification, error) {
	fields, err := entityapi.ToDocument(n)
	if err != nil {
		return nil, err
	}
	doc, err := r.Store.Create(ctx, entityapi.EntityNotification, fields)
	if err != nil {
		return nil, err
	}
	return decodeOne[entities.Notification](doc)
}

func (r *NotificationRepository) Get(ctx context.Context, id string) (*entities.Notification, error) {
	doc, err := r.Store.Get(ctx, entityapi.EntityNotification, id)
	if err != nil {
		return nil, err
	}
	return decodeOne[entities.Notification](doc)
}

func (r *NotificationRepository) Unread(ctx context.Context, limit int) ([]entities.Notification, error) {
	docs, err := r.Store.Filter(ctx, entityapi.EntityNotification,
		entityapi.Filter{"read": false}, "-created_date", limit)
	if err != nil {
		return nil, err
	}
	return decodeAll[entities.Notification](docs)
}

func (r *NotificationRepository) Update(ctx context.Context, id string, fields entityapi.Document) error {
	_, err := r.Store.Update(ctx, entityapi.EntityNotification, id, fields)
	return err
}
