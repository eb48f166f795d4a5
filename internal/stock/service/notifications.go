package service

import (
	"context"

	"github.com/pharmaflow/pharmaflow-backend/internal/stock/repository"
)

// Notifications exposes the read/acknowledge surface over stock alerts
type Notifications struct {
	repo *repository.NotificationRepository
}

// NewNotifications creates a new notifications service
func NewNotifications(repo *repository.NotificationRepository) *Notifications {
	return &Notifications{repo: repo}
}

// List returns notifications for the pharmacy, newest first
func (n *Notifications) List(ctx context.Context, pharmacyID string, filter repository.NotificationFilter) ([]*repository.Notification, error) {
	return n.repo.List(ctx, pharmacyID, filter)
}

// CountUnread returns the number of unread notifications
func (n *Notifications) CountUnread(ctx context.Context, pharmacyID string) (int, error) {
	return n.repo.CountUnread(ctx, pharmacyID)
}

// MarkRead marks one notification as read
func (n *Notifications) MarkRead(ctx context.Context, pharmacyID, id string) error {
	return n.repo.MarkRead(ctx, pharmacyID, id)
}

// MarkAllRead marks all unread notifications as read
func (n *Notifications) MarkAllRead(ctx context.Context, pharmacyID string) (int64, error) {
	return n.repo.MarkAllRead(ctx, pharmacyID)
}
