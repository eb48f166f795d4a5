package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaflow/pharmaflow-backend/pkg/database"
	"github.com/pharmaflow/pharmaflow-backend/pkg/errors"
)

// Priority is the closed set of notification priorities
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityNormal   Priority = "Normal"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// NotificationType is the closed set of notification types
type NotificationType string

const (
	TypeLowStock     NotificationType = "low_stock"
	TypeOutOfStock   NotificationType = "out_of_stock"
	TypeExpiringSoon NotificationType = "expiring_soon"
)

// Notification represents a stock alert delivered to pharmacy staff
type Notification struct {
	ID             string           `db:"id" json:"id"`
	PharmacyID     string           `db:"pharmacy_id" json:"pharmacy_id"`
	Type           NotificationType `db:"type" json:"type"`
	Priority       Priority         `db:"priority" json:"priority"`
	Title          string           `db:"title" json:"title"`
	Message        string           `db:"message" json:"message"`
	Data           json.RawMessage  `db:"data" json:"data,omitempty"`
	DedupKey       *string          `db:"dedup_key" json:"-"`
	ReadStatus     bool             `db:"read_status" json:"read_status"`
	ActionRequired bool             `db:"action_required" json:"action_required"`
	ReadAt         *time.Time       `db:"read_at" json:"read_at,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter narrows List results
type NotificationFilter struct {
	UnreadOnly bool
	Type       NotificationType
	Limit      int
	Offset     int
}

// NotificationRepository handles notification persistence
type NotificationRepository struct {
	db *database.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification. When a dedup key is set and a notification
// with the same key already exists, the insert is silently skipped and
// Create reports created=false.
func (r *NotificationRepository) Create(ctx context.Context, n *Notification) (bool, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}

	query := `
		INSERT INTO notifications (
			id, pharmacy_id, type, priority, title, message, data,
			dedup_key, action_required
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (dedup_key) DO NOTHING
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		n.ID, n.PharmacyID, n.Type, n.Priority, n.Title, n.Message, n.Data,
		n.DedupKey, n.ActionRequired,
	).Scan(&n.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			// Conflict on the dedup key, nothing inserted
			return false, nil
		}
		return false, database.TranslateError(err)
	}

	return true, nil
}

// List returns notifications for a pharmacy, newest first
func (r *NotificationRepository) List(ctx context.Context, pharmacyID string, filter NotificationFilter) ([]*Notification, error) {
	query := `
		SELECT * FROM notifications
		WHERE pharmacy_id = $1
		  AND ($2 = '' OR type = $2)
		  AND (NOT $3 OR NOT read_status)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var notifications []*Notification
	err := r.db.SelectContext(ctx, &notifications, query,
		pharmacyID, filter.Type, filter.UnreadOnly, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// CountUnread returns the number of unread notifications
func (r *NotificationRepository) CountUnread(ctx context.Context, pharmacyID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notifications WHERE pharmacy_id = $1 AND NOT read_status`
	if err := r.db.GetContext(ctx, &count, query, pharmacyID); err != nil {
		return 0, err
	}
	return count, nil
}

// MarkRead marks a single notification as read
func (r *NotificationRepository) MarkRead(ctx context.Context, pharmacyID, id string) error {
	query := `
		UPDATE notifications SET read_status = TRUE, read_at = NOW()
		WHERE id = $1 AND pharmacy_id = $2 AND NOT read_status
	`
	result, err := r.db.ExecContext(ctx, query, id, pharmacyID)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		var exists bool
		check := `SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1 AND pharmacy_id = $2)`
		if err := r.db.GetContext(ctx, &exists, check, id, pharmacyID); err != nil {
			return err
		}
		if !exists {
			return errors.NotFound("notification")
		}
		// Already read, nothing to do
	}

	return nil
}

// MarkAllRead marks every unread notification for the pharmacy as read
// and returns how many were updated
func (r *NotificationRepository) MarkAllRead(ctx context.Context, pharmacyID string) (int64, error) {
	query := `
		UPDATE notifications SET read_status = TRUE, read_at = NOW()
		WHERE pharmacy_id = $1 AND NOT read_status
	`
	result, err := r.db.ExecContext(ctx, query, pharmacyID)
	if err != nil {
		return 0, err
	}

	affected, _ := result.RowsAffected()
	return affected, nil
}
