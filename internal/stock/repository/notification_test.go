package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pharmaflow/pharmaflow-backend/internal/stock/repository"
	"github.com/pharmaflow/pharmaflow-backend/pkg/errors"
	"github.com/pharmaflow/pharmaflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotification(pharmacyID string, dedupKey *string) *repository.Notification {
	return &repository.Notification{
		PharmacyID: pharmacyID,
		Type:       repository.TypeExpiringSoon,
		Priority:   repository.PriorityNormal,
		Title:      "Expiring Soon: Test Medicine",
		Message:    "Batch BATCH-0001 expires in 12 days",
		DedupKey:   dedupKey,
	}
}

func TestNotificationCreate_DedupKeySuppressesRepeat(t *testing.T) {
	testutil.SkipUnlessIntegration(t)
	ctx := context.Background()
	pharmacyID := newPharmacyID()
	repo := repository.NewNotificationRepository(suite.DB)

	key := "expiry:" + uuid.New().String() + ":2026-08-31"

	created, err := repo.Create(ctx, newNotification(pharmacyID, &key))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(ctx, newNotification(pharmacyID, &key))
	require.NoError(t, err)
	assert.False(t, created, "same dedup key must not insert twice")

	list, err := repo.List(ctx, pharmacyID, repository.NotificationFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNotificationCreate_NilDedupKeyAlwaysInserts(t *testing.T) {
	testutil.SkipUnlessIntegration(t)
	ctx := context.Background()
	pharmacyID := newPharmacyID()
	repo := repository.NewNotificationRepository(suite.DB)

	for i := 0; i < 3; i++ {
		created, err := repo.Create(ctx, newNotification(pharmacyID, nil))
		require.NoError(t, err)
		assert.True(t, created)
	}

	list, err := repo.List(ctx, pharmacyID, repository.NotificationFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestNotificationList_Filters(t *testing.T) {
	testutil.SkipUnlessIntegration(t)
	ctx := context.Background()
	pharmacyID := newPharmacyID()
	repo := repository.NewNotificationRepository(suite.DB)

	lowStock := newNotification(pharmacyID, nil)
	lowStock.Type = repository.TypeLowStock
	_, err := repo.Create(ctx, lowStock)
	require.NoError(t, err)

	expiring := newNotification(pharmacyID, nil)
	_, err = repo.Create(ctx, expiring)
	require.NoError(t, err)
	require.NoError(t, repo.MarkRead(ctx, pharmacyID, expiring.ID))

	byType, err := repo.List(ctx, pharmacyID, repository.NotificationFilter{Type: repository.TypeLowStock})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, lowStock.ID, byType[0].ID)

	unread, err := repo.List(ctx, pharmacyID, repository.NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, lowStock.ID, unread[0].ID)
}

func TestNotificationMarkRead(t *testing.T) {
	testutil.SkipUnlessIntegration(t)
	ctx := context.Background()
	pharmacyID := newPharmacyID()
	repo := repository.NewNotificationRepository(suite.DB)

	n := newNotification(pharmacyID, nil)
	_, err := repo.Create(ctx, n)
	require.NoError(t, err)

	require.NoError(t, repo.MarkRead(ctx, pharmacyID, n.ID))
	// Marking twice is a no-op, not an error
	require.NoError(t, repo.MarkRead(ctx, pharmacyID, n.ID))

	err = repo.MarkRead(ctx, pharmacyID, uuid.New().String())
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	count, err := repo.CountUnread(ctx, pharmacyID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestNotificationMarkAllRead(t *testing.T) {
	testutil.SkipUnlessIntegration(t)
	ctx := context.Background()
	pharmacyID := newPharmacyID()
	repo := repository.NewNotificationRepository(suite.DB)

	for i := 0; i < 4; i++ {
		_, err := repo.Create(ctx, newNotification(pharmacyID, nil))
		require.NoError(t, err)
	}

	updated, err := repo.MarkAllRead(ctx, pharmacyID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), updated)

	count, err := repo.CountUnread(ctx, pharmacyID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	updated, err = repo.MarkAllRead(ctx, pharmacyID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)
}
