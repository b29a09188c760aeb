package scheduler

import (
	"context"
	"testing"
	"time"

	"fablab-backend-go/internal/cache"
	"fablab-backend-go/internal/models"
	"fablab-backend-go/internal/services"
	"fablab-backend-go/internal/testutil"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRegistersJobs(t *testing.T) {
	log := zerolog.Nop()
	s := New(testutil.TestDB(t), &log, Options{
		NotificationRetention: 24 * time.Hour,
		Cache:                 cache.NewMemoryCache(time.Minute),
		Live:                  services.NewLiveHub(),
		MetricsInterval:       30 * time.Second,
	})
	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Len(t, s.cron.Entries(), 3)
}

func TestPurgeNotificationsKeepsRecentAndUnread(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	tokens := services.TokenService{Secret: []byte("scheduler-test-secret-0123456789"), Issuer: "test", TTL: time.Hour}
	admin, err := services.CreateUser(ctx, database, tokens, services.UserInput{
		Email: "admin@example.com", Password: "secret123", FullName: "Admin", Role: models.RoleAdmin,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := services.CreateForAllAdmins(ctx, database, services.NotificationInput{
			Type: services.NotifyContactMessage, Title: "Nouveau message", Message: "Bonjour",
		})
		require.NoError(t, err)
	}
	list, err := services.ListNotifications(ctx, database, admin.ID, false, services.NewPage(1, 10))
	require.NoError(t, err)
	require.Len(t, list.Data, 3)

	old := time.Now().UTC().Add(-60 * 24 * time.Hour)
	// read and old: purged
	require.NoError(t, services.MarkNotificationRead(ctx, database, admin.ID, list.Data[0].ID))
	_, err = database.ExecContext(ctx, database.Rebind(`UPDATE notifications SET created_at = ? WHERE id = ?`), old, list.Data[0].ID)
	require.NoError(t, err)
	// unread and old: kept
	_, err = database.ExecContext(ctx, database.Rebind(`UPDATE notifications SET created_at = ? WHERE id = ?`), old, list.Data[1].ID)
	require.NoError(t, err)
	// read and recent: kept
	require.NoError(t, services.MarkNotificationRead(ctx, database, admin.ID, list.Data[2].ID))

	log := zerolog.Nop()
	s := New(database, &log, Options{NotificationRetention: 30 * 24 * time.Hour})
	s.purgeNotifications()

	var remaining int
	require.NoError(t, database.GetContext(ctx, &remaining, `SELECT COUNT(*) FROM notifications`))
	assert.Equal(t, 2, remaining)
}
