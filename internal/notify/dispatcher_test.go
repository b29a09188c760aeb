package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"fablab-backend-go/internal/models"
	"fablab-backend-go/internal/services"
	"fablab-backend-go/internal/testutil"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu        sync.Mutex
	emails    []Email
	published []string
	live      []services.LiveEvent
	closed    bool
}

func (r *recorder) Send(_ context.Context, email Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, email)
	return nil
}

func (r *recorder) Publish(_ context.Context, key string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, key)
	return nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recorder) Broadcast(event services.LiveEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live = append(r.live, event)
}

func TestDispatcherFansOut(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	tokens := services.TokenService{Secret: []byte("dispatcher-test-secret-0123456789"), Issuer: "test", TTL: time.Hour}
	admin, err := services.CreateUser(ctx, database, tokens, services.UserInput{
		Email: "admin@example.com", Password: "secret123", FullName: "Admin", Role: models.RoleAdmin,
	})
	require.NoError(t, err)

	rec := &recorder{}
	log := zerolog.Nop()
	d := NewDispatcher(database, &log, Options{Workers: 2, Mailer: rec, Publisher: rec, Live: rec})
	d.Start()

	reg := models.WorkshopRegistration{ID: 1, Name: "Awa", Email: "awa@example.com"}
	workshop := models.Workshop{ID: 7, Title: "Arduino", Capacity: 10, Registered: 1, Date: time.Now()}
	d.Notify(WorkshopRegistration(reg, workshop))
	d.Close()

	count, err := services.UnreadNotificationCount(ctx, database, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.emails, 1)
	assert.Equal(t, "awa@example.com", rec.emails[0].To)
	assert.Contains(t, rec.emails[0].HTML, "Arduino")
	assert.Equal(t, []string{services.NotifyWorkshopRegistration}, rec.published)
	require.Len(t, rec.live, 1)
	assert.True(t, rec.live[0].AdminOnly)
	assert.Equal(t, int64(7), rec.live[0].ID)
	assert.True(t, rec.closed)
}

func TestDispatcherProcessesInlineWhenClosed(t *testing.T) {
	database := testutil.TestDB(t)
	rec := &recorder{}
	d := NewDispatcher(database, nil, Options{Mailer: rec})
	d.Start()
	d.Close()

	d.Notify(ContactMessage(models.ContactMessage{ID: 3, Name: "Awa", Email: "awa@example.com", Subject: "Info"}))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.emails, 1)
	assert.Contains(t, rec.emails[0].HTML, "Info")
}

func TestEmailTemplatesEscapeInput(t *testing.T) {
	event := ContactMessage(models.ContactMessage{Name: "<b>x</b>", Email: "a@b.c", Subject: "<script>"})
	require.NotNil(t, event.Email)
	assert.NotContains(t, event.Email.HTML, "<script>")
	assert.Contains(t, event.Email.HTML, "&lt;script&gt;")
}
