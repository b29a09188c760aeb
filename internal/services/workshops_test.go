package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"fablab-backend-go/internal/models"
	"fablab-backend-go/internal/testutil"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createWorkshop(t *testing.T, database *sqlx.DB, title string, capacity int) models.Workshop {
	t.Helper()
	w, err := CreateWorkshop(context.Background(), database, WorkshopInput{
		Title:    title,
		Date:     time.Now().Add(72 * time.Hour),
		Capacity: capacity,
	})
	require.NoError(t, err)
	return w
}

func requireServiceError(t *testing.T, err error, status int, msg string) {
	t.Helper()
	require.Error(t, err)
	serr, ok := AsServiceError(err)
	require.True(t, ok, "expected ServiceError, got %v", err)
	assert.Equal(t, status, serr.Status)
	if msg != "" {
		assert.Equal(t, msg, serr.Message)
	}
}

func TestCreateWorkshopSlugIsUnique(t *testing.T) {
	database := testutil.TestDB(t)
	first := createWorkshop(t, database, "Impression 3D : Initiation", 10)
	second := createWorkshop(t, database, "Impression 3D : Initiation", 10)

	assert.Equal(t, "impression-3d-initiation", first.Slug)
	assert.Equal(t, "impression-3d-initiation-2", second.Slug)
	assert.Equal(t, models.WorkshopUpcoming, first.Status)
	assert.Equal(t, 0, first.Registered)
}

func TestCreateWorkshopRejectsRegisteredAboveCapacity(t *testing.T) {
	database := testutil.TestDB(t)
	registered := 5
	_, err := CreateWorkshop(context.Background(), database, WorkshopInput{
		Title:      "Arduino",
		Date:       time.Now().Add(time.Hour),
		Capacity:   3,
		Registered: &registered,
	})
	requireServiceError(t, err, http.StatusBadRequest, "")
}

func TestRegisterForWorkshopCapacityOne(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	w := createWorkshop(t, database, "Découpe laser", 1)

	reg, updated, err := RegisterForWorkshop(ctx, database, w.ID, RegistrationInput{Name: "Awa", Email: "Awa@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "awa@example.com", reg.Email)
	assert.Equal(t, models.RegistrationPending, reg.Status)
	assert.Equal(t, 1, updated.Registered)

	_, _, err = RegisterForWorkshop(ctx, database, w.ID, RegistrationInput{Name: "Moussa", Email: "moussa@example.com"})
	requireServiceError(t, err, http.StatusBadRequest, msgWorkshopFull)

	stored, err := GetWorkshop(ctx, database, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Registered)
}

func TestRegisterForWorkshopDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	w := createWorkshop(t, database, "Robotique", 5)

	_, _, err := RegisterForWorkshop(ctx, database, w.ID, RegistrationInput{Name: "Awa", Email: "awa@example.com"})
	require.NoError(t, err)
	_, _, err = RegisterForWorkshop(ctx, database, w.ID, RegistrationInput{Name: "Awa", Email: "AWA@example.com"})
	requireServiceError(t, err, http.StatusBadRequest, msgAlreadyRegistered)

	stored, err := GetWorkshop(ctx, database, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Registered)
}

func TestRegisterForWorkshopClosed(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	w := createWorkshop(t, database, "Électronique", 5)
	_, err := UpdateWorkshopStatus(ctx, database, w.ID, models.WorkshopCancelled)
	require.NoError(t, err)

	_, _, err = RegisterForWorkshop(ctx, database, w.ID, RegistrationInput{Name: "Awa", Email: "awa@example.com"})
	requireServiceError(t, err, http.StatusBadRequest, msgRegistrationClosed)

	_, _, err = RegisterForWorkshop(ctx, database, 9999, RegistrationInput{Name: "Awa", Email: "awa@example.com"})
	requireServiceError(t, err, http.StatusNotFound, msgWorkshopNotFound)
}

func TestRegisterForWorkshopConcurrent(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	w := createWorkshop(t, database, "Soudure", 3)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := RegisterForWorkshop(ctx, database, w.ID, RegistrationInput{
				Name:  fmt.Sprintf("P%d", i),
				Email: fmt.Sprintf("p%d@example.com", i),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	stored, err := GetWorkshop(ctx, database, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Registered)
	count, err := countWhere(ctx, database, "workshop_registrations", "workshop_id = ?", w.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestCancelRegistrationReleasesSeat(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	w := createWorkshop(t, database, "Fraiseuse CNC", 1)
	reg, _, err := RegisterForWorkshop(ctx, database, w.ID, RegistrationInput{Name: "Awa", Email: "awa@example.com"})
	require.NoError(t, err)

	_, err = UpdateRegistrationStatus(ctx, database, reg.ID, models.RegistrationCancelled)
	require.NoError(t, err)
	stored, err := GetWorkshop(ctx, database, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Registered)

	_, _, err = RegisterForWorkshop(ctx, database, w.ID, RegistrationInput{Name: "Moussa", Email: "moussa@example.com"})
	require.NoError(t, err)

	// The seat is taken again, so reviving the cancelled one must fail.
	_, err = UpdateRegistrationStatus(ctx, database, reg.ID, models.RegistrationConfirmed)
	requireServiceError(t, err, http.StatusBadRequest, msgWorkshopFull)
}

func TestWorkshopStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{models.WorkshopUpcoming, models.WorkshopOngoing, true},
		{models.WorkshopUpcoming, models.WorkshopCancelled, true},
		{models.WorkshopOngoing, models.WorkshopCompleted, true},
		{models.WorkshopUpcoming, models.WorkshopCompleted, false},
		{models.WorkshopCompleted, models.WorkshopUpcoming, false},
		{models.WorkshopCancelled, models.WorkshopOngoing, false},
	}
	for _, tc := range cases {
		t.Run(tc.from+"->"+tc.to, func(t *testing.T) {
			assert.Equal(t, tc.ok, CanTransitionWorkshop(tc.from, tc.to))
		})
	}

	ctx := context.Background()
	database := testutil.TestDB(t)
	w := createWorkshop(t, database, "Couture", 5)
	_, err := UpdateWorkshopStatus(ctx, database, w.ID, models.WorkshopCompleted)
	requireServiceError(t, err, http.StatusBadRequest, "")
	updated, err := UpdateWorkshopStatus(ctx, database, w.ID, models.WorkshopOngoing)
	require.NoError(t, err)
	assert.Equal(t, models.WorkshopOngoing, updated.Status)
}

func TestListPublishedWorkshopsPagination(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	for i := 0; i < 25; i++ {
		createWorkshop(t, database, fmt.Sprintf("Atelier %02d", i), 10)
	}
	hidden := createWorkshop(t, database, "Annulé", 10)
	_, err := UpdateWorkshopStatus(ctx, database, hidden.ID, models.WorkshopCancelled)
	require.NoError(t, err)

	result, err := ListPublishedWorkshops(ctx, database, WorkshopFilter{}, NewPage(2, 10))
	require.NoError(t, err)
	assert.Len(t, result.Data, 10)
	assert.Equal(t, Pagination{Page: 2, Limit: 10, Total: 25, TotalPages: 3}, result.Pagination)

	last, err := ListPublishedWorkshops(ctx, database, WorkshopFilter{}, NewPage(3, 10))
	require.NoError(t, err)
	assert.Len(t, last.Data, 5)

	searched, err := ListPublishedWorkshops(ctx, database, WorkshopFilter{Search: "atelier 07"}, NewPage(1, 10))
	require.NoError(t, err)
	require.Len(t, searched.Data, 1)
	assert.Equal(t, "Atelier 07", searched.Data[0].Title)
}
