package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fablab-backend-go/internal/config"
	"fablab-backend-go/internal/models"
	"fablab-backend-go/internal/notify"
	"fablab-backend-go/internal/services"
	"fablab-backend-go/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	events []notify.Event
}

func (c *captureNotifier) Notify(event notify.Event) {
	c.events = append(c.events, event)
}

type testEnv struct {
	server   *Server
	handler  http.Handler
	notifier *captureNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Config{
		Env:          "test",
		JWTSecret:    "http-test-secret-http-test-secret",
		JWTIssuer:    "fablab-test",
		JWTExpiresIn: time.Hour,
		CacheTTL:     time.Minute,
		UploadDir:    t.TempDir(),
		MaxUploadMB:  1,
	}
	notifier := &captureNotifier{}
	s := NewServer(testutil.TestDB(t), cfg, Options{Notifier: notifier})
	return &testEnv{server: s, handler: s.Router(), notifier: notifier}
}

func (e *testEnv) tokenFor(t *testing.T, role string) string {
	t.Helper()
	email := fmt.Sprintf("%s-%d@example.com", role, time.Now().UnixNano())
	user, err := services.CreateUser(context.Background(), e.server.DB, e.server.Tokens, services.UserInput{
		Email: email, Password: "secret123", FullName: role, Role: role,
	})
	require.NoError(t, err)
	token, _, err := e.server.Tokens.CreateToken(user.ID, user.Email, user.Role)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.1:1234"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, HealthResponse{Status: "ok", Database: "ok"}, decode[HealthResponse](t, rec))
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, msgAuthRequired, decode[ErrorResponse](t, rec).Error)

	rec = env.do(t, http.MethodGet, "/api/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	userToken := env.tokenFor(t, models.RoleUser)
	rec = env.do(t, http.MethodGet, "/api/auth/me", userToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminToken := env.tokenFor(t, models.RoleAdmin)
	rec = env.do(t, http.MethodGet, "/api/users", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/users", adminToken, services.UserInput{Email: "x@example.com", Password: "secret123", FullName: "X"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegisterAndLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "awa@example.com", "password": "123"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password: min", decode[ErrorResponse](t, rec).Error)

	rec = env.do(t, http.MethodPost, "/api/auth/register", "", services.RegisterInput{Email: "awa@example.com", Password: "secret123", FullName: "Awa"})
	require.Equal(t, http.StatusCreated, rec.Code)
	session := decode[services.Session](t, rec)
	assert.NotEmpty(t, session.Token)
	require.Len(t, env.notifier.events, 1)
	assert.Equal(t, services.NotifyUserRegistered, env.notifier.events[0].Type)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", services.LoginInput{Email: "awa@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Email ou mot de passe incorrect", decode[ErrorResponse](t, rec).Error)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", services.LoginInput{Email: "awa@example.com", Password: "secret123"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginGuardLocksAfterFailures(t *testing.T) {
	g := NewLoginGuard(3, time.Minute, time.Minute)
	now := time.Now()
	g.now = func() time.Time { return now }

	assert.False(t, g.Fail("a@b.c"))
	assert.False(t, g.Fail("a@b.c"))
	assert.True(t, g.Fail("a@b.c"))
	assert.True(t, g.Locked("a@b.c"))
	assert.False(t, g.Locked("other@b.c"))

	now = now.Add(2 * time.Minute)
	assert.False(t, g.Locked("a@b.c"))
	g.Reset("a@b.c")
	assert.False(t, g.Fail("a@b.c"))
}

func TestWorkshopRegistrationFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.tokenFor(t, models.RoleAdmin)

	rec := env.do(t, http.MethodPost, "/api/workshops", admin, services.WorkshopInput{
		Title: "Impression 3D", Date: time.Now().Add(48 * time.Hour), Capacity: 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	workshop := decode[models.Workshop](t, rec)

	rec = env.do(t, http.MethodGet, "/api/workshops/published", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	page := decode[services.PageResult[models.Workshop]](t, rec)
	require.Len(t, page.Data, 1)
	assert.Equal(t, 0, page.Data[0].Registered)

	rec = env.do(t, http.MethodGet, "/api/workshops/published", "", nil)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	path := fmt.Sprintf("/api/workshops/%d/register", workshop.ID)
	rec = env.do(t, http.MethodPost, path, "", services.RegistrationInput{Name: "Awa", Email: "awa@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, env.notifier.events, 1)
	assert.Equal(t, services.NotifyWorkshopRegistration, env.notifier.events[0].Type)
	require.NotNil(t, env.notifier.events[0].Email)

	rec = env.do(t, http.MethodPost, path, "", services.RegistrationInput{Name: "Moussa", Email: "moussa@example.com"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cet atelier est complet", decode[ErrorResponse](t, rec).Error)

	// The registration invalidated the cached list.
	rec = env.do(t, http.MethodGet, "/api/workshops/published", "", nil)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	page = decode[services.PageResult[models.Workshop]](t, rec)
	assert.Equal(t, 1, page.Data[0].Registered)
}

func TestNotFoundAndBadID(t *testing.T) {
	env := newTestEnv(t)
	admin := env.tokenFor(t, models.RoleAdmin)

	rec := env.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/workshops/abc", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Identifiant invalide", decode[ErrorResponse](t, rec).Error)

	rec = env.do(t, http.MethodGet, "/api/workshops/999", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettingsUpsert(t *testing.T) {
	env := newTestEnv(t)
	admin := env.tokenFor(t, models.RoleAdmin)

	rec := env.do(t, http.MethodPut, "/api/settings", admin, map[string]interface{}{"site_name": "Fablab", "max_items": 12})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/settings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	values := decode[map[string]string](t, rec)
	assert.Equal(t, "Fablab", values["site_name"])
	assert.Equal(t, "12", values["max_items"])

	rec = env.do(t, http.MethodDelete, "/api/settings/site_name", admin, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWriteErrorHidesDetailsInProduction(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	rec := httptest.NewRecorder()
	env.server.writeError(rec, req, fmt.Errorf("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ErrorResponse{Error: msgInternal, Details: "boom"}, decode[ErrorResponse](t, rec))

	env.server.Config.Env = "production"
	rec = httptest.NewRecorder()
	env.server.writeError(rec, req, fmt.Errorf("boom"))
	assert.Equal(t, ErrorResponse{Error: msgInternal}, decode[ErrorResponse](t, rec))
}
