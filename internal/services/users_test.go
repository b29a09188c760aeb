package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"fablab-backend-go/internal/models"
	"fablab-backend-go/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testTokens() TokenService {
	return TokenService{Secret: []byte("test-secret-test-secret-test-secret"), Issuer: "fablab-test", TTL: time.Hour}
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := testTokens()
	signed, exp, err := tokens.CreateToken(42, "a@b.c", models.RoleAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := tokens.ParseToken(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	other := tokens
	other.Secret = []byte("another-secret-another-secret-000")
	_, err = other.ParseToken(signed)
	assert.Error(t, err)

	expired := tokens
	expired.TTL = -time.Minute
	old, _, err := expired.CreateToken(42, "a@b.c", models.RoleUser)
	require.NoError(t, err)
	_, err = tokens.ParseToken(old)
	assert.Error(t, err)
}

func TestVerifyPasswordHashes(t *testing.T) {
	tokens := testTokens()
	hash, err := tokens.HashPassword("secret123")
	require.NoError(t, err)
	assert.True(t, tokens.VerifyPassword("secret123", hash))
	assert.False(t, tokens.VerifyPassword("wrong", hash))

	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, tokens.VerifyPassword("legacy-pass", string(legacy)))
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	tokens := testTokens()

	session, err := Register(ctx, database, tokens, RegisterInput{Email: " Awa@Example.com ", Password: "secret123", FullName: "Awa Diallo"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "awa@example.com", session.User.Email)
	assert.Equal(t, models.RoleUser, session.User.Role)

	_, err = Register(ctx, database, tokens, RegisterInput{Email: "awa@example.com", Password: "secret123", FullName: "X"})
	requireServiceError(t, err, http.StatusBadRequest, msgEmailTaken)

	logged, err := Login(ctx, database, tokens, LoginInput{Email: "AWA@example.com", Password: "secret123"})
	require.NoError(t, err)
	require.NotNil(t, logged.User.LastLogin)

	_, err = Login(ctx, database, tokens, LoginInput{Email: "awa@example.com", Password: "nope"})
	requireServiceError(t, err, http.StatusUnauthorized, msgBadCredentials)
	_, err = Login(ctx, database, tokens, LoginInput{Email: "ghost@example.com", Password: "secret123"})
	requireServiceError(t, err, http.StatusUnauthorized, msgBadCredentials)
}

func TestLoginInactiveAccount(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	tokens := testTokens()
	inactive := false
	_, err := CreateUser(ctx, database, tokens, UserInput{Email: "off@example.com", Password: "secret123", FullName: "Off", IsActive: &inactive})
	require.NoError(t, err)

	_, err = Login(ctx, database, tokens, LoginInput{Email: "off@example.com", Password: "bad"})
	requireServiceError(t, err, http.StatusUnauthorized, msgBadCredentials)
	_, err = Login(ctx, database, tokens, LoginInput{Email: "off@example.com", Password: "secret123"})
	requireServiceError(t, err, http.StatusForbidden, msgAccountDisabled)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	tokens := testTokens()
	session, err := Register(ctx, database, tokens, RegisterInput{Email: "awa@example.com", Password: "secret123", FullName: "Awa"})
	require.NoError(t, err)

	err = ChangePassword(ctx, database, tokens, session.User.ID, ChangePasswordInput{CurrentPassword: "wrong", NewPassword: "newsecret"})
	requireServiceError(t, err, http.StatusBadRequest, "Mot de passe actuel incorrect")

	require.NoError(t, ChangePassword(ctx, database, tokens, session.User.ID, ChangePasswordInput{CurrentPassword: "secret123", NewPassword: "newsecret"}))
	_, err = Login(ctx, database, tokens, LoginInput{Email: "awa@example.com", Password: "newsecret"})
	require.NoError(t, err)
}

func TestUserSelfProtection(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	tokens := testTokens()
	admin, err := CreateUser(ctx, database, tokens, UserInput{Email: "root@example.com", Password: "secret123", FullName: "Root", Role: models.RoleSuperAdmin})
	require.NoError(t, err)

	requireServiceError(t, DeleteUser(ctx, database, admin.ID, admin.ID), http.StatusBadRequest, "")
	_, err = ToggleUserActive(ctx, database, admin.ID, admin.ID)
	requireServiceError(t, err, http.StatusBadRequest, "")
}

func TestEnsureSuperAdminOnce(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	tokens := testTokens()

	created, err := EnsureSuperAdmin(ctx, database, tokens, "boss@example.com", "secret123")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = EnsureSuperAdmin(ctx, database, tokens, "other@example.com", "secret123")
	require.NoError(t, err)
	assert.False(t, created)

	users, err := ListUsers(ctx, database, UserFilter{Role: models.RoleSuperAdmin}, NewPage(1, 10))
	require.NoError(t, err)
	require.Len(t, users.Data, 1)
	assert.Equal(t, "boss@example.com", users.Data[0].Email)
}
