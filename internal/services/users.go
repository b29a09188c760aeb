package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"fablab-backend-go/internal/db"
	"fablab-backend-go/internal/models"

	"github.com/jmoiron/sqlx"
)

const (
	msgBadCredentials  = "Email ou mot de passe incorrect"
	msgAccountDisabled = "Compte désactivé"
	msgEmailTaken      = "Cet email est déjà utilisé"
	msgUserNotFound    = "Utilisateur introuvable"
)

const userColumns = "id, email, password_hash, full_name, role, is_active, last_login, created_at, updated_at"

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	FullName string `json:"full_name" validate:"required,max=255"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ProfileInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	FullName string `json:"full_name" validate:"required,max=255"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,max=128"`
}

type UserInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"omitempty,min=6,max=128"`
	FullName string `json:"full_name" validate:"required,max=255"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin superadmin"`
	IsActive *bool  `json:"is_active"`
}

type UserFilter struct {
	Role     string
	IsActive string
	Search   string
}

// Session is what register and login hand back to the client.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt int64       `json:"expiresAt"`
	User      models.User `json:"user"`
}

func GetUser(ctx context.Context, q sqlx.ExtContext, id int64) (models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, q, &user, q.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		return models.User{}, notFoundOr(err, msgUserNotFound, "get user")
	}
	return user, nil
}

func findUserByEmail(ctx context.Context, database *sqlx.DB, email string) (models.User, error) {
	var user models.User
	err := database.GetContext(ctx, &user, database.Rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`), normalizeEmail(email))
	return user, err
}

func emailTaken(ctx context.Context, database *sqlx.DB, email string, excludeID int64) (bool, error) {
	var exists bool
	err := database.GetContext(ctx, &exists, database.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ? AND id <> ?)`), normalizeEmail(email), excludeID)
	return exists, WrapError(err, "email lookup")
}

func insertUser(ctx context.Context, database *sqlx.DB, tokens TokenService, email, password, fullName, role string, active bool) (models.User, error) {
	email = normalizeEmail(email)
	taken, err := emailTaken(ctx, database, email, 0)
	if err != nil {
		return models.User{}, err
	}
	if taken {
		return models.User{}, ErrConflict(msgEmailTaken)
	}
	hash, err := tokens.HashPassword(password)
	if err != nil {
		return models.User{}, WrapError(err, "hash password")
	}
	ts := utcNow()
	var id int64
	err = database.GetContext(ctx, &id, database.Rebind(`
INSERT INTO users (email, password_hash, full_name, role, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id
`), email, hash, strings.TrimSpace(fullName), role, active, ts, ts)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return models.User{}, ErrConflict(msgEmailTaken)
		}
		return models.User{}, WrapError(err, "insert user")
	}
	return GetUser(ctx, database, id)
}

// Register creates a regular user account and signs a token for it.
func Register(ctx context.Context, database *sqlx.DB, tokens TokenService, in RegisterInput) (Session, error) {
	user, err := insertUser(ctx, database, tokens, in.Email, in.Password, in.FullName, models.RoleUser, true)
	if err != nil {
		return Session{}, err
	}
	return newSession(tokens, user)
}

// Login checks credentials. Unknown email and wrong password produce the
// same error so callers cannot probe which accounts exist.
func Login(ctx context.Context, database *sqlx.DB, tokens TokenService, in LoginInput) (Session, error) {
	user, err := findUserByEmail(ctx, database, in.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrUnauthorized(msgBadCredentials)
		}
		return Session{}, WrapError(err, "login lookup")
	}
	if !tokens.VerifyPassword(in.Password, user.PasswordHash) {
		return Session{}, ErrUnauthorized(msgBadCredentials)
	}
	if !user.IsActive {
		return Session{}, ErrForbidden(msgAccountDisabled)
	}
	ts := utcNow()
	if _, err := database.ExecContext(ctx, database.Rebind(`UPDATE users SET last_login = ? WHERE id = ?`), ts, user.ID); err != nil {
		return Session{}, WrapError(err, "update last login")
	}
	user.LastLogin = &ts
	return newSession(tokens, user)
}

func newSession(tokens TokenService, user models.User) (Session, error) {
	token, exp, err := tokens.CreateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return Session{}, WrapError(err, "sign token")
	}
	return Session{Token: token, ExpiresAt: exp.Unix(), User: user}, nil
}

func UpdateProfile(ctx context.Context, database *sqlx.DB, userID int64, in ProfileInput) (models.User, error) {
	taken, err := emailTaken(ctx, database, in.Email, userID)
	if err != nil {
		return models.User{}, err
	}
	if taken {
		return models.User{}, ErrConflict(msgEmailTaken)
	}
	res, err := database.ExecContext(ctx, database.Rebind(`
UPDATE users SET email = ?, full_name = ?, updated_at = ? WHERE id = ?
`), normalizeEmail(in.Email), strings.TrimSpace(in.FullName), utcNow(), userID)
	if err != nil {
		return models.User{}, WrapError(err, "update profile")
	}
	if err := requireAffected(res, msgUserNotFound); err != nil {
		return models.User{}, err
	}
	return GetUser(ctx, database, userID)
}

// ChangePassword replaces the hash only after the current password verifies.
func ChangePassword(ctx context.Context, database *sqlx.DB, tokens TokenService, userID int64, in ChangePasswordInput) error {
	user, err := GetUser(ctx, database, userID)
	if err != nil {
		return err
	}
	if !tokens.VerifyPassword(in.CurrentPassword, user.PasswordHash) {
		return ErrValidation("Mot de passe actuel incorrect")
	}
	hash, err := tokens.HashPassword(in.NewPassword)
	if err != nil {
		return WrapError(err, "hash password")
	}
	_, err = database.ExecContext(ctx, database.Rebind(`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`), hash, utcNow(), userID)
	return WrapError(err, "change password")
}

func ListUsers(ctx context.Context, database *sqlx.DB, filter UserFilter, p Page) (PageResult[models.User], error) {
	f := &Filter{}
	f.Eq("role", filter.Role).
		Bool("is_active", filter.IsActive).
		Search(filter.Search, "email", "full_name")
	return Paginate[models.User](ctx, database, ListQuery{
		Columns: userColumns,
		From:    "users",
		Filter:  f,
		OrderBy: "created_at DESC, id DESC",
	}, p)
}

func CreateUser(ctx context.Context, database *sqlx.DB, tokens TokenService, in UserInput) (models.User, error) {
	if strings.TrimSpace(in.Password) == "" {
		return models.User{}, ErrValidation("Le mot de passe est requis")
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return insertUser(ctx, database, tokens, in.Email, in.Password, in.FullName, role, active)
}

// UpdateUser applies an admin edit. A non-empty password resets the hash.
func UpdateUser(ctx context.Context, database *sqlx.DB, tokens TokenService, id int64, in UserInput) (models.User, error) {
	current, err := GetUser(ctx, database, id)
	if err != nil {
		return models.User{}, err
	}
	taken, err := emailTaken(ctx, database, in.Email, id)
	if err != nil {
		return models.User{}, err
	}
	if taken {
		return models.User{}, ErrConflict(msgEmailTaken)
	}
	role := current.Role
	if in.Role != "" {
		role = in.Role
	}
	active := current.IsActive
	if in.IsActive != nil {
		active = *in.IsActive
	}
	hash := current.PasswordHash
	if strings.TrimSpace(in.Password) != "" {
		if hash, err = tokens.HashPassword(in.Password); err != nil {
			return models.User{}, WrapError(err, "hash password")
		}
	}
	_, err = database.ExecContext(ctx, database.Rebind(`
UPDATE users
SET email = ?, full_name = ?, role = ?, is_active = ?, password_hash = ?, updated_at = ?
WHERE id = ?
`), normalizeEmail(in.Email), strings.TrimSpace(in.FullName), role, active, hash, utcNow(), id)
	if err != nil {
		return models.User{}, WrapError(err, "update user")
	}
	return GetUser(ctx, database, id)
}

func ToggleUserActive(ctx context.Context, database *sqlx.DB, actorID, id int64) (models.User, error) {
	if actorID == id {
		return models.User{}, ErrValidation("Vous ne pouvez pas désactiver votre propre compte")
	}
	res, err := database.ExecContext(ctx, database.Rebind(`
UPDATE users SET is_active = NOT is_active, updated_at = ? WHERE id = ?
`), utcNow(), id)
	if err != nil {
		return models.User{}, WrapError(err, "toggle user")
	}
	if err := requireAffected(res, msgUserNotFound); err != nil {
		return models.User{}, err
	}
	return GetUser(ctx, database, id)
}

func DeleteUser(ctx context.Context, database *sqlx.DB, actorID, id int64) error {
	if actorID == id {
		return ErrValidation("Vous ne pouvez pas supprimer votre propre compte")
	}
	return deleteByID(ctx, database, "users", id, msgUserNotFound)
}

// EnsureSuperAdmin creates the bootstrap superadmin when none exists yet.
// It reports whether an account was created.
func EnsureSuperAdmin(ctx context.Context, database *sqlx.DB, tokens TokenService, email, password string) (bool, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return false, nil
	}
	var exists bool
	if err := database.GetContext(ctx, &exists, database.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE role = ?)`), models.RoleSuperAdmin); err != nil {
		return false, WrapError(err, "superadmin lookup")
	}
	if exists {
		return false, nil
	}
	if _, err := insertUser(ctx, database, tokens, email, password, "Super Admin", models.RoleSuperAdmin, true); err != nil {
		return false, err
	}
	return true, nil
}
