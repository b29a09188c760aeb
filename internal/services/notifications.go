package services

import (
	"context"
	"time"

	"fablab-backend-go/internal/models"

	"github.com/jmoiron/sqlx"
)

const (
	NotifyUserRegistered       = "user_registered"
	NotifyWorkshopRegistration = "workshop_registration"
	NotifyContactMessage       = "contact_message"
	NotifyProjectSubmission    = "project_submission"
	NotifyProjectStatus        = "project_status"
	NotifyInnovationSubmitted  = "innovation_submitted"
	NotifyInnovationStatus     = "innovation_status"
)

// NotificationInput is the content written once per recipient.
type NotificationInput struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Link    string `json:"link"`
}

// AdminRecipients returns the ids of active admin and superadmin users.
func AdminRecipients(ctx context.Context, db *sqlx.DB) ([]int64, error) {
	ids := []int64{}
	err := db.SelectContext(ctx, &ids, db.Rebind(`
SELECT id FROM users
WHERE role IN (?, ?) AND is_active = ?
ORDER BY id
`), models.RoleAdmin, models.RoleSuperAdmin, true)
	return ids, WrapError(err, "admin recipients")
}

// CreateForAllAdmins inserts one notification row per active admin and
// returns how many rows were written.
func CreateForAllAdmins(ctx context.Context, db *sqlx.DB, in NotificationInput) (int, error) {
	ids, err := AdminRecipients(ctx, db)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, WrapError(err, "begin notifications")
	}
	defer func() { _ = tx.Rollback() }()
	now := time.Now().UTC()
	insert := tx.Rebind(`
INSERT INTO notifications (user_id, type, title, message, link, is_read, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`)
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, insert, id, in.Type, in.Title, in.Message, in.Link, false, now); err != nil {
			return 0, WrapError(err, "insert notification")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, WrapError(err, "commit notifications")
	}
	return len(ids), nil
}

func ListNotifications(ctx context.Context, db *sqlx.DB, userID int64, unreadOnly bool, p Page) (PageResult[models.Notification], error) {
	f := &Filter{}
	f.Where("user_id = ?", userID)
	if unreadOnly {
		f.Where("is_read = ?", false)
	}
	return Paginate[models.Notification](ctx, db, ListQuery{
		Columns: "id, user_id, type, title, message, link, is_read, read_at, created_at",
		From:    "notifications",
		Filter:  f,
		OrderBy: "created_at DESC, id DESC",
	}, p)
}

func UnreadNotificationCount(ctx context.Context, db *sqlx.DB, userID int64) (int, error) {
	var count int
	err := db.GetContext(ctx, &count, db.Rebind(`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = ?`), userID, false)
	return count, WrapError(err, "unread count")
}

func MarkNotificationRead(ctx context.Context, db *sqlx.DB, userID, id int64) error {
	res, err := db.ExecContext(ctx, db.Rebind(`
UPDATE notifications SET is_read = ?, read_at = COALESCE(read_at, ?)
WHERE id = ? AND user_id = ?
`), true, time.Now().UTC(), id, userID)
	if err != nil {
		return WrapError(err, "mark notification read")
	}
	return requireAffected(res, "Notification introuvable")
}

func MarkAllNotificationsRead(ctx context.Context, db *sqlx.DB, userID int64) (int64, error) {
	res, err := db.ExecContext(ctx, db.Rebind(`
UPDATE notifications SET is_read = ?, read_at = ?
WHERE user_id = ? AND is_read = ?
`), true, time.Now().UTC(), userID, false)
	if err != nil {
		return 0, WrapError(err, "mark all notifications read")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func DeleteNotification(ctx context.Context, db *sqlx.DB, userID, id int64) error {
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM notifications WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return WrapError(err, "delete notification")
	}
	return requireAffected(res, "Notification introuvable")
}

// PurgeReadNotifications deletes read notifications older than the cutoff.
func PurgeReadNotifications(ctx context.Context, db *sqlx.DB, olderThan time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM notifications WHERE is_read = ? AND created_at < ?`), true, olderThan.UTC())
	if err != nil {
		return 0, WrapError(err, "purge notifications")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
