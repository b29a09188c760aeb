package services

import (
	"context"
	"strings"

	"fablab-backend-go/internal/models"

	"github.com/jmoiron/sqlx"
)

const (
	msgContactNotFound = "Message introuvable"
	msgProjectNotFound = "Projet introuvable"
)

const (
	ContactUnread   = "unread"
	ContactRead     = "read"
	ContactReplied  = "replied"
	ContactArchived = "archived"
)

const (
	ProjectPending   = "pending"
	ProjectReviewing = "reviewing"
	ProjectApproved  = "approved"
	ProjectRejected  = "rejected"
)

const contactColumns = "id, name, email, phone, subject, message, status, created_at, updated_at"

const projectColumns = `id, name, email, phone, organization, title, description, category, budget, status,
admin_notes, created_at, updated_at`

var projectTransitions = map[string][]string{
	ProjectPending:   {ProjectReviewing, ProjectApproved, ProjectRejected},
	ProjectReviewing: {ProjectApproved, ProjectRejected},
	ProjectApproved:  {},
	ProjectRejected:  {},
}

type ContactInput struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Phone   string `json:"phone" validate:"max=50"`
	Subject string `json:"subject" validate:"max=255"`
	Message string `json:"message" validate:"required,max=5000"`
}

type ProjectInput struct {
	Name         string `json:"name" validate:"required,max=255"`
	Email        string `json:"email" validate:"required,email,max=255"`
	Phone        string `json:"phone" validate:"max=50"`
	Organization string `json:"organization" validate:"max=255"`
	Title        string `json:"title" validate:"required,max=255"`
	Description  string `json:"description" validate:"required,max=10000"`
	Category     string `json:"category" validate:"max=100"`
	Budget       string `json:"budget" validate:"max=100"`
}

type ProjectStatusInput struct {
	Status     string `json:"status" validate:"required,oneof=pending reviewing approved rejected"`
	AdminNotes string `json:"admin_notes" validate:"max=5000"`
}

type InboxFilter struct {
	Status   string
	Category string
	Search   string
}

func CreateContact(ctx context.Context, database *sqlx.DB, in ContactInput) (models.ContactMessage, error) {
	ts := utcNow()
	var id int64
	err := database.GetContext(ctx, &id, database.Rebind(`
INSERT INTO contact_messages (name, email, phone, subject, message, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`), strings.TrimSpace(in.Name), normalizeEmail(in.Email), strings.TrimSpace(in.Phone), strings.TrimSpace(in.Subject),
		strings.TrimSpace(in.Message), ContactUnread, ts, ts)
	if err != nil {
		return models.ContactMessage{}, WrapError(err, "insert contact")
	}
	return getContact(ctx, database, id)
}

func getContact(ctx context.Context, database *sqlx.DB, id int64) (models.ContactMessage, error) {
	var msg models.ContactMessage
	err := database.GetContext(ctx, &msg, database.Rebind(`SELECT `+contactColumns+` FROM contact_messages WHERE id = ?`), id)
	if err != nil {
		return models.ContactMessage{}, notFoundOr(err, msgContactNotFound, "get contact")
	}
	return msg, nil
}

// OpenContact returns a message and marks it read if it was unread.
func OpenContact(ctx context.Context, database *sqlx.DB, id int64) (models.ContactMessage, error) {
	if _, err := database.ExecContext(ctx, database.Rebind(`
UPDATE contact_messages SET status = ?, updated_at = ? WHERE id = ? AND status = ?
`), ContactRead, utcNow(), id, ContactUnread); err != nil {
		return models.ContactMessage{}, WrapError(err, "mark contact read")
	}
	return getContact(ctx, database, id)
}

func ListContacts(ctx context.Context, database *sqlx.DB, filter InboxFilter, p Page) (PageResult[models.ContactMessage], error) {
	f := &Filter{}
	f.Eq("status", filter.Status).Search(filter.Search, "name", "email", "subject", "message")
	return Paginate[models.ContactMessage](ctx, database, ListQuery{
		Columns: contactColumns,
		From:    "contact_messages",
		Filter:  f,
		OrderBy: "created_at DESC, id DESC",
	}, p)
}

func UpdateContactStatus(ctx context.Context, database *sqlx.DB, id int64, status string) (models.ContactMessage, error) {
	switch status {
	case ContactUnread, ContactRead, ContactReplied, ContactArchived:
	default:
		return models.ContactMessage{}, ErrValidation("Statut invalide")
	}
	res, err := database.ExecContext(ctx, database.Rebind(`
UPDATE contact_messages SET status = ?, updated_at = ? WHERE id = ?
`), status, utcNow(), id)
	if err != nil {
		return models.ContactMessage{}, WrapError(err, "update contact status")
	}
	if err := requireAffected(res, msgContactNotFound); err != nil {
		return models.ContactMessage{}, err
	}
	return getContact(ctx, database, id)
}

func DeleteContact(ctx context.Context, database *sqlx.DB, id int64) error {
	return deleteByID(ctx, database, "contact_messages", id, msgContactNotFound)
}

func ContactStats(ctx context.Context, database *sqlx.DB) (map[string]int, error) {
	return statusCounts(ctx, database, "contact_messages")
}

func CreateProject(ctx context.Context, database *sqlx.DB, in ProjectInput) (models.ProjectSubmission, error) {
	ts := utcNow()
	var id int64
	err := database.GetContext(ctx, &id, database.Rebind(`
INSERT INTO project_submissions (name, email, phone, organization, title, description, category, budget, status,
  admin_notes, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?)
RETURNING id
`), strings.TrimSpace(in.Name), normalizeEmail(in.Email), strings.TrimSpace(in.Phone), in.Organization,
		strings.TrimSpace(in.Title), in.Description, in.Category, in.Budget, ProjectPending, ts, ts)
	if err != nil {
		return models.ProjectSubmission{}, WrapError(err, "insert project")
	}
	return GetProject(ctx, database, id)
}

func GetProject(ctx context.Context, database *sqlx.DB, id int64) (models.ProjectSubmission, error) {
	var project models.ProjectSubmission
	err := database.GetContext(ctx, &project, database.Rebind(`SELECT `+projectColumns+` FROM project_submissions WHERE id = ?`), id)
	if err != nil {
		return models.ProjectSubmission{}, notFoundOr(err, msgProjectNotFound, "get project")
	}
	return project, nil
}

func ListProjects(ctx context.Context, database *sqlx.DB, filter InboxFilter, p Page) (PageResult[models.ProjectSubmission], error) {
	f := &Filter{}
	f.Eq("status", filter.Status).
		Eq("category", filter.Category).
		Search(filter.Search, "name", "email", "title", "organization")
	return Paginate[models.ProjectSubmission](ctx, database, ListQuery{
		Columns: projectColumns,
		From:    "project_submissions",
		Filter:  f,
		OrderBy: "created_at DESC, id DESC",
	}, p)
}

// UpdateProjectStatus moves a submission through review. Approved and
// rejected are final. Notes can be edited without changing status.
func UpdateProjectStatus(ctx context.Context, database *sqlx.DB, id int64, in ProjectStatusInput) (models.ProjectSubmission, error) {
	current, err := GetProject(ctx, database, id)
	if err != nil {
		return models.ProjectSubmission{}, err
	}
	if current.Status != in.Status && !canTransition(projectTransitions, current.Status, in.Status) {
		return models.ProjectSubmission{}, ErrValidation("Transition de statut invalide: " + current.Status + " -> " + in.Status)
	}
	_, err = database.ExecContext(ctx, database.Rebind(`
UPDATE project_submissions SET status = ?, admin_notes = ?, updated_at = ? WHERE id = ?
`), in.Status, strings.TrimSpace(in.AdminNotes), utcNow(), id)
	if err != nil {
		return models.ProjectSubmission{}, WrapError(err, "update project status")
	}
	return GetProject(ctx, database, id)
}

func DeleteProject(ctx context.Context, database *sqlx.DB, id int64) error {
	return deleteByID(ctx, database, "project_submissions", id, msgProjectNotFound)
}

func canTransition(table map[string][]string, from, to string) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}
