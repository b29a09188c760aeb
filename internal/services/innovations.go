package services

import (
	"context"
	"strings"

	"fablab-backend-go/internal/models"

	"github.com/jmoiron/sqlx"
)

const msgInnovationNotFound = "Innovation introuvable"

const (
	InnovationPending  = "pending"
	InnovationApproved = "approved"
	InnovationRejected = "rejected"
)

const innovationColumns = `id, title, description, category, creator_name, creator_email, image, tags, likes, views,
is_published, is_featured, status, created_at, updated_at`

type InnovationInput struct {
	Title        string   `json:"title" validate:"required,max=255"`
	Description  string   `json:"description" validate:"required"`
	Category     string   `json:"category" validate:"max=100"`
	CreatorName  string   `json:"creator_name" validate:"required,max=255"`
	CreatorEmail string   `json:"creator_email" validate:"omitempty,email"`
	Image        string   `json:"image"`
	Tags         []string `json:"tags"`
	IsPublished  *bool    `json:"is_published"`
	IsFeatured   *bool    `json:"is_featured"`
}

type InnovationFilter struct {
	Category    string
	Status      string
	Featured    string
	IsPublished string
	Search      string
}

func ListPublishedInnovations(ctx context.Context, database *sqlx.DB, filter InnovationFilter, p Page) (PageResult[models.Innovation], error) {
	f := &Filter{}
	f.Where("is_published = ?", true).
		Eq("category", filter.Category).
		Bool("is_featured", filter.Featured).
		Search(filter.Search, "title", "description", "creator_name")
	result, err := Paginate[models.Innovation](ctx, database, ListQuery{
		Columns: innovationColumns,
		From:    "innovations",
		Filter:  f,
		OrderBy: "is_featured DESC, created_at DESC, id DESC",
	}, p)
	for i := range result.Data {
		result.Data[i].CreatorEmail = ""
	}
	return result, err
}

func ListInnovations(ctx context.Context, database *sqlx.DB, filter InnovationFilter, p Page) (PageResult[models.Innovation], error) {
	f := &Filter{}
	f.Eq("category", filter.Category).
		Eq("status", filter.Status).
		Bool("is_featured", filter.Featured).
		Bool("is_published", filter.IsPublished).
		Search(filter.Search, "title", "description", "creator_name")
	return Paginate[models.Innovation](ctx, database, ListQuery{
		Columns: innovationColumns,
		From:    "innovations",
		Filter:  f,
		OrderBy: "created_at DESC, id DESC",
	}, p)
}

func GetInnovation(ctx context.Context, database *sqlx.DB, id int64) (models.Innovation, error) {
	var item models.Innovation
	err := database.GetContext(ctx, &item, database.Rebind(`SELECT `+innovationColumns+` FROM innovations WHERE id = ?`), id)
	if err != nil {
		return models.Innovation{}, notFoundOr(err, msgInnovationNotFound, "get innovation")
	}
	return item, nil
}

// ViewPublishedInnovation bumps the view counter and returns the row.
func ViewPublishedInnovation(ctx context.Context, database *sqlx.DB, id int64) (models.Innovation, error) {
	res, err := database.ExecContext(ctx, database.Rebind(`
UPDATE innovations SET views = views + 1 WHERE id = ? AND is_published = ?
`), id, true)
	if err != nil {
		return models.Innovation{}, WrapError(err, "count innovation view")
	}
	if err := requireAffected(res, msgInnovationNotFound); err != nil {
		return models.Innovation{}, err
	}
	item, err := GetInnovation(ctx, database, id)
	item.CreatorEmail = ""
	return item, err
}

func LikeInnovation(ctx context.Context, database *sqlx.DB, id int64) (int, error) {
	var likes int
	err := database.GetContext(ctx, &likes, database.Rebind(`
UPDATE innovations SET likes = likes + 1 WHERE id = ? AND is_published = ?
RETURNING likes
`), id, true)
	if err != nil {
		return 0, notFoundOr(err, msgInnovationNotFound, "like innovation")
	}
	return likes, nil
}

// SubmitInnovation stores a public submission awaiting moderation.
func SubmitInnovation(ctx context.Context, database *sqlx.DB, in InnovationInput) (models.Innovation, error) {
	in.IsPublished = nil
	in.IsFeatured = nil
	return insertInnovation(ctx, database, in, InnovationPending)
}

func CreateInnovation(ctx context.Context, database *sqlx.DB, in InnovationInput) (models.Innovation, error) {
	status := InnovationPending
	if boolOr(in.IsPublished, false) {
		status = InnovationApproved
	}
	return insertInnovation(ctx, database, in, status)
}

func insertInnovation(ctx context.Context, database *sqlx.DB, in InnovationInput, status string) (models.Innovation, error) {
	ts := utcNow()
	var id int64
	err := database.GetContext(ctx, &id, database.Rebind(`
INSERT INTO innovations (title, description, category, creator_name, creator_email, image, tags, likes, views,
  is_published, is_featured, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?, ?, ?, ?)
RETURNING id
`), strings.TrimSpace(in.Title), in.Description, in.Category, strings.TrimSpace(in.CreatorName),
		normalizeEmail(in.CreatorEmail), in.Image, models.StringList(CleanTags(in.Tags)),
		boolOr(in.IsPublished, false), boolOr(in.IsFeatured, false), status, ts, ts)
	if err != nil {
		return models.Innovation{}, WrapError(err, "insert innovation")
	}
	return GetInnovation(ctx, database, id)
}

func UpdateInnovation(ctx context.Context, database *sqlx.DB, id int64, in InnovationInput) (models.Innovation, error) {
	current, err := GetInnovation(ctx, database, id)
	if err != nil {
		return models.Innovation{}, err
	}
	_, err = database.ExecContext(ctx, database.Rebind(`
UPDATE innovations
SET title = ?, description = ?, category = ?, creator_name = ?, creator_email = ?, image = ?, tags = ?,
  is_published = ?, is_featured = ?, updated_at = ?
WHERE id = ?
`), strings.TrimSpace(in.Title), in.Description, in.Category, strings.TrimSpace(in.CreatorName),
		normalizeEmail(in.CreatorEmail), in.Image, models.StringList(CleanTags(in.Tags)),
		boolOr(in.IsPublished, current.IsPublished), boolOr(in.IsFeatured, current.IsFeatured), utcNow(), id)
	if err != nil {
		return models.Innovation{}, WrapError(err, "update innovation")
	}
	return GetInnovation(ctx, database, id)
}

// UpdateInnovationStatus moderates a submission: approved publishes it,
// rejected hides it, pending leaves visibility untouched.
func UpdateInnovationStatus(ctx context.Context, database *sqlx.DB, id int64, status string) (models.Innovation, error) {
	query := `UPDATE innovations SET status = ?, updated_at = ?`
	args := []interface{}{status, utcNow()}
	switch status {
	case InnovationApproved:
		query += `, is_published = ?`
		args = append(args, true)
	case InnovationRejected:
		query += `, is_published = ?, is_featured = ?`
		args = append(args, false, false)
	case InnovationPending:
	default:
		return models.Innovation{}, ErrValidation("Statut invalide")
	}
	res, err := database.ExecContext(ctx, database.Rebind(query+` WHERE id = ?`), append(args, id)...)
	if err != nil {
		return models.Innovation{}, WrapError(err, "update innovation status")
	}
	if err := requireAffected(res, msgInnovationNotFound); err != nil {
		return models.Innovation{}, err
	}
	return GetInnovation(ctx, database, id)
}

func ToggleInnovationFeatured(ctx context.Context, database *sqlx.DB, id int64) (models.Innovation, error) {
	res, err := database.ExecContext(ctx, database.Rebind(`
UPDATE innovations SET is_featured = NOT is_featured, updated_at = ? WHERE id = ?
`), utcNow(), id)
	if err != nil {
		return models.Innovation{}, WrapError(err, "toggle featured")
	}
	if err := requireAffected(res, msgInnovationNotFound); err != nil {
		return models.Innovation{}, err
	}
	return GetInnovation(ctx, database, id)
}

func DeleteInnovation(ctx context.Context, database *sqlx.DB, id int64) error {
	return deleteByID(ctx, database, "innovations", id, msgInnovationNotFound)
}
