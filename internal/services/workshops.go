package services

import (
	"context"
	"strings"
	"time"

	"fablab-backend-go/internal/db"
	"fablab-backend-go/internal/models"

	"github.com/jmoiron/sqlx"
)

const (
	msgWorkshopNotFound     = "Atelier introuvable"
	msgWorkshopFull         = "Cet atelier est complet"
	msgAlreadyRegistered    = "Vous êtes déjà inscrit à cet atelier"
	msgRegistrationClosed   = "Les inscriptions sont fermées pour cet atelier"
	msgRegistrationNotFound = "Inscription introuvable"
)

const workshopColumns = `id, title, slug, description, date, duration, location, capacity, registered,
price, level, category, type, image, instructor, status, is_active, created_at, updated_at`

const registrationColumns = "id, workshop_id, name, email, phone, message, status, created_at, updated_at"

// workshopTransitions lists the statuses reachable from each status.
var workshopTransitions = map[string][]string{
	models.WorkshopUpcoming:  {models.WorkshopOngoing, models.WorkshopCancelled},
	models.WorkshopOngoing:   {models.WorkshopCompleted, models.WorkshopCancelled},
	models.WorkshopCompleted: {},
	models.WorkshopCancelled: {},
}

type WorkshopInput struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Slug        string    `json:"slug" validate:"max=255"`
	Description string    `json:"description"`
	Date        time.Time `json:"date" validate:"required"`
	Duration    string    `json:"duration" validate:"max=100"`
	Location    string    `json:"location" validate:"max=255"`
	Capacity    int       `json:"capacity" validate:"gte=1"`
	Registered  *int      `json:"registered" validate:"omitempty,gte=0"`
	Price       float64   `json:"price" validate:"gte=0"`
	Level       string    `json:"level" validate:"omitempty,oneof=debutant intermediaire avance"`
	Category    string    `json:"category" validate:"max=100"`
	Type        string    `json:"type" validate:"max=100"`
	Image       string    `json:"image"`
	Instructor  string    `json:"instructor" validate:"max=255"`
	IsActive    *bool     `json:"is_active"`
}

type WorkshopFilter struct {
	Category string
	Level    string
	Type     string
	Status   string
	IsActive string
	Upcoming bool
	Search   string
}

type RegistrationInput struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Phone   string `json:"phone" validate:"max=50"`
	Message string `json:"message" validate:"max=2000"`
}

type RegistrationFilter struct {
	Status string
	Search string
}

func (f WorkshopFilter) build(public bool) *Filter {
	filter := &Filter{}
	if public {
		filter.Where("is_active = ?", true).Where("status <> ?", models.WorkshopCancelled)
	} else {
		filter.Bool("is_active", f.IsActive)
	}
	filter.Eq("category", f.Category).
		Eq("level", f.Level).
		Eq("type", f.Type).
		Eq("status", f.Status).
		Search(f.Search, "title", "description", "instructor")
	if f.Upcoming {
		filter.Where("date >= ?", utcNow())
	}
	return filter
}

func ListPublishedWorkshops(ctx context.Context, database *sqlx.DB, filter WorkshopFilter, p Page) (PageResult[models.Workshop], error) {
	return Paginate[models.Workshop](ctx, database, ListQuery{
		Columns: workshopColumns,
		From:    "workshops",
		Filter:  filter.build(true),
		OrderBy: "date ASC, id ASC",
	}, p)
}

func ListWorkshops(ctx context.Context, database *sqlx.DB, filter WorkshopFilter, p Page) (PageResult[models.Workshop], error) {
	return Paginate[models.Workshop](ctx, database, ListQuery{
		Columns: workshopColumns,
		From:    "workshops",
		Filter:  filter.build(false),
		OrderBy: "date DESC, id DESC",
	}, p)
}

func GetWorkshop(ctx context.Context, q sqlx.ExtContext, id int64) (models.Workshop, error) {
	var workshop models.Workshop
	err := sqlx.GetContext(ctx, q, &workshop, q.Rebind(`SELECT `+workshopColumns+` FROM workshops WHERE id = ?`), id)
	if err != nil {
		return models.Workshop{}, notFoundOr(err, msgWorkshopNotFound, "get workshop")
	}
	return workshop, nil
}

// GetPublishedWorkshop returns an active, non-cancelled workshop by slug.
func GetPublishedWorkshop(ctx context.Context, database *sqlx.DB, slug string) (models.Workshop, error) {
	var workshop models.Workshop
	err := database.GetContext(ctx, &workshop, database.Rebind(`
SELECT `+workshopColumns+` FROM workshops
WHERE slug = ? AND is_active = ? AND status <> ?
`), slug, true, models.WorkshopCancelled)
	if err != nil {
		return models.Workshop{}, notFoundOr(err, msgWorkshopNotFound, "get workshop by slug")
	}
	return workshop, nil
}

func CreateWorkshop(ctx context.Context, database *sqlx.DB, in WorkshopInput) (models.Workshop, error) {
	registered := 0
	if in.Registered != nil {
		registered = *in.Registered
	}
	if registered > in.Capacity {
		return models.Workshop{}, ErrValidation("La capacité ne peut pas être inférieure au nombre d'inscrits")
	}
	source := in.Title
	if strings.TrimSpace(in.Slug) != "" {
		source = in.Slug
	}
	slug, err := uniqueSlug(ctx, database, "workshops", source, 0)
	if err != nil {
		return models.Workshop{}, WrapError(err, "workshop slug")
	}
	level := in.Level
	if level == "" {
		level = "debutant"
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	ts := utcNow()
	var id int64
	err = database.GetContext(ctx, &id, database.Rebind(`
INSERT INTO workshops (title, slug, description, date, duration, location, capacity, registered,
  price, level, category, type, image, instructor, status, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`), strings.TrimSpace(in.Title), slug, in.Description, in.Date.UTC(), in.Duration, in.Location,
		in.Capacity, registered, in.Price, level, in.Category, in.Type, in.Image, in.Instructor,
		models.WorkshopUpcoming, active, ts, ts)
	if err != nil {
		return models.Workshop{}, WrapError(err, "insert workshop")
	}
	return GetWorkshop(ctx, database, id)
}

func UpdateWorkshop(ctx context.Context, database *sqlx.DB, id int64, in WorkshopInput) (models.Workshop, error) {
	current, err := GetWorkshop(ctx, database, id)
	if err != nil {
		return models.Workshop{}, err
	}
	registered := current.Registered
	if in.Registered != nil {
		registered = *in.Registered
	}
	if registered > in.Capacity {
		return models.Workshop{}, ErrValidation("La capacité ne peut pas être inférieure au nombre d'inscrits")
	}
	slug := current.Slug
	if s := Slugify(in.Slug); s != "" && s != current.Slug {
		if slug, err = uniqueSlug(ctx, database, "workshops", s, id); err != nil {
			return models.Workshop{}, WrapError(err, "workshop slug")
		}
	}
	level := in.Level
	if level == "" {
		level = current.Level
	}
	active := current.IsActive
	if in.IsActive != nil {
		active = *in.IsActive
	}
	_, err = database.ExecContext(ctx, database.Rebind(`
UPDATE workshops
SET title = ?, slug = ?, description = ?, date = ?, duration = ?, location = ?, capacity = ?,
  registered = ?, price = ?, level = ?, category = ?, type = ?, image = ?, instructor = ?,
  is_active = ?, updated_at = ?
WHERE id = ?
`), strings.TrimSpace(in.Title), slug, in.Description, in.Date.UTC(), in.Duration, in.Location,
		in.Capacity, registered, in.Price, level, in.Category, in.Type, in.Image, in.Instructor,
		active, utcNow(), id)
	if err != nil {
		return models.Workshop{}, WrapError(err, "update workshop")
	}
	return GetWorkshop(ctx, database, id)
}

func DeleteWorkshop(ctx context.Context, database *sqlx.DB, id int64) error {
	return deleteByID(ctx, database, "workshops", id, msgWorkshopNotFound)
}

// CanTransitionWorkshop reports whether from -> to is allowed.
func CanTransitionWorkshop(from, to string) bool {
	return canTransition(workshopTransitions, from, to)
}

func UpdateWorkshopStatus(ctx context.Context, database *sqlx.DB, id int64, status string) (models.Workshop, error) {
	if _, known := workshopTransitions[status]; !known {
		return models.Workshop{}, ErrValidation("Statut invalide")
	}
	current, err := GetWorkshop(ctx, database, id)
	if err != nil {
		return models.Workshop{}, err
	}
	if current.Status == status {
		return current, nil
	}
	if !CanTransitionWorkshop(current.Status, status) {
		return models.Workshop{}, ErrValidation("Transition de statut invalide: " + current.Status + " -> " + status)
	}
	res, err := database.ExecContext(ctx, database.Rebind(`
UPDATE workshops SET status = ?, updated_at = ? WHERE id = ? AND status = ?
`), status, utcNow(), id, current.Status)
	if err != nil {
		return models.Workshop{}, WrapError(err, "update workshop status")
	}
	if err := requireAffected(res, msgWorkshopNotFound); err != nil {
		return models.Workshop{}, err
	}
	return GetWorkshop(ctx, database, id)
}

// RegisterForWorkshop reserves a seat and records the registration in one
// transaction. The seat is taken with a conditional UPDATE so concurrent
// requests can never push registered above capacity.
func RegisterForWorkshop(ctx context.Context, database *sqlx.DB, workshopID int64, in RegistrationInput) (models.WorkshopRegistration, models.Workshop, error) {
	email := normalizeEmail(in.Email)
	var reg models.WorkshopRegistration
	var workshop models.Workshop
	err := inTx(ctx, database, func(tx *sqlx.Tx) error {
		query := `SELECT ` + workshopColumns + ` FROM workshops WHERE id = ?`
		if tx.DriverName() == "pgx" {
			query += ` FOR UPDATE`
		}
		if err := tx.GetContext(ctx, &workshop, tx.Rebind(query), workshopID); err != nil {
			return notFoundOr(err, msgWorkshopNotFound, "load workshop")
		}
		if !workshop.IsActive || workshop.Status == models.WorkshopCancelled || workshop.Status == models.WorkshopCompleted {
			return ErrValidation(msgRegistrationClosed)
		}
		if workshop.Registered >= workshop.Capacity {
			return ErrConflict(msgWorkshopFull)
		}
		var exists bool
		if err := tx.GetContext(ctx, &exists, tx.Rebind(`
SELECT EXISTS(SELECT 1 FROM workshop_registrations WHERE workshop_id = ? AND LOWER(email) = ?)
`), workshopID, email); err != nil {
			return WrapError(err, "duplicate registration check")
		}
		if exists {
			return ErrConflict(msgAlreadyRegistered)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`
UPDATE workshops SET registered = registered + 1, updated_at = ?
WHERE id = ? AND registered < capacity
`), utcNow(), workshopID)
		if err != nil {
			return WrapError(err, "reserve seat")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrConflict(msgWorkshopFull)
		}
		ts := utcNow()
		var id int64
		err = tx.GetContext(ctx, &id, tx.Rebind(`
INSERT INTO workshop_registrations (workshop_id, name, email, phone, message, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`), workshopID, strings.TrimSpace(in.Name), email, strings.TrimSpace(in.Phone), in.Message,
			models.RegistrationPending, ts, ts)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrConflict(msgAlreadyRegistered)
			}
			return WrapError(err, "insert registration")
		}
		if err := tx.GetContext(ctx, &reg, tx.Rebind(`SELECT `+registrationColumns+` FROM workshop_registrations WHERE id = ?`), id); err != nil {
			return WrapError(err, "load registration")
		}
		workshop.Registered++
		return nil
	})
	if err != nil {
		return models.WorkshopRegistration{}, models.Workshop{}, err
	}
	return reg, workshop, nil
}

func ListRegistrations(ctx context.Context, database *sqlx.DB, workshopID int64, filter RegistrationFilter, p Page) (PageResult[models.WorkshopRegistration], error) {
	if _, err := GetWorkshop(ctx, database, workshopID); err != nil {
		return PageResult[models.WorkshopRegistration]{}, err
	}
	f := &Filter{}
	f.Where("workshop_id = ?", workshopID).
		Eq("status", filter.Status).
		Search(filter.Search, "name", "email")
	return Paginate[models.WorkshopRegistration](ctx, database, ListQuery{
		Columns: registrationColumns,
		From:    "workshop_registrations",
		Filter:  f,
		OrderBy: "created_at DESC, id DESC",
	}, p)
}

// UpdateRegistrationStatus changes a registration status. Cancelling frees
// the seat, and reviving a cancelled registration takes one back.
func UpdateRegistrationStatus(ctx context.Context, database *sqlx.DB, id int64, status string) (models.WorkshopRegistration, error) {
	switch status {
	case models.RegistrationPending, models.RegistrationConfirmed, models.RegistrationCancelled, models.RegistrationAttended:
	default:
		return models.WorkshopRegistration{}, ErrValidation("Statut invalide")
	}
	var reg models.WorkshopRegistration
	err := inTx(ctx, database, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &reg, tx.Rebind(`SELECT `+registrationColumns+` FROM workshop_registrations WHERE id = ?`), id); err != nil {
			return notFoundOr(err, msgRegistrationNotFound, "load registration")
		}
		if reg.Status == status {
			return nil
		}
		switch {
		case status == models.RegistrationCancelled:
			if _, err := tx.ExecContext(ctx, tx.Rebind(`
UPDATE workshops SET registered = CASE WHEN registered > 0 THEN registered - 1 ELSE 0 END, updated_at = ?
WHERE id = ?
`), utcNow(), reg.WorkshopID); err != nil {
				return WrapError(err, "release seat")
			}
		case reg.Status == models.RegistrationCancelled:
			res, err := tx.ExecContext(ctx, tx.Rebind(`
UPDATE workshops SET registered = registered + 1, updated_at = ?
WHERE id = ? AND registered < capacity
`), utcNow(), reg.WorkshopID)
			if err != nil {
				return WrapError(err, "reserve seat")
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return ErrConflict(msgWorkshopFull)
			}
		}
		ts := utcNow()
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
UPDATE workshop_registrations SET status = ?, updated_at = ? WHERE id = ?
`), status, ts, id); err != nil {
			return WrapError(err, "update registration status")
		}
		reg.Status = status
		reg.UpdatedAt = ts
		return nil
	})
	if err != nil {
		return models.WorkshopRegistration{}, err
	}
	return reg, nil
}

func WorkshopStats(ctx context.Context, database *sqlx.DB) (map[string]int, error) {
	counts, err := statusCounts(ctx, database, "workshops")
	if err != nil {
		return nil, err
	}
	registrations, err := countWhere(ctx, database, "workshop_registrations", "")
	if err != nil {
		return nil, err
	}
	counts["registrations"] = registrations
	return counts, nil
}
