package services

import (
	"context"
	"strings"

	"fablab-backend-go/internal/models"

	"github.com/jmoiron/sqlx"
)

const (
	msgEquipmentNotFound = "Équipement introuvable"
	msgTeamNotFound      = "Membre introuvable"
	msgPPNNotFound       = "Point PPN introuvable"
)

const equipmentColumns = "id, name, category, description, image, specs, status, order_index, is_active, created_at, updated_at"

const teamColumns = "id, name, role, bio, image, email, linkedin, order_index, is_active, created_at, updated_at"

const ppnColumns = `id, name, region, city, address, latitude, longitude, services, phone, email, manager,
image, is_active, created_at, updated_at`

type EquipmentInput struct {
	Name        string   `json:"name" validate:"required,max=255"`
	Category    string   `json:"category" validate:"max=100"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	Specs       []string `json:"specs"`
	Status      string   `json:"status" validate:"omitempty,oneof=available maintenance unavailable"`
	OrderIndex  *int     `json:"order_index"`
	IsActive    *bool    `json:"is_active"`
}

type CatalogFilter struct {
	Category string
	Status   string
	Region   string
	City     string
	IsActive string
	Search   string
}

func ListActiveEquipment(ctx context.Context, database *sqlx.DB, filter CatalogFilter) ([]models.Equipment, error) {
	f := &Filter{}
	f.Where("is_active = ?", true).
		Eq("category", filter.Category).
		Eq("status", filter.Status)
	return All[models.Equipment](ctx, database, ListQuery{
		Columns: equipmentColumns,
		From:    "equipment",
		Filter:  f,
		OrderBy: "order_index ASC, id ASC",
	})
}

func ListEquipment(ctx context.Context, database *sqlx.DB, filter CatalogFilter, p Page) (PageResult[models.Equipment], error) {
	f := &Filter{}
	f.Eq("category", filter.Category).
		Eq("status", filter.Status).
		Bool("is_active", filter.IsActive).
		Search(filter.Search, "name", "description")
	return Paginate[models.Equipment](ctx, database, ListQuery{
		Columns: equipmentColumns,
		From:    "equipment",
		Filter:  f,
		OrderBy: "order_index ASC, id ASC",
	}, p)
}

func GetEquipment(ctx context.Context, database *sqlx.DB, id int64) (models.Equipment, error) {
	var item models.Equipment
	err := database.GetContext(ctx, &item, database.Rebind(`SELECT `+equipmentColumns+` FROM equipment WHERE id = ?`), id)
	if err != nil {
		return models.Equipment{}, notFoundOr(err, msgEquipmentNotFound, "get equipment")
	}
	return item, nil
}

// CreateEquipment appends the item after the current last position unless
// an explicit order_index is given.
func CreateEquipment(ctx context.Context, database *sqlx.DB, in EquipmentInput) (models.Equipment, error) {
	order, err := nextOrderIndex(ctx, database, "equipment", in.OrderIndex)
	if err != nil {
		return models.Equipment{}, err
	}
	status := in.Status
	if status == "" {
		status = "available"
	}
	ts := utcNow()
	var id int64
	err = database.GetContext(ctx, &id, database.Rebind(`
INSERT INTO equipment (name, category, description, image, specs, status, order_index, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`), strings.TrimSpace(in.Name), in.Category, in.Description, in.Image, models.StringList(CleanTags(in.Specs)),
		status, order, boolOr(in.IsActive, true), ts, ts)
	if err != nil {
		return models.Equipment{}, WrapError(err, "insert equipment")
	}
	return GetEquipment(ctx, database, id)
}

func UpdateEquipment(ctx context.Context, database *sqlx.DB, id int64, in EquipmentInput) (models.Equipment, error) {
	current, err := GetEquipment(ctx, database, id)
	if err != nil {
		return models.Equipment{}, err
	}
	status := in.Status
	if status == "" {
		status = current.Status
	}
	order := current.OrderIndex
	if in.OrderIndex != nil {
		order = *in.OrderIndex
	}
	_, err = database.ExecContext(ctx, database.Rebind(`
UPDATE equipment
SET name = ?, category = ?, description = ?, image = ?, specs = ?, status = ?, order_index = ?,
  is_active = ?, updated_at = ?
WHERE id = ?
`), strings.TrimSpace(in.Name), in.Category, in.Description, in.Image, models.StringList(CleanTags(in.Specs)),
		status, order, boolOr(in.IsActive, current.IsActive), utcNow(), id)
	if err != nil {
		return models.Equipment{}, WrapError(err, "update equipment")
	}
	return GetEquipment(ctx, database, id)
}

func DeleteEquipment(ctx context.Context, database *sqlx.DB, id int64) error {
	return deleteByID(ctx, database, "equipment", id, msgEquipmentNotFound)
}

// ReorderEquipment sets order_index to each id's position in ids.
func ReorderEquipment(ctx context.Context, database *sqlx.DB, ids []int64) error {
	return reorder(ctx, database, "equipment", ids)
}

type TeamInput struct {
	Name       string `json:"name" validate:"required,max=255"`
	Role       string `json:"role" validate:"max=255"`
	Bio        string `json:"bio"`
	Image      string `json:"image"`
	Email      string `json:"email" validate:"omitempty,email"`
	LinkedIn   string `json:"linkedin" validate:"omitempty,url"`
	OrderIndex *int   `json:"order_index"`
	IsActive   *bool  `json:"is_active"`
}

func ListActiveTeam(ctx context.Context, database *sqlx.DB) ([]models.TeamMember, error) {
	f := &Filter{}
	f.Where("is_active = ?", true)
	return All[models.TeamMember](ctx, database, ListQuery{
		Columns: teamColumns,
		From:    "team_members",
		Filter:  f,
		OrderBy: "order_index ASC, id ASC",
	})
}

func ListTeam(ctx context.Context, database *sqlx.DB, filter CatalogFilter, p Page) (PageResult[models.TeamMember], error) {
	f := &Filter{}
	f.Bool("is_active", filter.IsActive).Search(filter.Search, "name", "role")
	return Paginate[models.TeamMember](ctx, database, ListQuery{
		Columns: teamColumns,
		From:    "team_members",
		Filter:  f,
		OrderBy: "order_index ASC, id ASC",
	}, p)
}

func GetTeamMember(ctx context.Context, database *sqlx.DB, id int64) (models.TeamMember, error) {
	var member models.TeamMember
	err := database.GetContext(ctx, &member, database.Rebind(`SELECT `+teamColumns+` FROM team_members WHERE id = ?`), id)
	if err != nil {
		return models.TeamMember{}, notFoundOr(err, msgTeamNotFound, "get team member")
	}
	return member, nil
}

func CreateTeamMember(ctx context.Context, database *sqlx.DB, in TeamInput) (models.TeamMember, error) {
	order, err := nextOrderIndex(ctx, database, "team_members", in.OrderIndex)
	if err != nil {
		return models.TeamMember{}, err
	}
	ts := utcNow()
	var id int64
	err = database.GetContext(ctx, &id, database.Rebind(`
INSERT INTO team_members (name, role, bio, image, email, linkedin, order_index, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`), strings.TrimSpace(in.Name), in.Role, in.Bio, in.Image, normalizeEmail(in.Email), in.LinkedIn, order,
		boolOr(in.IsActive, true), ts, ts)
	if err != nil {
		return models.TeamMember{}, WrapError(err, "insert team member")
	}
	return GetTeamMember(ctx, database, id)
}

func UpdateTeamMember(ctx context.Context, database *sqlx.DB, id int64, in TeamInput) (models.TeamMember, error) {
	current, err := GetTeamMember(ctx, database, id)
	if err != nil {
		return models.TeamMember{}, err
	}
	order := current.OrderIndex
	if in.OrderIndex != nil {
		order = *in.OrderIndex
	}
	_, err = database.ExecContext(ctx, database.Rebind(`
UPDATE team_members
SET name = ?, role = ?, bio = ?, image = ?, email = ?, linkedin = ?, order_index = ?, is_active = ?, updated_at = ?
WHERE id = ?
`), strings.TrimSpace(in.Name), in.Role, in.Bio, in.Image, normalizeEmail(in.Email), in.LinkedIn, order,
		boolOr(in.IsActive, current.IsActive), utcNow(), id)
	if err != nil {
		return models.TeamMember{}, WrapError(err, "update team member")
	}
	return GetTeamMember(ctx, database, id)
}

func DeleteTeamMember(ctx context.Context, database *sqlx.DB, id int64) error {
	return deleteByID(ctx, database, "team_members", id, msgTeamNotFound)
}

type PPNInput struct {
	Name      string   `json:"name" validate:"required,max=255"`
	Region    string   `json:"region" validate:"max=100"`
	City      string   `json:"city" validate:"max=100"`
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`
	Services  []string `json:"services"`
	Phone     string   `json:"phone" validate:"max=50"`
	Email     string   `json:"email" validate:"omitempty,email"`
	Manager   string   `json:"manager" validate:"max=255"`
	Image     string   `json:"image"`
	IsActive  *bool    `json:"is_active"`
}

func (in PPNInput) check() error {
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		return ErrValidation("Latitude invalide")
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		return ErrValidation("Longitude invalide")
	}
	return nil
}

func ListActivePPN(ctx context.Context, database *sqlx.DB, filter CatalogFilter) ([]models.PPNLocation, error) {
	f := &Filter{}
	f.Where("is_active = ?", true).Eq("region", filter.Region).Eq("city", filter.City)
	return All[models.PPNLocation](ctx, database, ListQuery{
		Columns: ppnColumns,
		From:    "ppn_locations",
		Filter:  f,
		OrderBy: "region ASC, city ASC, name ASC",
	})
}

func ListPPN(ctx context.Context, database *sqlx.DB, filter CatalogFilter, p Page) (PageResult[models.PPNLocation], error) {
	f := &Filter{}
	f.Eq("region", filter.Region).
		Eq("city", filter.City).
		Bool("is_active", filter.IsActive).
		Search(filter.Search, "name", "city", "address")
	return Paginate[models.PPNLocation](ctx, database, ListQuery{
		Columns: ppnColumns,
		From:    "ppn_locations",
		Filter:  f,
		OrderBy: "region ASC, city ASC, name ASC",
	}, p)
}

func GetPPN(ctx context.Context, database *sqlx.DB, id int64) (models.PPNLocation, error) {
	var location models.PPNLocation
	err := database.GetContext(ctx, &location, database.Rebind(`SELECT `+ppnColumns+` FROM ppn_locations WHERE id = ?`), id)
	if err != nil {
		return models.PPNLocation{}, notFoundOr(err, msgPPNNotFound, "get ppn location")
	}
	return location, nil
}

func CreatePPN(ctx context.Context, database *sqlx.DB, in PPNInput) (models.PPNLocation, error) {
	if err := in.check(); err != nil {
		return models.PPNLocation{}, err
	}
	ts := utcNow()
	var id int64
	err := database.GetContext(ctx, &id, database.Rebind(`
INSERT INTO ppn_locations (name, region, city, address, latitude, longitude, services, phone, email, manager,
  image, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`), strings.TrimSpace(in.Name), in.Region, in.City, in.Address, in.Latitude, in.Longitude,
		models.StringList(CleanTags(in.Services)), in.Phone, normalizeEmail(in.Email), in.Manager, in.Image,
		boolOr(in.IsActive, true), ts, ts)
	if err != nil {
		return models.PPNLocation{}, WrapError(err, "insert ppn location")
	}
	return GetPPN(ctx, database, id)
}

func UpdatePPN(ctx context.Context, database *sqlx.DB, id int64, in PPNInput) (models.PPNLocation, error) {
	if err := in.check(); err != nil {
		return models.PPNLocation{}, err
	}
	current, err := GetPPN(ctx, database, id)
	if err != nil {
		return models.PPNLocation{}, err
	}
	_, err = database.ExecContext(ctx, database.Rebind(`
UPDATE ppn_locations
SET name = ?, region = ?, city = ?, address = ?, latitude = ?, longitude = ?, services = ?, phone = ?,
  email = ?, manager = ?, image = ?, is_active = ?, updated_at = ?
WHERE id = ?
`), strings.TrimSpace(in.Name), in.Region, in.City, in.Address, in.Latitude, in.Longitude,
		models.StringList(CleanTags(in.Services)), in.Phone, normalizeEmail(in.Email), in.Manager, in.Image,
		boolOr(in.IsActive, current.IsActive), utcNow(), id)
	if err != nil {
		return models.PPNLocation{}, WrapError(err, "update ppn location")
	}
	return GetPPN(ctx, database, id)
}

func DeletePPN(ctx context.Context, database *sqlx.DB, id int64) error {
	return deleteByID(ctx, database, "ppn_locations", id, msgPPNNotFound)
}

func nextOrderIndex(ctx context.Context, database *sqlx.DB, table string, explicit *int) (int, error) {
	if explicit != nil {
		return *explicit, nil
	}
	var next int
	err := database.GetContext(ctx, &next, `SELECT COALESCE(MAX(order_index), -1) + 1 FROM `+table)
	return next, WrapError(err, "next order index")
}

func reorder(ctx context.Context, database *sqlx.DB, table string, ids []int64) error {
	if len(ids) == 0 {
		return ErrValidation("Liste d'identifiants vide")
	}
	return inTx(ctx, database, func(tx *sqlx.Tx) error {
		stmt := tx.Rebind(`UPDATE ` + table + ` SET order_index = ?, updated_at = ? WHERE id = ?`)
		ts := utcNow()
		for i, id := range ids {
			if _, err := tx.ExecContext(ctx, stmt, i, ts, id); err != nil {
				return WrapError(err, "reorder "+table)
			}
		}
		return nil
	})
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
