package services

import (
	"context"
	"strings"

	"fablab-backend-go/internal/models"

	"github.com/jmoiron/sqlx"
)

const msgSettingNotFound = "Paramètre introuvable"

func ListSettings(ctx context.Context, database *sqlx.DB) ([]models.Setting, error) {
	return All[models.Setting](ctx, database, ListQuery{
		Columns: "setting_key, value, setting_type, updated_at",
		From:    "settings",
		OrderBy: "setting_key ASC",
	})
}

// SettingsMap flattens the settings table into key -> value.
func SettingsMap(ctx context.Context, database *sqlx.DB) (map[string]string, error) {
	rows, err := ListSettings(ctx, database)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

func GetSetting(ctx context.Context, database *sqlx.DB, key string) (models.Setting, error) {
	var setting models.Setting
	err := database.GetContext(ctx, &setting, database.Rebind(`
SELECT setting_key, value, setting_type, updated_at FROM settings WHERE setting_key = ?
`), key)
	if err != nil {
		return models.Setting{}, notFoundOr(err, msgSettingNotFound, "get setting")
	}
	return setting, nil
}

// UpsertSettings writes every pair in one transaction. New keys are typed
// as text; existing keys keep their type.
func UpsertSettings(ctx context.Context, database *sqlx.DB, values map[string]string) error {
	if len(values) == 0 {
		return ErrValidation("Aucun paramètre fourni")
	}
	for key := range values {
		if strings.TrimSpace(key) == "" || len(key) > 100 {
			return ErrValidation("Clé de paramètre invalide")
		}
	}
	return inTx(ctx, database, func(tx *sqlx.Tx) error {
		stmt := tx.Rebind(`
INSERT INTO settings (setting_key, value, setting_type, updated_at)
VALUES (?, ?, 'text', ?)
ON CONFLICT (setting_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`)
		ts := utcNow()
		for key, value := range values {
			if _, err := tx.ExecContext(ctx, stmt, strings.TrimSpace(key), value, ts); err != nil {
				return WrapError(err, "upsert setting")
			}
		}
		return nil
	})
}

func DeleteSetting(ctx context.Context, database *sqlx.DB, key string) error {
	res, err := database.ExecContext(ctx, database.Rebind(`DELETE FROM settings WHERE setting_key = ?`), key)
	if err != nil {
		return WrapError(err, "delete setting")
	}
	return requireAffected(res, msgSettingNotFound)
}
