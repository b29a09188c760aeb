package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

func requireAffected(res sql.Result, notFound string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return WrapError(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound(notFound)
	}
	return nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func inTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return WrapError(err, "begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return WrapError(err, "commit tx")
	}
	return nil
}

// deleteByID removes one row, returning a 404 with notFound when absent.
func deleteByID(ctx context.Context, db *sqlx.DB, table string, id int64, notFound string) error {
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM `+table+` WHERE id = ?`), id)
	if err != nil {
		return WrapError(err, fmt.Sprintf("delete %s", table))
	}
	return requireAffected(res, notFound)
}

// countWhere returns COUNT(*) for table with an optional predicate.
func countWhere(ctx context.Context, db *sqlx.DB, table, pred string, args ...interface{}) (int, error) {
	query := `SELECT COUNT(*) FROM ` + table
	if pred != "" {
		query += ` WHERE ` + pred
	}
	var count int
	err := db.GetContext(ctx, &count, db.Rebind(query), args...)
	return count, WrapError(err, "count "+table)
}

// statusCounts groups table rows by status.
func statusCounts(ctx context.Context, db *sqlx.DB, table string) (map[string]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}{}
	if err := db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM `+table+` GROUP BY status`); err != nil {
		return nil, WrapError(err, "status counts "+table)
	}
	counts := map[string]int{"total": 0}
	for _, row := range rows {
		counts[row.Status] = row.Count
		counts["total"] += row.Count
	}
	return counts, nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}
