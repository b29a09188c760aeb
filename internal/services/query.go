package services

import (
	"context"
	"math"
	"strings"

	"github.com/jmoiron/sqlx"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

func NewPage(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return Page{Page: page, Limit: limit}
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination is the metadata returned next to a page of rows.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type PageResult[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

func newPagination(p Page, total int) Pagination {
	pages := 0
	if total > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: pages}
}

// Filter folds optional predicates into a WHERE clause. Predicates use ?
// placeholders and are rebound for the driver when the query runs.
type Filter struct {
	preds []string
	args  []interface{}
}

func (f *Filter) Where(pred string, args ...interface{}) *Filter {
	f.preds = append(f.preds, pred)
	f.args = append(f.args, args...)
	return f
}

// Eq adds column = value when value is non-empty.
func (f *Filter) Eq(column, value string) *Filter {
	if value = strings.TrimSpace(value); value != "" {
		f.Where(column+" = ?", value)
	}
	return f
}

// Bool adds column = value when value parses as a boolean.
func (f *Filter) Bool(column, value string) *Filter {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1":
		f.Where(column+" = ?", true)
	case "false", "0":
		f.Where(column+" = ?", false)
	}
	return f
}

// Search adds a case-insensitive LIKE over the columns, OR-ed together.
func (f *Filter) Search(term string, columns ...string) *Filter {
	term = CleanSearchTerm(term)
	if term == "" || len(columns) == 0 {
		return f
	}
	like := "%" + escapeLike(strings.ToLower(term)) + "%"
	parts := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for _, column := range columns {
		parts = append(parts, "LOWER("+column+") LIKE ? ESCAPE '\\'")
		args = append(args, like)
	}
	return f.Where("("+strings.Join(parts, " OR ")+")", args...)
}

func (f *Filter) Clause() string {
	if len(f.preds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.preds, " AND ")
}

func (f *Filter) Args() []interface{} {
	return append([]interface{}{}, f.args...)
}

// ListQuery is a SELECT whose filter is shared by the data and count queries.
type ListQuery struct {
	Columns string
	From    string
	Filter  *Filter
	OrderBy string
}

func (q ListQuery) filter() *Filter {
	if q.Filter == nil {
		return &Filter{}
	}
	return q.Filter
}

func (q ListQuery) dataSQL(limited bool) string {
	sql := "SELECT " + q.Columns + " FROM " + q.From + q.filter().Clause()
	if q.OrderBy != "" {
		sql += " ORDER BY " + q.OrderBy
	}
	if limited {
		sql += " LIMIT ? OFFSET ?"
	}
	return sql
}

func (q ListQuery) countSQL() string {
	return "SELECT COUNT(*) FROM " + q.From + q.filter().Clause()
}

// Paginate runs the page query and its COUNT twin.
func Paginate[T any](ctx context.Context, db *sqlx.DB, q ListQuery, p Page) (PageResult[T], error) {
	var total int
	if err := db.GetContext(ctx, &total, db.Rebind(q.countSQL()), q.filter().Args()...); err != nil {
		return PageResult[T]{}, WrapError(err, "count "+q.From)
	}
	rows := []T{}
	args := append(q.filter().Args(), p.Limit, p.Offset())
	if err := db.SelectContext(ctx, &rows, db.Rebind(q.dataSQL(true)), args...); err != nil {
		return PageResult[T]{}, WrapError(err, "list "+q.From)
	}
	return PageResult[T]{Data: rows, Pagination: newPagination(p, total)}, nil
}

// All runs the query without paging.
func All[T any](ctx context.Context, db *sqlx.DB, q ListQuery) ([]T, error) {
	rows := []T{}
	if err := db.SelectContext(ctx, &rows, db.Rebind(q.dataSQL(false)), q.filter().Args()...); err != nil {
		return nil, WrapError(err, "list "+q.From)
	}
	return rows, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
