package services

import (
	"context"
	"encoding/json"
	"strings"

	"fablab-backend-go/internal/db"
	"fablab-backend-go/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/microcosm-cc/bluemonday"
)

const (
	msgPostNotFound = "Article introuvable"
	msgPostSlug     = "Un article avec ce slug existe déjà"
	msgPageNotFound = "Page introuvable"
	msgPageSlug     = "Une page avec ce slug existe déjà"
)

const postColumns = `id, title, slug, excerpt, content, image, author, category, tags, status, published_at, views,
created_at, updated_at`

const pageColumns = "id, title, slug, content, meta_description, status, published_at, created_at, updated_at"

// htmlSanitizer strips scripts and unsafe attributes from editor HTML.
var htmlSanitizer = bluemonday.UGCPolicy()

func SanitizeHTML(raw string) string {
	return htmlSanitizer.Sanitize(raw)
}

type PostInput struct {
	Title    string   `json:"title" validate:"required,max=255"`
	Slug     string   `json:"slug" validate:"max=255"`
	Excerpt  string   `json:"excerpt" validate:"max=1000"`
	Content  string   `json:"content"`
	Image    string   `json:"image"`
	Author   string   `json:"author" validate:"max=255"`
	Category string   `json:"category" validate:"max=100"`
	Tags     []string `json:"tags"`
	Status   string   `json:"status" validate:"omitempty,oneof=draft published archived"`
}

type PageInput struct {
	Title           string `json:"title" validate:"required,max=255"`
	Slug            string `json:"slug" validate:"max=255"`
	Content         string `json:"content"`
	MetaDescription string `json:"meta_description" validate:"max=500"`
	Status          string `json:"status" validate:"omitempty,oneof=draft published archived"`
}

type ContentFilter struct {
	Status   string
	Category string
	Tag      string
	Search   string
}

// resolveSlug prefers an explicit slug over the title and rejects one that
// another row already owns.
func resolveSlug(ctx context.Context, database *sqlx.DB, table, explicit, title string, excludeID int64, taken string) (string, error) {
	slug := Slugify(explicit)
	if slug == "" {
		slug = Slugify(title)
	}
	if slug == "" {
		return "", ErrValidation("Slug invalide")
	}
	exists, err := slugTaken(ctx, database, table, slug, excludeID)
	if err != nil {
		return "", WrapError(err, "slug lookup")
	}
	if exists {
		return "", ErrConflict(taken)
	}
	return slug, nil
}

func publishState(status string) string {
	if status == "" {
		return models.StatusDraft
	}
	return status
}

func tagPredicate(f *Filter, tag string) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return
	}
	encoded, _ := json.Marshal(tag)
	f.Where(`tags LIKE ? ESCAPE '\'`, "%"+escapeLike(string(encoded))+"%")
}

func ListPublishedPosts(ctx context.Context, database *sqlx.DB, filter ContentFilter, p Page) (PageResult[models.BlogPost], error) {
	f := &Filter{}
	f.Where("status = ?", models.StatusPublished).
		Eq("category", filter.Category).
		Search(filter.Search, "title", "excerpt", "content")
	tagPredicate(f, filter.Tag)
	return Paginate[models.BlogPost](ctx, database, ListQuery{
		Columns: postColumns,
		From:    "blog_posts",
		Filter:  f,
		OrderBy: "published_at DESC, id DESC",
	}, p)
}

func ListPosts(ctx context.Context, database *sqlx.DB, filter ContentFilter, p Page) (PageResult[models.BlogPost], error) {
	f := &Filter{}
	f.Eq("status", filter.Status).
		Eq("category", filter.Category).
		Search(filter.Search, "title", "excerpt", "author")
	tagPredicate(f, filter.Tag)
	return Paginate[models.BlogPost](ctx, database, ListQuery{
		Columns: postColumns,
		From:    "blog_posts",
		Filter:  f,
		OrderBy: "created_at DESC, id DESC",
	}, p)
}

func GetPost(ctx context.Context, database *sqlx.DB, id int64) (models.BlogPost, error) {
	var post models.BlogPost
	err := database.GetContext(ctx, &post, database.Rebind(`SELECT `+postColumns+` FROM blog_posts WHERE id = ?`), id)
	if err != nil {
		return models.BlogPost{}, notFoundOr(err, msgPostNotFound, "get post")
	}
	return post, nil
}

// ViewPublishedPost returns a published post by slug and counts the view.
func ViewPublishedPost(ctx context.Context, database *sqlx.DB, slug string) (models.BlogPost, error) {
	res, err := database.ExecContext(ctx, database.Rebind(`
UPDATE blog_posts SET views = views + 1 WHERE slug = ? AND status = ?
`), slug, models.StatusPublished)
	if err != nil {
		return models.BlogPost{}, WrapError(err, "count post view")
	}
	if err := requireAffected(res, msgPostNotFound); err != nil {
		return models.BlogPost{}, err
	}
	var post models.BlogPost
	err = database.GetContext(ctx, &post, database.Rebind(`SELECT `+postColumns+` FROM blog_posts WHERE slug = ?`), slug)
	if err != nil {
		return models.BlogPost{}, notFoundOr(err, msgPostNotFound, "get post by slug")
	}
	return post, nil
}

func PostCategories(ctx context.Context, database *sqlx.DB) ([]string, error) {
	categories := []string{}
	err := database.SelectContext(ctx, &categories, database.Rebind(`
SELECT DISTINCT category FROM blog_posts
WHERE status = ? AND category <> ''
ORDER BY category
`), models.StatusPublished)
	return categories, WrapError(err, "post categories")
}

func CreatePost(ctx context.Context, database *sqlx.DB, in PostInput) (models.BlogPost, error) {
	slug, err := resolveSlug(ctx, database, "blog_posts", in.Slug, in.Title, 0, msgPostSlug)
	if err != nil {
		return models.BlogPost{}, err
	}
	status := publishState(in.Status)
	ts := utcNow()
	var publishedAt interface{}
	if status == models.StatusPublished {
		publishedAt = ts
	}
	var id int64
	err = database.GetContext(ctx, &id, database.Rebind(`
INSERT INTO blog_posts (title, slug, excerpt, content, image, author, category, tags, status, published_at,
  views, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
RETURNING id
`), strings.TrimSpace(in.Title), slug, in.Excerpt, SanitizeHTML(in.Content), in.Image, in.Author, in.Category,
		models.StringList(CleanTags(in.Tags)), status, publishedAt, ts, ts)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return models.BlogPost{}, ErrConflict(msgPostSlug)
		}
		return models.BlogPost{}, WrapError(err, "insert post")
	}
	return GetPost(ctx, database, id)
}

// UpdatePost keeps published_at from the first publication.
func UpdatePost(ctx context.Context, database *sqlx.DB, id int64, in PostInput) (models.BlogPost, error) {
	current, err := GetPost(ctx, database, id)
	if err != nil {
		return models.BlogPost{}, err
	}
	slug, err := resolveSlug(ctx, database, "blog_posts", in.Slug, in.Title, id, msgPostSlug)
	if err != nil {
		return models.BlogPost{}, err
	}
	status := in.Status
	if status == "" {
		status = current.Status
	}
	publishedAt := current.PublishedAt
	ts := utcNow()
	if status == models.StatusPublished && publishedAt == nil {
		publishedAt = &ts
	}
	_, err = database.ExecContext(ctx, database.Rebind(`
UPDATE blog_posts
SET title = ?, slug = ?, excerpt = ?, content = ?, image = ?, author = ?, category = ?, tags = ?, status = ?,
  published_at = ?, updated_at = ?
WHERE id = ?
`), strings.TrimSpace(in.Title), slug, in.Excerpt, SanitizeHTML(in.Content), in.Image, in.Author, in.Category,
		models.StringList(CleanTags(in.Tags)), status, publishedAt, ts, id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return models.BlogPost{}, ErrConflict(msgPostSlug)
		}
		return models.BlogPost{}, WrapError(err, "update post")
	}
	return GetPost(ctx, database, id)
}

func DeletePost(ctx context.Context, database *sqlx.DB, id int64) error {
	return deleteByID(ctx, database, "blog_posts", id, msgPostNotFound)
}

func ListPages(ctx context.Context, database *sqlx.DB, filter ContentFilter, p Page) (PageResult[models.Page], error) {
	f := &Filter{}
	f.Eq("status", filter.Status).Search(filter.Search, "title", "slug")
	return Paginate[models.Page](ctx, database, ListQuery{
		Columns: pageColumns,
		From:    "pages",
		Filter:  f,
		OrderBy: "title ASC, id ASC",
	}, p)
}

func GetPage(ctx context.Context, database *sqlx.DB, id int64) (models.Page, error) {
	var page models.Page
	err := database.GetContext(ctx, &page, database.Rebind(`SELECT `+pageColumns+` FROM pages WHERE id = ?`), id)
	if err != nil {
		return models.Page{}, notFoundOr(err, msgPageNotFound, "get page")
	}
	return page, nil
}

func GetPublishedPage(ctx context.Context, database *sqlx.DB, slug string) (models.Page, error) {
	var page models.Page
	err := database.GetContext(ctx, &page, database.Rebind(`SELECT `+pageColumns+` FROM pages WHERE slug = ? AND status = ?`),
		slug, models.StatusPublished)
	if err != nil {
		return models.Page{}, notFoundOr(err, msgPageNotFound, "get page by slug")
	}
	return page, nil
}

func CreatePage(ctx context.Context, database *sqlx.DB, in PageInput) (models.Page, error) {
	slug, err := resolveSlug(ctx, database, "pages", in.Slug, in.Title, 0, msgPageSlug)
	if err != nil {
		return models.Page{}, err
	}
	status := publishState(in.Status)
	ts := utcNow()
	var publishedAt interface{}
	if status == models.StatusPublished {
		publishedAt = ts
	}
	var id int64
	err = database.GetContext(ctx, &id, database.Rebind(`
INSERT INTO pages (title, slug, content, meta_description, status, published_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`), strings.TrimSpace(in.Title), slug, SanitizeHTML(in.Content), in.MetaDescription, status, publishedAt, ts, ts)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return models.Page{}, ErrConflict(msgPageSlug)
		}
		return models.Page{}, WrapError(err, "insert page")
	}
	return GetPage(ctx, database, id)
}

func UpdatePage(ctx context.Context, database *sqlx.DB, id int64, in PageInput) (models.Page, error) {
	current, err := GetPage(ctx, database, id)
	if err != nil {
		return models.Page{}, err
	}
	slug, err := resolveSlug(ctx, database, "pages", in.Slug, in.Title, id, msgPageSlug)
	if err != nil {
		return models.Page{}, err
	}
	status := in.Status
	if status == "" {
		status = current.Status
	}
	publishedAt := current.PublishedAt
	ts := utcNow()
	if status == models.StatusPublished && publishedAt == nil {
		publishedAt = &ts
	}
	_, err = database.ExecContext(ctx, database.Rebind(`
UPDATE pages
SET title = ?, slug = ?, content = ?, meta_description = ?, status = ?, published_at = ?, updated_at = ?
WHERE id = ?
`), strings.TrimSpace(in.Title), slug, SanitizeHTML(in.Content), in.MetaDescription, status, publishedAt, ts, id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return models.Page{}, ErrConflict(msgPageSlug)
		}
		return models.Page{}, WrapError(err, "update page")
	}
	return GetPage(ctx, database, id)
}

func DeletePage(ctx context.Context, database *sqlx.DB, id int64) error {
	return deleteByID(ctx, database, "pages", id, msgPageNotFound)
}
