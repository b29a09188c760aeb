package services

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"fablab-backend-go/internal/models"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mozillazg/go-unidecode"
)

const (
	msgMediaNotFound = "Fichier introuvable"
	thumbnailWidth   = 400
)

const mediaColumns = "id, filename, original_name, mime_type, size, url, thumbnail_url, alt, uploaded_by, created_at"

// allowedMedia is the upload allow-list keyed by sniffed MIME type.
var allowedMedia = map[string]string{
	"image/jpeg":      "image",
	"image/png":       "image",
	"image/gif":       "image",
	"image/webp":      "image",
	"application/pdf": "document",
	"video/mp4":       "video",
	"video/webm":      "video",
}

// thumbnailable are the formats imaging can decode.
var thumbnailable = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

var filenameUnsafe = regexp.MustCompile(`[^a-z0-9._-]+`)

// MediaStore keeps uploads on local disk under BaseDir and serves them
// under PublicPrefix.
type MediaStore struct {
	BaseDir      string
	PublicPrefix string
	MaxBytes     int64
}

type MediaUpload struct {
	OriginalName string
	Alt          string
	UploadedBy   *int64
	Body         io.Reader
}

type MediaFilter struct {
	Type   string
	Search string
}

// SanitizeFilename transliterates name to ASCII and keeps a safe stem.
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.ToLower(unidecode.Unidecode(stem))
	stem = filenameUnsafe.ReplaceAllString(stem, "-")
	stem = strings.Trim(stem, ".-_")
	if len(stem) > 80 {
		stem = strings.Trim(stem[:80], ".-_")
	}
	if stem == "" {
		stem = "file"
	}
	return stem
}

// Save streams the upload to disk, sniffs its type, writes a thumbnail for
// images and records the row. Files are removed again on any failure.
func (s MediaStore) Save(ctx context.Context, database *sqlx.DB, up MediaUpload) (models.Media, error) {
	ts := utcNow()
	relDir := path.Join(ts.Format("2006"), ts.Format("01"))
	dir := filepath.Join(s.BaseDir, filepath.FromSlash(relDir))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.Media{}, WrapError(err, "create upload dir")
	}
	stem := uuid.NewString() + "-" + SanitizeFilename(up.OriginalName)
	tmpPath := filepath.Join(dir, stem+".part")
	size, err := s.writeLimited(tmpPath, up.Body)
	if err != nil {
		_ = os.Remove(tmpPath)
		return models.Media{}, err
	}
	mtype, err := mimetype.DetectFile(tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return models.Media{}, WrapError(err, "detect mime type")
	}
	mime := strings.SplitN(mtype.String(), ";", 2)[0]
	if _, ok := allowedMedia[mime]; !ok {
		_ = os.Remove(tmpPath)
		return models.Media{}, ErrValidation("Type de fichier non autorisé: " + mime)
	}
	filename := stem + mtype.Extension()
	finalPath := filepath.Join(dir, filename)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return models.Media{}, WrapError(err, "store upload")
	}
	media := models.Media{
		Filename:     path.Join(relDir, filename),
		OriginalName: filepath.Base(up.OriginalName),
		MimeType:     mime,
		Size:         size,
		URL:          s.publicURL(path.Join(relDir, filename)),
		Alt:          strings.TrimSpace(up.Alt),
		UploadedBy:   up.UploadedBy,
		CreatedAt:    ts,
	}
	if thumbnailable[mime] {
		thumbName := "thumb-" + stem + mtype.Extension()
		if err := makeThumbnail(finalPath, filepath.Join(dir, thumbName)); err == nil {
			media.ThumbnailURL = s.publicURL(path.Join(relDir, thumbName))
		}
	}
	err = database.GetContext(ctx, &media.ID, database.Rebind(`
INSERT INTO media (filename, original_name, mime_type, size, url, thumbnail_url, alt, uploaded_by, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`), media.Filename, media.OriginalName, media.MimeType, media.Size, media.URL, media.ThumbnailURL, media.Alt,
		media.UploadedBy, media.CreatedAt)
	if err != nil {
		s.removeFiles(media)
		return models.Media{}, WrapError(err, "insert media")
	}
	return media, nil
}

func (s MediaStore) writeLimited(target string, body io.Reader) (int64, error) {
	file, err := os.Create(target)
	if err != nil {
		return 0, WrapError(err, "create upload file")
	}
	limit := s.MaxBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	size, err := io.Copy(file, io.LimitReader(body, limit+1))
	closeErr := file.Close()
	if err != nil {
		return 0, WrapError(err, "write upload")
	}
	if closeErr != nil {
		return 0, WrapError(closeErr, "close upload")
	}
	if size == 0 {
		return 0, ErrValidation("Le fichier est vide")
	}
	if size > limit {
		return 0, ErrValidation("Le fichier est trop volumineux")
	}
	return size, nil
}

func makeThumbnail(src, dst string) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return err
	}
	if img.Bounds().Dx() > thumbnailWidth {
		img = imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)
	}
	return imaging.Save(img, dst)
}

func (s MediaStore) publicURL(rel string) string {
	prefix := strings.TrimRight(s.PublicPrefix, "/")
	if prefix == "" {
		prefix = "/uploads"
	}
	return prefix + "/" + rel
}

func (s MediaStore) localPath(url string) string {
	prefix := strings.TrimRight(s.PublicPrefix, "/")
	if prefix == "" {
		prefix = "/uploads"
	}
	rel := strings.TrimPrefix(url, prefix+"/")
	if rel == url || strings.Contains(rel, "..") {
		return ""
	}
	return filepath.Join(s.BaseDir, filepath.FromSlash(rel))
}

func (s MediaStore) removeFiles(media models.Media) {
	for _, url := range []string{media.URL, media.ThumbnailURL} {
		if p := s.localPath(url); p != "" {
			_ = os.Remove(p)
		}
	}
}

func (s MediaStore) List(ctx context.Context, database *sqlx.DB, filter MediaFilter, p Page) (PageResult[models.Media], error) {
	f := &Filter{}
	switch filter.Type {
	case "image":
		f.Where("mime_type LIKE ?", "image/%")
	case "video":
		f.Where("mime_type LIKE ?", "video/%")
	case "document":
		f.Where("mime_type = ?", "application/pdf")
	}
	f.Search(filter.Search, "original_name", "alt")
	return Paginate[models.Media](ctx, database, ListQuery{
		Columns: mediaColumns,
		From:    "media",
		Filter:  f,
		OrderBy: "created_at DESC, id DESC",
	}, p)
}

func (s MediaStore) Get(ctx context.Context, database *sqlx.DB, id int64) (models.Media, error) {
	var media models.Media
	err := database.GetContext(ctx, &media, database.Rebind(`SELECT `+mediaColumns+` FROM media WHERE id = ?`), id)
	if err != nil {
		return models.Media{}, notFoundOr(err, msgMediaNotFound, "get media")
	}
	return media, nil
}

// Delete removes the row, then its files. A missing file is not an error.
func (s MediaStore) Delete(ctx context.Context, database *sqlx.DB, id int64) error {
	media, err := s.Get(ctx, database, id)
	if err != nil {
		return err
	}
	if err := deleteByID(ctx, database, "media", id, msgMediaNotFound); err != nil {
		return err
	}
	s.removeFiles(media)
	return nil
}
