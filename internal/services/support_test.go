package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fablab-backend-go/internal/models"
	"fablab-backend-go/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Impression 3D : Initiation": "impression-3d-initiation",
		"  Électronique & Arduino  ": "electronique-arduino",
		"déjà---vu":                  "deja-vu",
		"!!!":                        "",
	}
	for in, want := range cases {
		got := Slugify(in)
		assert.Equal(t, want, got, in)
		assert.Equal(t, got, Slugify(got), "idempotent for %q", in)
	}
}

func TestNewPageBounds(t *testing.T) {
	assert.Equal(t, Page{Page: 1, Limit: DefaultPageSize}, NewPage(0, 0))
	assert.Equal(t, Page{Page: 3, Limit: MaxPageSize}, NewPage(3, 1000))
	assert.Equal(t, 20, NewPage(3, 10).Offset())
}

func TestFilterSearchEscapesWildcards(t *testing.T) {
	f := &Filter{}
	f.Eq("status", "").Eq("category", "bois").Search(" 50%  off ", "title")
	assert.Equal(t, " WHERE category = ? AND (LOWER(title) LIKE ? ESCAPE '\\')", f.Clause())
	assert.Equal(t, []interface{}{"bois", `%50\% off%`}, f.Args())
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "photo-ete", SanitizeFilename("Photo Été.JPG"))
	assert.Equal(t, "passwd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "file", SanitizeFilename("///"))
	assert.Len(t, SanitizeFilename(strings.Repeat("a", 300)+".png"), 80)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestMediaStoreSaveImage(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	store := MediaStore{BaseDir: t.TempDir(), PublicPrefix: "/uploads", MaxBytes: 1 << 20}

	media, err := store.Save(ctx, database, MediaUpload{OriginalName: "Logo Fablab.png", Alt: "logo", Body: bytes.NewReader(pngBytes(t, 800, 600))})
	require.NoError(t, err)
	assert.Equal(t, "image/png", media.MimeType)
	assert.True(t, strings.HasPrefix(media.URL, "/uploads/"))
	assert.NotEmpty(t, media.ThumbnailURL)

	_, err = os.Stat(filepath.Join(store.BaseDir, filepath.FromSlash(strings.TrimPrefix(media.URL, "/uploads/"))))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, database, media.ID))
	_, err = store.Get(ctx, database, media.ID)
	requireServiceError(t, err, http.StatusNotFound, "")
}

func TestMediaStoreRejects(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	store := MediaStore{BaseDir: t.TempDir(), PublicPrefix: "/uploads", MaxBytes: 64}

	_, err := store.Save(ctx, database, MediaUpload{OriginalName: "empty.png", Body: bytes.NewReader(nil)})
	requireServiceError(t, err, http.StatusBadRequest, "Le fichier est vide")

	_, err = store.Save(ctx, database, MediaUpload{OriginalName: "big.png", Body: bytes.NewReader(pngBytes(t, 200, 200))})
	requireServiceError(t, err, http.StatusBadRequest, "Le fichier est trop volumineux")

	store.MaxBytes = 1 << 20
	_, err = store.Save(ctx, database, MediaUpload{OriginalName: "script.png", Body: strings.NewReader("#!/bin/sh\necho hi\n")})
	requireServiceError(t, err, http.StatusBadRequest, "")
}

func TestNotificationsForAdmins(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	tokens := testTokens()
	admin, err := CreateUser(ctx, database, tokens, UserInput{Email: "admin@example.com", Password: "secret123", FullName: "Admin", Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = CreateUser(ctx, database, tokens, UserInput{Email: "root@example.com", Password: "secret123", FullName: "Root", Role: models.RoleSuperAdmin})
	require.NoError(t, err)
	member, err := CreateUser(ctx, database, tokens, UserInput{Email: "user@example.com", Password: "secret123", FullName: "User"})
	require.NoError(t, err)

	n, err := CreateForAllAdmins(ctx, database, NotificationInput{Type: NotifyContactMessage, Title: "Nouveau message", Message: "Bonjour"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := UnreadNotificationCount(ctx, database, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	none, err := UnreadNotificationCount(ctx, database, member.ID)
	require.NoError(t, err)
	assert.Zero(t, none)

	list, err := ListNotifications(ctx, database, admin.ID, true, NewPage(1, 10))
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	id := list.Data[0].ID

	requireServiceError(t, MarkNotificationRead(ctx, database, member.ID, id), http.StatusNotFound, "")
	require.NoError(t, MarkNotificationRead(ctx, database, admin.ID, id))

	purged, err := PurgeReadNotifications(ctx, database, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestUpsertSettings(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)

	require.NoError(t, UpsertSettings(ctx, database, map[string]string{"site_name": "Fablab", "contact_phone": "+221"}))
	require.NoError(t, UpsertSettings(ctx, database, map[string]string{"site_name": "Fablab Dakar"}))

	values, err := SettingsMap(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, "Fablab Dakar", values["site_name"])
	assert.Equal(t, "+221", values["contact_phone"])

	require.NoError(t, DeleteSetting(ctx, database, "contact_phone"))
	_, err = GetSetting(ctx, database, "contact_phone")
	requireServiceError(t, err, http.StatusNotFound, "")
}
