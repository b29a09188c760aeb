package services

import (
	"context"
	"net/http"
	"testing"

	"fablab-backend-go/internal/models"
	"fablab-backend-go/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePostSlugAndSanitize(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)

	post, err := CreatePost(ctx, database, PostInput{
		Title:   "Fabrication numérique à Dakar",
		Content: `<p>Bonjour</p><script>alert(1)</script>`,
		Tags:    []string{"maker", " Maker ", "", "laser"},
	})
	require.NoError(t, err)
	assert.Equal(t, "fabrication-numerique-a-dakar", post.Slug)
	assert.Equal(t, models.StatusDraft, post.Status)
	assert.Nil(t, post.PublishedAt)
	assert.NotContains(t, post.Content, "<script>")
	assert.Equal(t, models.StringList{"maker", "laser"}, post.Tags)

	_, err = CreatePost(ctx, database, PostInput{Title: "Autre", Slug: "Fabrication numérique à Dakar"})
	requireServiceError(t, err, http.StatusBadRequest, msgPostSlug)
}

func TestUpdatePostKeepsFirstPublishedAt(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	post, err := CreatePost(ctx, database, PostInput{Title: "Lancement", Status: models.StatusPublished})
	require.NoError(t, err)
	require.NotNil(t, post.PublishedAt)
	first := *post.PublishedAt

	draft, err := UpdatePost(ctx, database, post.ID, PostInput{Title: "Lancement", Status: models.StatusDraft})
	require.NoError(t, err)
	require.NotNil(t, draft.PublishedAt)

	again, err := UpdatePost(ctx, database, post.ID, PostInput{Title: "Lancement", Status: models.StatusPublished})
	require.NoError(t, err)
	require.NotNil(t, again.PublishedAt)
	assert.True(t, first.Equal(*again.PublishedAt))
}

func TestPublishedPostsFilterAndViews(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	_, err := CreatePost(ctx, database, PostInput{Title: "Publié", Status: models.StatusPublished, Tags: []string{"robotique"}})
	require.NoError(t, err)
	_, err = CreatePost(ctx, database, PostInput{Title: "Brouillon", Tags: []string{"robotique"}})
	require.NoError(t, err)

	list, err := ListPublishedPosts(ctx, database, ContentFilter{Tag: "robotique"}, NewPage(1, 10))
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "publie", list.Data[0].Slug)

	viewed, err := ViewPublishedPost(ctx, database, "publie")
	require.NoError(t, err)
	assert.Equal(t, 1, viewed.Views)

	_, err = ViewPublishedPost(ctx, database, "brouillon")
	requireServiceError(t, err, http.StatusNotFound, "")
}

func TestPageSlugConflict(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	page, err := CreatePage(ctx, database, PageInput{Title: "À propos", Status: models.StatusPublished})
	require.NoError(t, err)
	assert.Equal(t, "a-propos", page.Slug)

	other, err := CreatePage(ctx, database, PageInput{Title: "Mentions légales"})
	require.NoError(t, err)
	_, err = UpdatePage(ctx, database, other.ID, PageInput{Title: "Mentions légales", Slug: "a-propos"})
	requireServiceError(t, err, http.StatusBadRequest, msgPageSlug)

	found, err := GetPublishedPage(ctx, database, "a-propos")
	require.NoError(t, err)
	assert.Equal(t, page.ID, found.ID)
}

func TestProjectStatusTransitions(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	project, err := CreateProject(ctx, database, ProjectInput{Name: "Awa", Email: "awa@example.com", Title: "Drone", Description: "Un drone agricole"})
	require.NoError(t, err)
	assert.Equal(t, ProjectPending, project.Status)

	reviewing, err := UpdateProjectStatus(ctx, database, project.ID, ProjectStatusInput{Status: ProjectReviewing})
	require.NoError(t, err)
	assert.Equal(t, ProjectReviewing, reviewing.Status)

	approved, err := UpdateProjectStatus(ctx, database, project.ID, ProjectStatusInput{Status: ProjectApproved, AdminNotes: "Bravo"})
	require.NoError(t, err)
	assert.Equal(t, "Bravo", approved.AdminNotes)

	_, err = UpdateProjectStatus(ctx, database, project.ID, ProjectStatusInput{Status: ProjectPending})
	requireServiceError(t, err, http.StatusBadRequest, "")
}

func TestOpenContactMarksRead(t *testing.T) {
	ctx := context.Background()
	database := testutil.TestDB(t)
	msg, err := CreateContact(ctx, database, ContactInput{Name: "Awa", Email: "awa@example.com", Subject: "Info", Message: "Bonjour"})
	require.NoError(t, err)
	assert.Equal(t, ContactUnread, msg.Status)

	opened, err := OpenContact(ctx, database, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, ContactRead, opened.Status)

	stats, err := ContactStats(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[ContactRead])
}
