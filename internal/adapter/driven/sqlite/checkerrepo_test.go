package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
)

func makeChecker(uuid, name string) model.Checker {
	return model.Checker{
		UUID:       model.CheckerUUID(uuid),
		Name:       name,
		Repository: testRepoName,
		UpdatedAt:  time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC),
	}
}

func TestCheckerRepo_UpsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	addTestRepo(t, db, testRepoName)
	repo := NewCheckerRepo(db)
	ctx := context.Background()

	want := makeChecker("github:ci-app/build", "build")
	want.Description = model.Optional("Builds the project")
	want.URL = model.Optional("https://github.com/apps/ci-app")
	want.Required = true
	require.NoError(t, repo.Upsert(ctx, want))

	got, err := repo.Get(ctx, testRepoName, "github:ci-app/build")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestCheckerRepo_OptionalFields(t *testing.T) {
	db := setupTestDB(t)
	addTestRepo(t, db, testRepoName)
	repo := NewCheckerRepo(db)
	ctx := context.Background()

	unset := makeChecker("github:ci-app/unset", "unset")
	empty := makeChecker("github:ci-app/empty", "empty")
	empty.Description = model.Optional("")
	require.NoError(t, repo.Upsert(ctx, unset))
	require.NoError(t, repo.Upsert(ctx, empty))

	got, err := repo.Get(ctx, testRepoName, "github:ci-app/unset")
	require.NoError(t, err)
	assert.Nil(t, got.Description)
	assert.Nil(t, got.URL)

	got, err = repo.Get(ctx, testRepoName, "github:ci-app/empty")
	require.NoError(t, err)
	require.NotNil(t, got.Description, "empty string is distinct from unset")
	assert.Equal(t, "", *got.Description)
}

func TestCheckerRepo_UpsertUpdates(t *testing.T) {
	db := setupTestDB(t)
	addTestRepo(t, db, testRepoName)
	repo := NewCheckerRepo(db)
	ctx := context.Background()

	c := makeChecker("github:ci-app/build", "build")
	require.NoError(t, repo.Upsert(ctx, c))

	c.Name = "build (linux)"
	c.Required = true
	require.NoError(t, repo.Upsert(ctx, c))

	all, err := repo.ListByRepository(ctx, testRepoName)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "build (linux)", all[0].Name)
	assert.True(t, all[0].Required)
}

func TestCheckerRepo_SameUUIDInTwoRepositories(t *testing.T) {
	db := setupTestDB(t)
	addTestRepo(t, db, testRepoName)
	addTestRepo(t, db, "other/repo")
	repo := NewCheckerRepo(db)
	ctx := context.Background()

	a := makeChecker("github:ci-app/build", "build")
	b := a
	b.Repository = "other/repo"
	b.Required = true
	require.NoError(t, repo.Upsert(ctx, a))
	require.NoError(t, repo.Upsert(ctx, b))

	got, err := repo.Get(ctx, testRepoName, "github:ci-app/build")
	require.NoError(t, err)
	assert.False(t, got.Required)

	got, err = repo.Get(ctx, "other/repo", "github:ci-app/build")
	require.NoError(t, err)
	assert.True(t, got.Required)
}

func TestCheckerRepo_ListByRepositoryOrderedByUUID(t *testing.T) {
	db := setupTestDB(t)
	addTestRepo(t, db, testRepoName)
	repo := NewCheckerRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, makeChecker("github:z/test", "test")))
	require.NoError(t, repo.Upsert(ctx, makeChecker("github:a/lint", "lint")))

	all, err := repo.ListByRepository(ctx, testRepoName)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, model.CheckerUUID("github:a/lint"), all[0].UUID)
	assert.Equal(t, model.CheckerUUID("github:z/test"), all[1].UUID)
}

func TestCheckerRepo_Get_NotFound(t *testing.T) {
	db := setupTestDB(t)

	got, err := NewCheckerRepo(db).Get(context.Background(), testRepoName, "github:none")
	require.NoError(t, err)
	assert.Nil(t, got)
}
