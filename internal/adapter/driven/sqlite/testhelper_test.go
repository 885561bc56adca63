package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
)

const testRepoName = "octocat/hello-world"

// setupTestDB creates a named shared in-memory database with migrations
// applied. The name is derived from t.Name() so tests stay isolated.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// WAL is not applicable to in-memory databases; omit journal_mode.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", url.PathEscape(t.Name()), pragmas)

	db, err := open(context.Background(), dsn, dsn)
	require.NoError(t, err, "open test db")

	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func addTestRepo(t *testing.T, db *DB, fullName string) {
	t.Helper()
	owner, name, _ := strings.Cut(fullName, "/")
	require.NoError(t, NewWatchList(db).Add(context.Background(), model.Repository{
		FullName: fullName,
		Owner:    owner,
		Name:     name,
	}))
}

func addTestChange(t *testing.T, db *DB, fullName string, changeID, patchSet int) model.Change {
	t.Helper()
	change := model.Change{
		Repository: fullName,
		ChangeID:   changeID,
		Title:      "Add feature",
		Author:     "octocat",
		URL:        fmt.Sprintf("https://github.com/%s/pull/%d", fullName, changeID),
		HeadSHA:    "abc123",
		BaseBranch: "main",
		PatchSet:   patchSet,
		UpdatedAt:  time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, NewChangeRepo(db).Upsert(context.Background(), change))
	return change
}

