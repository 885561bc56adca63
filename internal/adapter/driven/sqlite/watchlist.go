package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
	"github.com/ericfisherdev/checknotify/internal/domain/port/driven"
)

var _ driven.RepoStore = (*WatchList)(nil)

// WatchList stores the repositories whose changes are polled. Removing a
// repository drops its changes, checkers and checks by foreign key cascade.
// Outbox emails outlive it.
type WatchList struct {
	db *DB
}

func NewWatchList(db *DB) *WatchList {
	return &WatchList{db: db}
}

const watchListColumns = `id, full_name, owner, name, added_at`

// Add watches repo. Owner and Name are derived from FullName when unset.
// A repository already watched yields ErrRepoAlreadyExists.
func (w *WatchList) Add(ctx context.Context, repo model.Repository) error {
	const query = `
		INSERT INTO repositories (full_name, owner, name, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (full_name) DO NOTHING
	`

	if repo.Owner == "" || repo.Name == "" {
		parsed, ok := model.ParseRepository(repo.FullName)
		if !ok {
			return fmt.Errorf("watch %q: expected owner/repo", repo.FullName)
		}
		repo.Owner, repo.Name = parsed.Owner, parsed.Name
	}

	if repo.AddedAt.IsZero() {
		repo.AddedAt = time.Now()
	}

	result, err := w.db.Writer.ExecContext(ctx, query, repo.FullName, repo.Owner, repo.Name, formatTime(repo.AddedAt))
	if err != nil {
		return fmt.Errorf("watch %s: %w", repo.FullName, err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if inserted == 0 {
		return fmt.Errorf("watch %s: %w", repo.FullName, driven.ErrRepoAlreadyExists)
	}

	return nil
}

// Remove stops watching fullName. ErrRepoNotFound if it was not watched.
func (w *WatchList) Remove(ctx context.Context, fullName string) error {
	const query = `DELETE FROM repositories WHERE full_name = ? RETURNING id`

	var id int64
	err := w.db.Writer.QueryRowContext(ctx, query, fullName).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("unwatch %s: %w", fullName, driven.ErrRepoNotFound)
	}
	if err != nil {
		return fmt.Errorf("unwatch %s: %w", fullName, err)
	}

	return nil
}

// GetByFullName returns nil, nil for a repository that is not watched.
func (w *WatchList) GetByFullName(ctx context.Context, fullName string) (*model.Repository, error) {
	const query = `SELECT ` + watchListColumns + ` FROM repositories WHERE full_name = ?`

	repos, err := w.query(ctx, query, fullName)
	if err != nil {
		return nil, fmt.Errorf("get watched repository %s: %w", fullName, err)
	}
	if len(repos) == 0 {
		return nil, nil
	}

	return &repos[0], nil
}

// ListAll returns the watch list in polling order, by full name.
func (w *WatchList) ListAll(ctx context.Context) ([]model.Repository, error) {
	const query = `SELECT ` + watchListColumns + ` FROM repositories ORDER BY full_name`

	repos, err := w.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list watched repositories: %w", err)
	}

	return repos, nil
}

func (w *WatchList) query(ctx context.Context, query string, args ...any) ([]model.Repository, error) {
	rows, err := w.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	repos := []model.Repository{}
	for rows.Next() {
		var repo model.Repository
		var addedAt string
		if err := rows.Scan(&repo.ID, &repo.FullName, &repo.Owner, &repo.Name, &addedAt); err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		if repo.AddedAt, err = parseTime(addedAt); err != nil {
			return nil, fmt.Errorf("parse added_at of %s: %w", repo.FullName, err)
		}
		repos = append(repos, repo)
	}

	return repos, rows.Err()
}
