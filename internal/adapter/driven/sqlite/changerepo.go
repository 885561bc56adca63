package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
	"github.com/ericfisherdev/checknotify/internal/domain/port/driven"
)

var _ driven.ChangeStore = (*ChangeRepo)(nil)

// ChangeRepo is the SQLite implementation of the ChangeStore port interface.
type ChangeRepo struct {
	db *DB
}

// NewChangeRepo creates a new ChangeRepo backed by the given DB.
func NewChangeRepo(db *DB) *ChangeRepo {
	return &ChangeRepo{db: db}
}

const changeColumns = `repository, change_id, title, author, url, head_sha, base_branch, patch_set, combined_state, updated_at`

// Upsert inserts or updates a change in place. ON CONFLICT DO UPDATE is used
// instead of INSERT OR REPLACE so the change's checks survive the cascade.
func (r *ChangeRepo) Upsert(ctx context.Context, change model.Change) error {
	const query = `
		INSERT INTO changes (` + changeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repository, change_id) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			url = excluded.url,
			head_sha = excluded.head_sha,
			base_branch = excluded.base_branch,
			patch_set = excluded.patch_set,
			combined_state = excluded.combined_state,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		change.Repository, change.ChangeID, change.Title, change.Author, change.URL,
		change.HeadSHA, change.BaseBranch, change.PatchSet, string(change.CombinedState),
		formatTime(change.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert change %s#%d: %w", change.Repository, change.ChangeID, err)
	}

	return nil
}

// Get returns nil, nil when the change is not tracked.
func (r *ChangeRepo) Get(ctx context.Context, repository string, changeID int) (*model.Change, error) {
	const query = `SELECT ` + changeColumns + ` FROM changes WHERE repository = ? AND change_id = ?`

	change, err := scanChange(r.db.Reader.QueryRowContext(ctx, query, repository, changeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get change %s#%d: %w", repository, changeID, err)
	}

	return change, nil
}

// ListByRepository returns the tracked changes of a repository ordered by change ID.
func (r *ChangeRepo) ListByRepository(ctx context.Context, repository string) ([]model.Change, error) {
	const query = `SELECT ` + changeColumns + ` FROM changes WHERE repository = ? ORDER BY change_id`

	rows, err := r.db.Reader.QueryContext(ctx, query, repository)
	if err != nil {
		return nil, fmt.Errorf("list changes of %s: %w", repository, err)
	}
	defer rows.Close()

	var changes []model.Change
	for rows.Next() {
		change, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		changes = append(changes, *change)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}

	return changes, nil
}

// Delete removes a change together with the checks of all its patch sets.
func (r *ChangeRepo) Delete(ctx context.Context, repository string, changeID int) error {
	const query = `DELETE FROM changes WHERE repository = ? AND change_id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, repository, changeID)
	if err != nil {
		return fmt.Errorf("delete change %s#%d: %w", repository, changeID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete change %s#%d: %w", repository, changeID, driven.ErrChangeNotFound)
	}

	return nil
}

func scanChange(s scanner) (*model.Change, error) {
	var change model.Change
	var combinedState, updatedAt string

	err := s.Scan(
		&change.Repository, &change.ChangeID, &change.Title, &change.Author, &change.URL,
		&change.HeadSHA, &change.BaseBranch, &change.PatchSet, &combinedState, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	change.CombinedState = model.CombinedCheckState(combinedState)

	change.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &change, nil
}
