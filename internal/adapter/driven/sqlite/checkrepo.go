package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
	"github.com/ericfisherdev/checknotify/internal/domain/port/driven"
)

var _ driven.CheckStore = (*CheckRepo)(nil)

// CheckRepo is the SQLite implementation of the CheckStore port interface.
type CheckRepo struct {
	db *DB
}

// NewCheckRepo creates a new CheckRepo backed by the given DB.
func NewCheckRepo(db *DB) *CheckRepo {
	return &CheckRepo{db: db}
}

// ReplaceChecksForPatchSet atomically replaces all checks of a patch set.
// The key of every check is taken from repository and patchSet.
func (r *CheckRepo) ReplaceChecksForPatchSet(ctx context.Context, repository string, patchSet model.PatchSetID, checks []model.Check) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	const deleteQuery = `DELETE FROM checks WHERE repository = ? AND change_id = ? AND patch_set = ?`
	if _, err := tx.ExecContext(ctx, deleteQuery, repository, patchSet.ChangeID, patchSet.Number); err != nil {
		return fmt.Errorf("delete checks for %s %s: %w", repository, patchSet, err)
	}

	const insertQuery = `
		INSERT INTO checks (repository, change_id, patch_set, checker_uuid, state, message, url, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	for _, check := range checks {
		updatedAt := check.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = now
		}

		if _, err := tx.ExecContext(ctx, insertQuery,
			repository, patchSet.ChangeID, patchSet.Number, string(check.Key.CheckerUUID),
			string(check.State), nullString(check.Message), nullString(check.URL), formatTime(updatedAt),
		); err != nil {
			return fmt.Errorf("insert check %s for %s %s: %w", check.Key.CheckerUUID, repository, patchSet, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checks for %s %s: %w", repository, patchSet, err)
	}

	return nil
}

// GetChecksForPatchSet returns all checks of a patch set ordered by checker UUID.
func (r *CheckRepo) GetChecksForPatchSet(ctx context.Context, repository string, patchSet model.PatchSetID) ([]model.Check, error) {
	const query = `
		SELECT repository, change_id, patch_set, checker_uuid, state, message, url, updated_at
		FROM checks
		WHERE repository = ? AND change_id = ? AND patch_set = ?
		ORDER BY checker_uuid
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, repository, patchSet.ChangeID, patchSet.Number)
	if err != nil {
		return nil, fmt.Errorf("query checks for %s %s: %w", repository, patchSet, err)
	}
	defer rows.Close()

	var checks []model.Check
	for rows.Next() {
		check, err := scanCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		checks = append(checks, *check)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checks: %w", err)
	}

	return checks, nil
}

func scanCheck(s scanner) (*model.Check, error) {
	var check model.Check
	var uuid, state, updatedAt string
	var message, url sql.NullString

	err := s.Scan(
		&check.Key.Repository, &check.Key.PatchSet.ChangeID, &check.Key.PatchSet.Number,
		&uuid, &state, &message, &url, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	check.Key.CheckerUUID = model.CheckerUUID(uuid)
	check.State = model.CheckState(state)
	check.Message = optional(message)
	check.URL = optional(url)

	check.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &check, nil
}
