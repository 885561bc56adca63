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

var _ driven.CheckerStore = (*CheckerRepo)(nil)

// CheckerRepo is the SQLite implementation of the CheckerStore port interface.
type CheckerRepo struct {
	db *DB
}

// NewCheckerRepo creates a new CheckerRepo backed by the given DB.
func NewCheckerRepo(db *DB) *CheckerRepo {
	return &CheckerRepo{db: db}
}

const checkerColumns = `repository, uuid, name, description, url, required, updated_at`

// Upsert inserts or updates a checker. A zero UpdatedAt is stamped with the
// current time.
func (r *CheckerRepo) Upsert(ctx context.Context, checker model.Checker) error {
	const query = `
		INSERT INTO checkers (` + checkerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repository, uuid) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			url = excluded.url,
			required = excluded.required,
			updated_at = excluded.updated_at
	`

	updatedAt := checker.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	required := 0
	if checker.Required {
		required = 1
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		checker.Repository, string(checker.UUID), checker.Name,
		nullString(checker.Description), nullString(checker.URL),
		required, formatTime(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert checker %s: %w", checker.UUID, err)
	}

	return nil
}

// Get returns nil, nil when the checker is unknown in the repository.
func (r *CheckerRepo) Get(ctx context.Context, repository string, uuid model.CheckerUUID) (*model.Checker, error) {
	const query = `SELECT ` + checkerColumns + ` FROM checkers WHERE repository = ? AND uuid = ?`

	checker, err := scanChecker(r.db.Reader.QueryRowContext(ctx, query, repository, string(uuid)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checker %s: %w", uuid, err)
	}

	return checker, nil
}

// ListByRepository returns the checkers of a repository ordered by UUID.
func (r *CheckerRepo) ListByRepository(ctx context.Context, repository string) ([]model.Checker, error) {
	const query = `SELECT ` + checkerColumns + ` FROM checkers WHERE repository = ? ORDER BY uuid`

	rows, err := r.db.Reader.QueryContext(ctx, query, repository)
	if err != nil {
		return nil, fmt.Errorf("list checkers of %s: %w", repository, err)
	}
	defer rows.Close()

	var checkers []model.Checker
	for rows.Next() {
		checker, err := scanChecker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checker: %w", err)
		}
		checkers = append(checkers, *checker)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkers: %w", err)
	}

	return checkers, nil
}

func scanChecker(s scanner) (*model.Checker, error) {
	var checker model.Checker
	var uuid, updatedAt string
	var description, url sql.NullString
	var required int

	err := s.Scan(&checker.Repository, &uuid, &checker.Name, &description, &url, &required, &updatedAt)
	if err != nil {
		return nil, err
	}

	checker.UUID = model.CheckerUUID(uuid)
	checker.Description = optional(description)
	checker.URL = optional(url)
	checker.Required = required != 0

	checker.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &checker, nil
}
