package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
	"github.com/ericfisherdev/checknotify/internal/domain/port/driven"
)

var _ driven.OutboxStore = (*OutboxRepo)(nil)

// OutboxRepo is the SQLite implementation of the OutboxStore port interface.
// The recipient policy is serialized as a JSON object in a TEXT column.
type OutboxRepo struct {
	db *DB
}

// NewOutboxRepo creates a new OutboxRepo backed by the given DB.
func NewOutboxRepo(db *DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

const outboxColumns = `id, message_type, repository, change_id, patch_set, policy, subject, text_body, html_body, payload, status, created_at, sent_at`

// Enqueue stores a composed email. The email ID must be unique.
func (r *OutboxRepo) Enqueue(ctx context.Context, email model.OutgoingEmail) error {
	const query = `INSERT INTO outbox_emails (` + outboxColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	policy, err := json.Marshal(email.Policy)
	if err != nil {
		return fmt.Errorf("marshal recipient policy: %w", err)
	}

	payload := string(email.Payload)
	if payload == "" {
		payload = "{}"
	}

	status := email.Status
	if status == "" {
		status = model.OutboxStatusPending
	}

	createdAt := email.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var sentAt any
	if !email.SentAt.IsZero() {
		sentAt = formatTime(email.SentAt)
	}

	_, err = r.db.Writer.ExecContext(ctx, query,
		email.ID, email.MessageType, email.Repository, email.PatchSet.ChangeID, email.PatchSet.Number,
		string(policy), email.Subject, email.TextBody, email.HTMLBody, payload,
		string(status), formatTime(createdAt), sentAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue email %s: %w", email.ID, err)
	}

	return nil
}

// Get returns ErrOutboxEmailNotFound when id is unknown.
func (r *OutboxRepo) Get(ctx context.Context, id string) (*model.OutgoingEmail, error) {
	const query = `SELECT ` + outboxColumns + ` FROM outbox_emails WHERE id = ?`

	email, err := scanOutgoingEmail(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get email %s: %w", id, driven.ErrOutboxEmailNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get email %s: %w", id, err)
	}

	return email, nil
}

// ListPending returns pending emails oldest first. A non-positive limit
// returns all of them.
func (r *OutboxRepo) ListPending(ctx context.Context, limit int) ([]model.OutgoingEmail, error) {
	const query = `
		SELECT ` + outboxColumns + `
		FROM outbox_emails
		WHERE status = ?
		ORDER BY created_at, id
		LIMIT ?
	`

	if limit <= 0 {
		limit = -1 // SQLite: no limit.
	}

	rows, err := r.db.Reader.QueryContext(ctx, query, string(model.OutboxStatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending emails: %w", err)
	}
	defer rows.Close()

	var emails []model.OutgoingEmail
	for rows.Next() {
		email, err := scanOutgoingEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		emails = append(emails, *email)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate emails: %w", err)
	}

	return emails, nil
}

// MarkSent flags an email as delivered. Marking an already sent email keeps
// its original sent_at.
func (r *OutboxRepo) MarkSent(ctx context.Context, id string) error {
	const query = `
		UPDATE outbox_emails
		SET status = ?, sent_at = COALESCE(sent_at, ?)
		WHERE id = ?
	`

	result, err := r.db.Writer.ExecContext(ctx, query, string(model.OutboxStatusSent), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("mark email %s sent: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("mark email %s sent: %w", id, driven.ErrOutboxEmailNotFound)
	}

	return nil
}

func scanOutgoingEmail(s scanner) (*model.OutgoingEmail, error) {
	var email model.OutgoingEmail
	var policy, payload, status, createdAt string
	var sentAt sql.NullString

	err := s.Scan(
		&email.ID, &email.MessageType, &email.Repository, &email.PatchSet.ChangeID, &email.PatchSet.Number,
		&policy, &email.Subject, &email.TextBody, &email.HTMLBody, &payload,
		&status, &createdAt, &sentAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(policy), &email.Policy); err != nil {
		return nil, fmt.Errorf("unmarshal recipient policy: %w", err)
	}

	email.Payload = json.RawMessage(payload)
	email.Status = model.OutboxStatus(status)

	email.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	if sentAt.Valid {
		email.SentAt, err = parseTime(sentAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse sent_at: %w", err)
		}
	}

	return &email, nil
}
