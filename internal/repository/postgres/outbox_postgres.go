package postgres

import (
	"context"
	"database/sql"
	"errors"

	"chatgate/internal/model"
	"chatgate/internal/repository"
)

// OutboxPostgres is a PostgreSQL implementation of repository.OutboxRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type OutboxPostgres struct {
	db *sql.DB
}

// NewOutboxPostgres creates a new OutboxPostgres repository.
func NewOutboxPostgres(db *sql.DB) *OutboxPostgres {
	return &OutboxPostgres{db: db}
}

var _ repository.OutboxRepository = (*OutboxPostgres)(nil)

// IsNoRowsError reports whether err is the driver's missing-row error.
func IsNoRowsError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

const outboxColumns = `id, session_name, recipient, kind, body, backend_id, media_path, content_type, size, created_at`

// Create inserts a new outbox row and returns the stored record.
func (r *OutboxPostgres) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	const q = `
		INSERT INTO outbox_messages (id, session_name, recipient, kind, body, backend_id, media_path, content_type, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + outboxColumns
	row := r.db.QueryRowContext(ctx, q,
		msg.ID,
		msg.SessionName,
		msg.Recipient,
		msg.Kind,
		msg.Body,
		msg.BackendID,
		msg.MediaPath,
		msg.ContentType,
		msg.Size,
		msg.CreatedAt,
	)
	return scanMessage(row)
}

// FindByID fetches a single outbox record by its ID.
func (r *OutboxPostgres) FindByID(ctx context.Context, id string) (*model.Message, error) {
	const q = `
		SELECT ` + outboxColumns + `
		FROM outbox_messages
		WHERE id = $1
	`
	return scanMessage(r.db.QueryRowContext(ctx, q, id))
}

// List returns outbox records using LIMIT/OFFSET pagination and a total count.
// A non-empty session filter restricts both the page and the count.
func (r *OutboxPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Message], error) {
	var total int
	var rows *sql.Rows
	var err error

	if pq.Session != "" {
		const qCount = `SELECT COUNT(*) FROM outbox_messages WHERE session_name = $1`
		if err = r.db.QueryRowContext(ctx, qCount, pq.Session).Scan(&total); err != nil {
			return nil, err
		}
		const qList = `
			SELECT ` + outboxColumns + `
			FROM outbox_messages
			WHERE session_name = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2 OFFSET $3
		`
		rows, err = r.db.QueryContext(ctx, qList, pq.Session, pq.Limit, pq.Offset)
	} else {
		const qCount = `SELECT COUNT(*) FROM outbox_messages`
		if err = r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
			return nil, err
		}
		const qList = `
			SELECT ` + outboxColumns + `
			FROM outbox_messages
			ORDER BY created_at DESC, id DESC
			LIMIT $1 OFFSET $2
		`
		rows, err = r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Message, 0)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(
			&m.ID,
			&m.SessionName,
			&m.Recipient,
			&m.Kind,
			&m.Body,
			&m.BackendID,
			&m.MediaPath,
			&m.ContentType,
			&m.Size,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Message]{
		Items: items,
		Total: total,
	}, nil
}

// Delete removes an outbox record by ID. It does not return an error if the
// row does not exist.
func (r *OutboxPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM outbox_messages WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	_, _ = res.RowsAffected()
	return nil
}

func scanMessage(row *sql.Row) (*model.Message, error) {
	var m model.Message
	if err := row.Scan(
		&m.ID,
		&m.SessionName,
		&m.Recipient,
		&m.Kind,
		&m.Body,
		&m.BackendID,
		&m.MediaPath,
		&m.ContentType,
		&m.Size,
		&m.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}
