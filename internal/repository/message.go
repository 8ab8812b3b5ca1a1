package repository

import (
	"context"

	"chatgate/internal/model"
)

// OutboxRepository defines data access for sent-message records using SQL
// queries only. No business logic here — strictly persistence operations.
type OutboxRepository interface {
	// Create inserts a new outbox record.
	// The caller provides ID and CreatedAt; the stored row is returned.
	Create(ctx context.Context, msg *model.Message) (*model.Message, error)

	// FindByID returns an outbox record by its ID.
	FindByID(ctx context.Context, id string) (*model.Message, error)

	// List returns a paginated list of outbox records and the total row count
	// for the given filter, newest first.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Message], error)

	// Delete removes an outbox record by ID. It returns nil if the row was
	// deleted or did not exist.
	Delete(ctx context.Context, id string) error
}
