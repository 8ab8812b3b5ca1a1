package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"chatgate/internal/model"
	"chatgate/internal/repository"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

var outboxCols = []string{"id", "session_name", "recipient", "kind", "body", "backend_id", "media_path", "content_type", "size", "created_at"}

func TestOutboxPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewOutboxPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	msg := &model.Message{
		ID:          "test-uuid",
		SessionName: "primary",
		Recipient:   "+15550001",
		Kind:        model.MessageKindText,
		Body:        "hello",
		BackendID:   "msg-1",
		CreatedAt:   now,
	}

	rows := sqlmock.NewRows(outboxCols).
		AddRow(msg.ID, msg.SessionName, msg.Recipient, msg.Kind, msg.Body, msg.BackendID, "", "", 0, msg.CreatedAt)

	mock.ExpectQuery("INSERT INTO outbox_messages").
		WithArgs(msg.ID, msg.SessionName, msg.Recipient, msg.Kind, msg.Body, msg.BackendID, msg.MediaPath, msg.ContentType, msg.Size, msg.CreatedAt).
		WillReturnRows(rows)

	result, err := repo.Create(ctx, msg)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, msg.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewOutboxPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows(outboxCols).
			AddRow("test-id", "primary", "+15550001", "text", "hello", "msg-1", "", "", 0, time.Now())

		mock.ExpectQuery("SELECT (.+) FROM outbox_messages WHERE id = ?").
			WithArgs("test-id").
			WillReturnRows(rows)

		msg, err := repo.FindByID(ctx, "test-id")

		assert.NoError(t, err)
		assert.NotNil(t, msg)
		assert.Equal(t, "test-id", msg.ID)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM outbox_messages WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		msg, err := repo.FindByID(ctx, "missing")

		assert.Error(t, err)
		assert.True(t, IsNoRowsError(err))
		assert.Nil(t, msg)
	})
}

func TestOutboxPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewOutboxPostgres(db)
	ctx := context.Background()

	t.Run("all sessions", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM outbox_messages").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		rows := sqlmock.NewRows(outboxCols).
			AddRow("test-id", "primary", "+15550001", "text", "hello", "msg-1", "", "", 0, time.Now())

		mock.ExpectQuery("SELECT (.+) FROM outbox_messages ORDER BY").
			WithArgs(10, 0).
			WillReturnRows(rows)

		res, err := repo.List(ctx, repository.PageQuery{Limit: 10, Offset: 0})

		assert.NoError(t, err)
		assert.Equal(t, 1, res.Total)
		assert.Len(t, res.Items, 1)
	})

	t.Run("filtered by session", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM outbox_messages WHERE session_name").
			WithArgs("primary").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

		rows := sqlmock.NewRows(outboxCols).
			AddRow("id-1", "primary", "+15550001", "text", "a", "msg-1", "", "", 0, time.Now()).
			AddRow("id-2", "primary", "+15550002", "media", "", "msg-2", "media/x.jpg", "image/jpeg", 10, time.Now())

		mock.ExpectQuery("SELECT (.+) FROM outbox_messages WHERE session_name").
			WithArgs("primary", 10, 0).
			WillReturnRows(rows)

		res, err := repo.List(ctx, repository.PageQuery{Limit: 10, Offset: 0, Session: "primary"})

		assert.NoError(t, err)
		assert.Equal(t, 2, res.Total)
		assert.Len(t, res.Items, 2)
		assert.Equal(t, "media/x.jpg", res.Items[1].MediaPath)
	})
}

func TestOutboxPostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewOutboxPostgres(db)
	ctx := context.Background()

	t.Run("deleted", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM outbox_messages").
			WithArgs("test-id").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Delete(ctx, "test-id"))
	})

	t.Run("missing row is not an error", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM outbox_messages").
			WithArgs("missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, repo.Delete(ctx, "missing"))
	})
}
