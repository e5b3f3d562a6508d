package document_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"ragchat/features/document"
	"ragchat/internal/worker"
)

func TestPostgresRepo_SaveIngested(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)
	ev := worker.DocumentIngested{
		DocumentID:  "d1",
		FileName:    "notes.txt",
		FileSize:    "1.17KiB",
		TotalChunks: 3,
		Strategy:    "fixed",
		Mode:        "replace",
		UploadedAt:  time.Now(),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents (id, file_name, file_size, total_chunks, strategy, mode, uploaded_at) VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING")).
		WithArgs(ev.DocumentID, ev.FileName, ev.FileSize, ev.TotalChunks, ev.Strategy, ev.Mode, ev.UploadedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.SaveIngested(context.Background(), ev)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "file_name", "file_size", "total_chunks", "strategy", "mode", "uploaded_at"}).
		AddRow("d2", "b.md", "0.50KiB", 1, "delimiter", "append", now).
		AddRow("d1", "a.txt", "1.00KiB", 2, "fixed", "replace", now.Add(-time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, file_name, file_size, total_chunks, strategy, mode, uploaded_at FROM documents ORDER BY uploaded_at DESC")).
		WillReturnRows(rows)

	docs, err := repo.List(context.Background())
	assert.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, "d2", docs[0].ID)
	assert.Equal(t, "delimiter", docs[0].Strategy)
	assert.Equal(t, 2, docs[1].TotalChunks)
}

func TestPostgresRepo_Count(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 7, count)
}
