package document

import (
	"context"
	"database/sql"

	"ragchat/internal/worker"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// SaveIngested is idempotent on the document id so redelivered events are harmless.
func (r *PostgresRepo) SaveIngested(ctx context.Context, ev worker.DocumentIngested) error {
	query := `INSERT INTO documents (id, file_name, file_size, total_chunks, strategy, mode, uploaded_at) VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, ev.DocumentID, ev.FileName, ev.FileSize, ev.TotalChunks, ev.Strategy, ev.Mode, ev.UploadedAt)
	return err
}

func (r *PostgresRepo) List(ctx context.Context) ([]Document, error) {
	query := `SELECT id, file_name, file_size, total_chunks, strategy, mode, uploaded_at FROM documents ORDER BY uploaded_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.FileName, &d.FileSize, &d.TotalChunks, &d.Strategy, &d.Mode, &d.UploadedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM documents`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
