package booking

import (
	"context"
	"database/sql"
	"time"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, b *Booking) error {
	query := `INSERT INTO bookings (name, email, date, time) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, b.Name, b.Email, b.Date, b.Time).Scan(&b.ID, &b.CreatedAt)
}

func (r *PostgresRepo) List(ctx context.Context) ([]Booking, error) {
	query := `SELECT id, name, email, date, time, created_at FROM bookings ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var (
			b     Booking
			date  time.Time
			clock string
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Email, &date, &clock, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Date = date.Format(dateLayout)
		b.Time = normalizeClock(clock)
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM bookings`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

// normalizeClock trims the "0000-01-01T" prefix lib/pq puts on TIME columns.
func normalizeClock(s string) string {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.Format(timeLayout)
	}
	if len(s) >= 8 {
		return s[:8]
	}
	return s
}
