package ledger

import (
	"context"
	"fmt"

	"face-attendance-go/internal/core/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore speichert die Anwesenheitsliste in PostgreSQL
type PostgresStore struct {
	dsn  string
	pool *pgxpool.Pool
}

// NewPostgresStore erstellt einen Speicher. Die Verbindung wird bei Init aufgebaut.
func NewPostgresStore(dsn string) *PostgresStore {
	return &PostgresStore{dsn: dsn}
}

// Init verbindet sich und legt die Tabelle an (Auto-Migration)
func (s *PostgresStore) Init(ctx context.Context) error {
	if s.pool == nil {
		pool, err := pgxpool.New(ctx, s.dsn)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		s.pool = pool
	}

	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS attendance (
			name TEXT NOT NULL,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			PRIMARY KEY (name, date)
		);
		CREATE INDEX IF NOT EXISTS attendance_date_idx ON attendance (date);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize attendance schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertIfAbsent(ctx context.Context, rec models.AttendanceRecord) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO attendance (name, date, time)
		VALUES ($1, $2, $3)
		ON CONFLICT (name, date) DO NOTHING
	`, rec.Name, rec.Date, rec.Time)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) List(ctx context.Context, date string) ([]models.AttendanceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, date, time FROM attendance
		WHERE $1 = '' OR date = $1
		ORDER BY date, time
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.AttendanceRecord
	for rows.Next() {
		var rec models.AttendanceRecord
		if err := rows.Scan(&rec.Name, &rec.Date, &rec.Time); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
