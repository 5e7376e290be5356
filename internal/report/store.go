package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/whisper/rendezvous/internal/chat"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("report: not found")

// PostgresStore keeps reports in the abuse_reports table.
type PostgresStore struct {
	db *sql.DB
}

// Open connects to PostgreSQL at dsn and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("report: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("report: ping: %w", err)
	}
	return db, nil
}

// NewPostgresStore creates a store on db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts rec.
func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	lines := rec.Transcript
	if lines == nil {
		lines = []chat.Line{}
	}
	transcript, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("report: marshal transcript: %w", err)
	}
	var chatLog any
	if len(rec.ChatLog) > 0 {
		chatLog = []byte(rec.ChatLog)
	}
	flags := rec.Flags
	if flags == nil {
		flags = []string{}
	}

	const query = `
		INSERT INTO abuse_reports
			(id, reporter_id, reported_id, room_id, screenshot_key, screenshot, chat_log, transcript, flags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID,
		rec.ReporterID,
		rec.ReportedID,
		rec.RoomID,
		rec.ScreenshotKey,
		rec.Screenshot,
		chatLog,
		transcript,
		pq.Array(flags),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("report: insert: %w", err)
	}
	return nil
}

// Get loads one report.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	const query = `
		SELECT id, reporter_id, reported_id, room_id, screenshot_key, screenshot, chat_log, transcript, flags, created_at
		FROM abuse_reports
		WHERE id = $1`

	var (
		rec        Record
		chatLog    []byte
		transcript []byte
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.ReporterID,
		&rec.ReportedID,
		&rec.RoomID,
		&rec.ScreenshotKey,
		&rec.Screenshot,
		&chatLog,
		&transcript,
		pq.Array(&rec.Flags),
		&rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("report: get: %w", err)
	}

	if len(chatLog) > 0 {
		rec.ChatLog = chatLog
	}
	rec.Transcript = []chat.Line{}
	if err := json.Unmarshal(transcript, &rec.Transcript); err != nil {
		return nil, fmt.Errorf("report: decode transcript: %w", err)
	}
	return &rec, nil
}

// CountRecent returns how many reports were filed against reportedID within
// window.
func (s *PostgresStore) CountRecent(ctx context.Context, reportedID string, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM abuse_reports
		WHERE reported_id = $1
		  AND created_at >= $2`

	var n int
	if err := s.db.QueryRowContext(ctx, query, reportedID, time.Now().Add(-window)).Scan(&n); err != nil {
		return 0, fmt.Errorf("report: count recent: %w", err)
	}
	return n, nil
}
