// Package store keeps the history of finished games in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"time"

	"github.com/janpfeifer/GoOracle/internal/game"
	_ "github.com/mattn/go-sqlite3"
	"k8s.io/klog/v2"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DefaultLimit is the number of results Recent returns when no positive limit is given.
const DefaultLimit = 20

// MaxLimit caps the number of results Recent returns.
const MaxLimit = 500

// Record is one finished game.
type Record struct {
	ID              int64       `json:"id"`
	TableID         string      `json:"table_id"`
	Question        string      `json:"question,omitempty"`
	Mode            game.Mode   `json:"mode"`
	Success         bool        `json:"success"`
	Reason          game.Reason `json:"reason"`
	Detail          string      `json:"detail"`
	Message         string      `json:"message"`
	Steps           int         `json:"steps"`
	CompletedGroups int         `json:"completed_groups"`
	FinishedAt      time.Time   `json:"finished_at"`
}

// NewRecord builds the record of a finished game.
func NewRecord(tableID string, mode game.Mode, r game.Result, finishedAt time.Time) Record {
	return Record{
		TableID:         tableID,
		Question:        r.Question,
		Mode:            mode,
		Success:         r.Success,
		Reason:          r.Reason,
		Detail:          r.Detail,
		Message:         r.Message,
		Steps:           r.Steps,
		CompletedGroups: r.CompletedGroups,
		FinishedAt:      finishedAt,
	}
}

// Stats aggregates all recorded games.
type Stats struct {
	Games    int                 `json:"games"`
	Wins     int                 `json:"wins"`
	Losses   int                 `json:"losses"`
	ByReason map[game.Reason]int `json:"by_reason"`

	// AverageCompleted is the mean number of complete ordered groups per game.
	AverageCompleted float64 `json:"average_completed"`
}

// Store wraps the database connection.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := configure(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure connection: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	klog.Infof("Results store opened at %s", path)
	return s, nil
}

func configure(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return err
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return err
	}
	return nil
}

// migrate runs the embedded migrations not yet recorded in the migrations table, in file name order.
func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT UNIQUE NOT NULL,
			executed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	slices.Sort(files)
	for _, file := range files {
		var count int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM migrations WHERE filename = ?", file).Scan(&count); err != nil {
			return fmt.Errorf("failed to check migration %s: %w", file, err)
		}
		if count > 0 {
			continue
		}
		content, err := migrations.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", file, err)
		}
		if _, err := tx.Exec("INSERT INTO migrations (filename) VALUES (?)", file); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", file, err)
		}
		klog.V(1).Infof("Migration completed: %s", file)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveResult inserts a record and returns its ID.
func (s *Store) SaveResult(ctx context.Context, r Record) (int64, error) {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO results (table_id, question, mode, success, reason, detail, message, steps, completed_groups, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.TableID, r.Question, string(r.Mode), r.Success, string(r.Reason), r.Detail, r.Message,
		r.Steps, r.CompletedGroups, r.FinishedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to save result of table %s: %w", r.TableID, err)
	}
	return res.LastInsertId()
}

// Recent returns the latest finished games, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, table_id, question, mode, success, reason, detail, message, steps, completed_groups, finished_at
		FROM results ORDER BY finished_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			r          Record
			mode       string
			reason     string
			finishedAt int64
		)
		if err := rows.Scan(&r.ID, &r.TableID, &r.Question, &mode, &r.Success, &reason, &r.Detail, &r.Message,
			&r.Steps, &r.CompletedGroups, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Mode = game.Mode(mode)
		r.Reason = game.Reason(reason)
		r.FinishedAt = time.UnixMilli(finishedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Stats aggregates every recorded game.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByReason: make(map[game.Reason]int)}
	rows, err := s.db.QueryContext(ctx, `
		SELECT reason, success, COUNT(*), COALESCE(SUM(completed_groups), 0)
		FROM results GROUP BY reason, success`)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	completed := 0
	for rows.Next() {
		var (
			reason  string
			success bool
			count   int
			groups  int
		)
		if err := rows.Scan(&reason, &success, &count, &groups); err != nil {
			return Stats{}, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats.Games += count
		if success {
			stats.Wins += count
		} else {
			stats.Losses += count
		}
		stats.ByReason[game.Reason(reason)] += count
		completed += groups
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}
	if stats.Games > 0 {
		stats.AverageCompleted = float64(completed) / float64(stats.Games)
	}
	return stats, nil
}

// FinishHook returns a table finish hook that persists every finished game. Failures are only logged.
func (s *Store) FinishHook() func(tableID string, mode game.Mode, r game.Result) {
	return func(tableID string, mode game.Mode, r game.Result) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.SaveResult(ctx, NewRecord(tableID, mode, r, time.Now())); err != nil {
			klog.Errorf("Failed to record game: %v", err)
		}
	}
}
