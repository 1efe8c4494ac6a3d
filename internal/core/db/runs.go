package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// ------------------------------
// Run methods
// ------------------------------

// CreateRun inserts a new run and returns its id.
// Emits a RunCreatedEvent after successful insert.
func (db *DB) CreateRun(input, style string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", errors.New("run input must not be empty")
	}
	if style == "" {
		style = "lines"
	}

	r := Run{
		ID:        uuid.NewString(),
		Input:     input,
		Style:     style,
		StartedAt: time.Now().Format(time.RFC3339),
	}
	_, err := db.db.Exec(
		"INSERT INTO runs (id, input, style, started_at) VALUES (?, ?, ?, ?)",
		r.ID, r.Input, r.Style, r.StartedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}

	db.emit(RunCreatedEvent{Run: r})
	return r.ID, nil
}

func (db *DB) GetRun(id string) (Run, error) {
	var r Run
	var finished sql.NullString
	err := db.db.QueryRow(
		"SELECT id, input, style, started_at, finished_at, link_count FROM runs WHERE id = ?", id,
	).Scan(&r.ID, &r.Input, &r.Style, &r.StartedAt, &finished, &r.LinkCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	r.FinishedAt = finished.String
	return r, nil
}

// FinishRun stamps the run as finished with its final link count.
// Emits a RunFinishedEvent after successful update.
func (db *DB) FinishRun(id string, count int) error {
	res, err := db.db.Exec(
		"UPDATE runs SET finished_at = ?, link_count = ? WHERE id = ?",
		time.Now().Format(time.RFC3339), count, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to determine rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}

	db.emit(RunFinishedEvent{RunID: id, LinkCount: count})
	return nil
}

// ListRuns returns runs newest first. A limit <= 0 returns all of them.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `
		SELECT id, input, style, started_at, finished_at, link_count
		FROM runs
		ORDER BY started_at DESC, rowid DESC
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = db.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.WithField("err", err).Warn("failed to close rows")
		}
	}()

	var out []Run
	for rows.Next() {
		var r Run
		var finished sql.NullString
		if err := rows.Scan(&r.ID, &r.Input, &r.Style, &r.StartedAt, &finished, &r.LinkCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.FinishedAt = finished.String
		out = append(out, r)
	}
	return out, rows.Err()
}
