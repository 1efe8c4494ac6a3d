package db

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// ------------------------------
// Link methods
// ------------------------------

// AddLink stores an accepted link for a run and returns its id.
// Emits a LinkRecordedEvent after successful insert.
func (db *DB) AddLink(runID, host, url string) (int64, error) {
	if _, err := db.GetRun(runID); err != nil {
		return 0, err
	}

	l := Link{
		RunID:     runID,
		Host:      host,
		URL:       url,
		CreatedAt: time.Now().Format(time.RFC3339),
	}
	result, err := db.db.Exec(
		"INSERT INTO links (run_id, host, url, created_at) VALUES (?, ?, ?, ?)",
		l.RunID, l.Host, l.URL, l.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add link: %w", err)
	}
	l.ID, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	db.emit(LinkRecordedEvent{Link: l})
	return l.ID, nil
}

// ListLinks returns a run's links in the order they were recorded.
func (db *DB) ListLinks(runID string) ([]Link, error) {
	rows, err := db.db.Query(`
		SELECT id, run_id, host, url, created_at
		FROM links
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.WithField("err", err).Warn("failed to close rows")
		}
	}()

	var out []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.ID, &l.RunID, &l.Host, &l.URL, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
