package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dtnitsch/sitemap2skill/models"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded build.
type Run struct {
	RunID         string
	SitemapURL    string
	StartedAt     time.Time
	Duration      time.Duration
	Discovered    int
	Succeeded     int
	Failed        int
	Cancelled     bool
	ArtifactPath  string
	ArtifactBytes int64
	Error         string
}

// RecordRun stores a finished run and its per-URL failures. runErr is the
// fatal error the run ended with, if any.
func (db *DB) RecordRun(report models.RunReport, artifactPath string, artifactBytes int64, runErr error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var errText sql.NullString
	if runErr != nil {
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}

	_, err = tx.Exec(`
		INSERT INTO runs (run_id, sitemap_url, started_at, duration_ms, discovered,
			succeeded, failed, cancelled, artifact_path, artifact_bytes, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.RunID, report.SitemapURL, report.StartedAt.UTC(), report.Duration.Milliseconds(),
		report.TotalDiscovered, report.Succeeded, len(report.Failed), report.Cancelled,
		nullIfEmpty(artifactPath), artifactBytes, errText)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO run_failures (run_id, position, url, error_kind, status_code, attempts, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare failure insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range report.Failed {
		var status sql.NullInt64
		if f.StatusCode != 0 {
			status = sql.NullInt64{Int64: int64(f.StatusCode), Valid: true}
		}
		if _, err := stmt.Exec(report.RunID, i, f.URL, string(f.Kind), status, f.Attempts, nullIfEmpty(f.Message)); err != nil {
			return fmt.Errorf("failed to insert failure for %s: %w", f.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 means all.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `
		SELECT run_id, sitemap_url, started_at, duration_ms, discovered, succeeded,
			failed, cancelled, artifact_path, artifact_bytes, error
		FROM runs
		ORDER BY started_at DESC, run_id
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns one run and its failures in discovery order.
func (db *DB) GetRun(runID string) (*Run, []models.FailedURL, error) {
	row := db.QueryRow(`
		SELECT run_id, sitemap_url, started_at, duration_ms, discovered, succeeded,
			failed, cancelled, artifact_path, artifact_bytes, error
		FROM runs WHERE run_id = ?
	`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := db.Query(`
		SELECT url, error_kind, status_code, attempts, message
		FROM run_failures WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	var failures []models.FailedURL
	for rows.Next() {
		var (
			f       models.FailedURL
			kind    string
			status  sql.NullInt64
			message sql.NullString
		)
		if err := rows.Scan(&f.URL, &kind, &status, &f.Attempts, &message); err != nil {
			return nil, nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		f.Kind = models.ErrorKind(kind)
		f.StatusCode = int(status.Int64)
		f.Message = message.String
		f.Reason = (&models.FetchFailure{Kind: f.Kind, StatusCode: f.StatusCode}).Reason()
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return run, failures, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run        Run
		durationMS int64
		artifact   sql.NullString
		errText    sql.NullString
	)
	err := s.Scan(&run.RunID, &run.SitemapURL, &run.StartedAt, &durationMS, &run.Discovered,
		&run.Succeeded, &run.Failed, &run.Cancelled, &artifact, &run.ArtifactBytes, &errText)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	run.ArtifactPath = artifact.String
	run.Error = errText.String
	return &run, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
