package sqlite

import (
	"database/sql"
	"time"

	"github.com/vertextoedge/image-downloader/internal/domain"
)

// StartRun records a new run
func (s *Store) StartRun(run *domain.Run) error {
	query := `
		INSERT INTO runs (id, root, list_files, started_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.Exec(query, run.ID, run.Root, run.ListFiles, run.StartedAt.UTC())
	return err
}

// RecordResult stores the outcome of one job of a run
func (s *Store) RecordResult(runID string, result *domain.Result) error {
	query := `
		INSERT INTO results (
			run_id, list_file, url, line, outcome, status_code,
			reason, path, digest, bytes, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var path, digest, errMsg string
	var size int64
	if result.Image != nil {
		path = result.Image.Path
		digest = result.Image.Digest
		size = result.Image.BytesWritten
	}
	if result.Err != nil {
		errMsg = result.Err.Error()
	}

	_, err := s.db.Exec(query,
		runID, result.Job.ListFile, result.Job.URL, result.Job.Line,
		string(result.Outcome), result.StatusCode, result.Reason,
		path, digest, size, errMsg, time.Now().UTC())
	return err
}

// FinishRun stores the final counters of a run
func (s *Store) FinishRun(runID string, summary *domain.RunSummary) error {
	query := `
		UPDATE runs
		SET finished_at = ?,
			total = ?,
			saved = ?,
			discarded = ?,
			failed = ?,
			bytes = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(query,
		summary.FinishedAt.UTC(), summary.Total, summary.Saved,
		summary.Discarded, summary.Failed, summary.Bytes, runID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetRun returns a run and its summary, or nil if not found
func (s *Store) GetRun(runID string) (*domain.RunRecord, error) {
	query := `
		SELECT id, root, list_files, started_at, finished_at,
			   total, saved, discarded, failed, bytes
		FROM runs
		WHERE id = ?
	`

	record := &domain.RunRecord{}
	var finishedAt sql.NullTime
	var summary domain.RunSummary

	err := s.db.QueryRow(query, runID).Scan(
		&record.ID, &record.Root, &record.ListFiles, &record.StartedAt, &finishedAt,
		&summary.Total, &summary.Saved, &summary.Discarded, &summary.Failed, &summary.Bytes,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		summary.FinishedAt = finishedAt.Time
		record.Summary = &summary
	}

	return record, nil
}

// ListResults returns the stored results of a run in insertion order
func (s *Store) ListResults(runID string) ([]*domain.ResultRecord, error) {
	query := `
		SELECT id, run_id, list_file, url, line, outcome, status_code,
			   reason, path, digest, bytes, error, created_at
		FROM results
		WHERE run_id = ?
		ORDER BY id ASC
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.ResultRecord
	for rows.Next() {
		r := &domain.ResultRecord{}
		var outcome string
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.ListFile, &r.URL, &r.Line, &outcome, &r.StatusCode,
			&r.Reason, &r.Path, &r.Digest, &r.Bytes, &r.Error, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		r.Outcome = domain.Outcome(outcome)
		records = append(records, r)
	}

	return records, rows.Err()
}
