package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stewardhq/steward/internal/types"
)

// SaveReport inserts a report or replaces an existing one (resolutions and
// status change over the report's lifecycle)
func (s *SQLiteStorage) SaveReport(ctx context.Context, r *types.DataQualityReport) error {
	if err := r.Validate(); err != nil {
		return types.NewValidationError("invalid report: %v", err)
	}

	metrics, err := json.Marshal(r.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	issues, err := json.Marshal(r.Issues)
	if err != nil {
		return fmt.Errorf("failed to encode issues: %w", err)
	}
	resolutions, err := json.Marshal(r.Resolutions)
	if err != nil {
		return fmt.Errorf("failed to encode resolutions: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quality_reports (id, report_date, metrics, issues, resolutions, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			metrics = excluded.metrics,
			issues = excluded.issues,
			resolutions = excluded.resolutions,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		r.ID, r.ReportDate, string(metrics), string(issues), string(resolutions), r.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", r.ID, err)
	}
	return nil
}

func scanReport(row rowScanner) (*types.DataQualityReport, error) {
	var r types.DataQualityReport
	var metrics, issues, resolutions string
	if err := row.Scan(&r.ID, &r.ReportDate, &metrics, &issues, &resolutions, &r.Status); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metrics), &r.Metrics); err != nil {
		return nil, fmt.Errorf("failed to decode metrics for %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(issues), &r.Issues); err != nil {
		return nil, fmt.Errorf("failed to decode issues for %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(resolutions), &r.Resolutions); err != nil {
		return nil, fmt.Errorf("failed to decode resolutions for %s: %w", r.ID, err)
	}
	return &r, nil
}

// GetReport loads one report by id
func (s *SQLiteStorage) GetReport(ctx context.Context, id string) (*types.DataQualityReport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, report_date, metrics, issues, resolutions, status
		FROM quality_reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError("report", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", id, err)
	}
	return r, nil
}

// ListReports returns reports newest first
func (s *SQLiteStorage) ListReports(ctx context.Context, limit int) ([]*types.DataQualityReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report_date, metrics, issues, resolutions, status
		FROM quality_reports ORDER BY report_date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var out []*types.DataQualityReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
