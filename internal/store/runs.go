package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ExpenseCertify/internal/model"
)

// CreateRun writes the run record every other artifact references.
func (s *Store) CreateRun(ctx context.Context, run model.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO validation_runs
			(id, filename, upload_time, total_records, total_exceptions, file_size, file_checksum, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.Filename, run.UploadTime, run.TotalRecords, run.TotalExceptions,
		run.FileSize, run.FileChecksum, run.UploadedBy,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// PersistReport attaches the archived report workbook to a run.
func (s *Store) PersistReport(ctx context.Context, runID uuid.UUID, report []byte) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE validation_runs SET excel_report_data = $2 WHERE id = $1`, runID, report)
	if err != nil {
		return fmt.Errorf("persist report: %w", err)
	}
	return expectOne(res)
}

// GetReport returns the archived report of a run.
func (s *Store) GetReport(ctx context.Context, runID uuid.UUID) ([]byte, string, error) {
	var (
		data     []byte
		filename string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT excel_report_data, filename FROM validation_runs WHERE id = $1`, runID,
	).Scan(&data, &filename)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("get report: %w", err)
	}
	if len(data) == 0 {
		return nil, filename, ErrNotFound
	}
	return data, filename, nil
}

const runColumns = `id, filename, upload_time, total_records, total_exceptions, file_size,
	file_checksum, uploaded_by, excel_report_data IS NOT NULL`

func scanRun(sc interface{ Scan(...any) error }) (model.Run, error) {
	var r model.Run
	err := sc.Scan(&r.ID, &r.Filename, &r.UploadTime, &r.TotalRecords, &r.TotalExceptions,
		&r.FileSize, &r.FileChecksum, &r.UploadedBy, &r.HasReport)
	return r, err
}

// GetRun loads one run.
func (s *Store) GetRun(ctx context.Context, runID uuid.UUID) (model.Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM validation_runs WHERE id = $1`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns one page of runs, most recent first.
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM validation_runs ORDER BY upload_time DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []model.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CountRuns is the total number of runs.
func (s *Store) CountRuns(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM validation_runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

// DeleteRun removes a run; its dependent rows go with it through the foreign
// key cascade.
func (s *Store) DeleteRun(ctx context.Context, runID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM validation_runs WHERE id = $1`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return expectOne(res)
}

// PurgeRunsBefore deletes runs uploaded before cutoff.
func (s *Store) PurgeRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM validation_runs WHERE upload_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge runs: %w", err)
	}
	return res.RowsAffected()
}

// PersistDepartmentSummary writes the per-department statistics of a run.
func (s *Store) PersistDepartmentSummary(ctx context.Context, runID uuid.UUID, stats []model.DepartmentStat) error {
	if len(stats) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, st := range stats {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO department_summary (run_id, department, total_records, exception_records, exception_rate)
				VALUES ($1, $2, $3, $4, $5)`,
				runID, st.Department, st.TotalRecords, st.ExceptionRecords, st.ExceptionRate,
			); err != nil {
				return fmt.Errorf("persist department summary: %w", err)
			}
		}
		return nil
	})
}

// DepartmentSummary reads back the statistics of a run.
func (s *Store) DepartmentSummary(ctx context.Context, runID uuid.UUID) ([]model.DepartmentStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT department, total_records, exception_records, exception_rate
		FROM department_summary WHERE run_id = $1 ORDER BY department`, runID)
	if err != nil {
		return nil, fmt.Errorf("department summary: %w", err)
	}
	defer rows.Close()

	out := []model.DepartmentStat{}
	for rows.Next() {
		var st model.DepartmentStat
		if err := rows.Scan(&st.Department, &st.TotalRecords, &st.ExceptionRecords, &st.ExceptionRate); err != nil {
			return nil, fmt.Errorf("scan department summary: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// PersistUserPerformance writes per-user totals of a run.
func (s *Store) PersistUserPerformance(ctx context.Context, runID uuid.UUID, perf []model.UserPerformance) error {
	if len(perf) == 0 {
		return nil
	}
	if s.bulk != nil {
		_, err := s.bulk.CopyUserPerformance(ctx, runID, perf)
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range perf {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO user_performance (run_id, "user", total_records, exception_records, exception_rate)
				VALUES ($1, $2, $3, $4, $5)`,
				runID, p.User, p.TotalRecords, p.ExceptionRecords, p.ExceptionRate,
			); err != nil {
				return fmt.Errorf("persist user performance: %w", err)
			}
		}
		return nil
	})
}

// UserPerformance reads back per-user totals of a run.
func (s *Store) UserPerformance(ctx context.Context, runID uuid.UUID) ([]model.UserPerformance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT "user", total_records, exception_records, exception_rate
		FROM user_performance WHERE run_id = $1 ORDER BY "user"`, runID)
	if err != nil {
		return nil, fmt.Errorf("user performance: %w", err)
	}
	defer rows.Close()

	out := []model.UserPerformance{}
	for rows.Next() {
		var p model.UserPerformance
		if err := rows.Scan(&p.User, &p.TotalRecords, &p.ExceptionRecords, &p.ExceptionRate); err != nil {
			return nil, fmt.Errorf("scan user performance: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
