package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ExpenseCertify/internal/checksum"
	"ExpenseCertify/internal/model"
)

// PersistExceptions writes the exception records of a run.
func (s *Store) PersistExceptions(ctx context.Context, runID uuid.UUID, exceptions []model.Exception) error {
	if len(exceptions) == 0 {
		return nil
	}
	if s.bulk != nil {
		_, err := s.bulk.CopyExceptions(ctx, runID, exceptions)
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range exceptions {
			status := e.CorrectionStatus
			if status == "" {
				status = model.CorrectionPending
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO exceptions
					(run_id, department, sub_department, created_user, exception_reason, severity,
					 net_amount, original_row_data, correction_status)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)`,
				runID, e.Department, e.SubDepartment, e.CreatedUser, e.Reason, e.Severity,
				e.NetAmount, string(e.OriginalRowData), status,
			); err != nil {
				return fmt.Errorf("persist exceptions: %w", err)
			}
		}
		return nil
	})
}

const exceptionColumns = `id, run_id, department, sub_department, created_user, exception_reason, severity,
	COALESCE(net_amount, 0), original_row_data, correction_status, COALESCE(corrected_by, ''),
	is_accepted, COALESCE(accepted_by, '')`

func scanException(sc interface{ Scan(...any) error }) (model.Exception, error) {
	var (
		e   model.Exception
		raw []byte
	)
	err := sc.Scan(&e.ID, &e.RunID, &e.Department, &e.SubDepartment, &e.CreatedUser, &e.Reason,
		&e.Severity, &e.NetAmount, &raw, &e.CorrectionStatus, &e.CorrectedBy, &e.IsAccepted, &e.AcceptedBy)
	e.OriginalRowData = raw
	return e, err
}

// GetExceptions returns the exceptions of a run in insertion order.
func (s *Store) GetExceptions(ctx context.Context, runID uuid.UUID) ([]model.Exception, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+exceptionColumns+` FROM exceptions WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("get exceptions: %w", err)
	}
	defer rows.Close()

	out := []model.Exception{}
	for rows.Next() {
		e, err := scanException(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exception: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetException loads one exception.
func (s *Store) GetException(ctx context.Context, id int64) (model.Exception, error) {
	e, err := scanException(s.db.QueryRowContext(ctx,
		`SELECT `+exceptionColumns+` FROM exceptions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Exception{}, ErrNotFound
	}
	if err != nil {
		return model.Exception{}, fmt.Errorf("get exception: %w", err)
	}
	return e, nil
}

// MarkAccepted flags an exception as accepted and records the suppression key
// computed from its stored row and reason text. Accepting twice is harmless.
func (s *Store) MarkAccepted(ctx context.Context, id int64, reviewer string) (model.AcceptedFingerprint, error) {
	var key model.AcceptedFingerprint
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			raw    []byte
			reason string
		)
		err := tx.QueryRowContext(ctx,
			`SELECT original_row_data, exception_reason FROM exceptions WHERE id = $1 FOR UPDATE`, id,
		).Scan(&raw, &reason)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load exception: %w", err)
		}

		key, err = checksum.AcceptedKeyFromStored(raw, reason)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE exceptions SET is_accepted = true, accepted_by = $2, accepted_at = now()
			WHERE id = $1 AND is_accepted = false`, id, nullString(reviewer),
		); err != nil {
			return fmt.Errorf("mark accepted: %w", err)
		}
		return insertAccepted(ctx, tx, key, reviewer)
	})
	return key, err
}

func insertAccepted(ctx context.Context, tx *sql.Tx, key model.AcceptedFingerprint, reviewer string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accepted_exception_fingerprints (data_hash, reason_hash, combined_hash, accepted_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (combined_hash) DO NOTHING`,
		key.DataHash, key.ReasonHash, key.CombinedHash, nullString(reviewer),
	); err != nil {
		return fmt.Errorf("record accepted fingerprint: %w", err)
	}
	return nil
}

// RecordAccepted writes a suppression key directly; duplicates are ignored.
func (s *Store) RecordAccepted(ctx context.Context, key model.AcceptedFingerprint) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertAccepted(ctx, tx, key, "")
	})
}

// AcceptedAmong returns which of the combined hashes have been accepted.
func (s *Store) AcceptedAmong(ctx context.Context, combined []string) (map[string]struct{}, error) {
	return s.existing(ctx,
		`SELECT combined_hash FROM accepted_exception_fingerprints WHERE combined_hash = ANY($1)`, combined)
}

// ContainsAccepted is the single-key form of AcceptedAmong.
func (s *Store) ContainsAccepted(ctx context.Context, combined string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM accepted_exception_fingerprints WHERE combined_hash = $1`, combined).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("contains accepted: %w", err)
	}
	return true, nil
}

// AcceptedFingerprints loads every combined hash.
func (s *Store) AcceptedFingerprints(ctx context.Context) (map[string]struct{}, error) {
	return s.scanSet(ctx, `SELECT combined_hash FROM accepted_exception_fingerprints`)
}

// SetCorrectionStatus moves an exception through Pending -> Yes | No.
func (s *Store) SetCorrectionStatus(ctx context.Context, id int64, status, by string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT correction_status FROM exceptions WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load correction status: %w", err)
		}
		if err := model.CheckCorrection(current, status); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE exceptions SET correction_status = $2, corrected_by = $3 WHERE id = $1`,
			id, status, nullString(by),
		); err != nil {
			return fmt.Errorf("set correction status: %w", err)
		}
		return nil
	})
}

// existing runs a "= ANY($1)" membership query over keys in batches.
func (s *Store) existing(ctx context.Context, query string, keys []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for start := 0; start < len(keys); start += lookupBatch {
		end := start + lookupBatch
		if end > len(keys) {
			end = len(keys)
		}
		rows, err := s.db.QueryContext(ctx, query, pq.Array(keys[start:end]))
		if err != nil {
			return nil, fmt.Errorf("lookup: %w", err)
		}
		for rows.Next() {
			var k string
			if err := rows.Scan(&k); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan: %w", err)
			}
			out[k] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) scanSet(ctx context.Context, query string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load set: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out[k] = struct{}{}
	}
	return out, rows.Err()
}
