package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ExpenseCertify/internal/config"
)

// lookupBatch bounds the array size of a single membership query.
const lookupBatch = config.BatchSize * 10

// ContainsAny returns the subset of fingerprints already persisted by any run.
func (s *Store) ContainsAny(ctx context.Context, fingerprints []string) (map[string]struct{}, error) {
	return s.existing(ctx,
		`SELECT fingerprint_hash FROM transaction_fingerprints WHERE fingerprint_hash = ANY($1)`, fingerprints)
}

// HistoricalFingerprints loads the whole de-duplication set.
func (s *Store) HistoricalFingerprints(ctx context.Context) (map[string]struct{}, error) {
	return s.scanSet(ctx, `SELECT fingerprint_hash FROM transaction_fingerprints`)
}

// PersistFingerprints records fingerprints for runID. Fingerprints another run
// already owns are skipped by the unique constraint.
func (s *Store) PersistFingerprints(ctx context.Context, runID uuid.UUID, fingerprints []string) (int64, error) {
	var inserted int64
	for start := 0; start < len(fingerprints); start += lookupBatch {
		end := start + lookupBatch
		if end > len(fingerprints) {
			end = len(fingerprints)
		}
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO transaction_fingerprints (run_id, fingerprint_hash)
			SELECT $1::uuid, fp FROM unnest($2::text[]) AS fp
			ON CONFLICT (fingerprint_hash) DO NOTHING`,
			runID, pq.Array(fingerprints[start:end]),
		)
		if err != nil {
			return inserted, fmt.Errorf("persist fingerprints: %w", err)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}
	return inserted, nil
}
