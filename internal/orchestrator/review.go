package orchestrator

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"ExpenseCertify/internal/checksum"
	"ExpenseCertify/internal/logger"
	"ExpenseCertify/internal/model"
)

// MarkAccepted accepts an exception for good: its row and reasons are never
// reported again.
func (e *Engine) MarkAccepted(ctx context.Context, id int64, reviewer string) (model.AcceptedFingerprint, error) {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return model.AcceptedFingerprint{}, &InputError{Err: ErrReviewerRequired}
	}
	key, err := e.repo.MarkAccepted(ctx, id, reviewer)
	if err != nil {
		return model.AcceptedFingerprint{}, err
	}
	logger.Audit("exception %d accepted by %s (combined_hash=%s)", id, reviewer, key.CombinedHash)
	return key, nil
}

// RecordAccepted pre-accepts a row snapshot and reason text without an
// exception record. Numeric cells in rowJSON are keyed as text, matching
// rows read from a source file.
func (e *Engine) RecordAccepted(ctx context.Context, rowJSON []byte, reason, reviewer string) (model.AcceptedFingerprint, error) {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return model.AcceptedFingerprint{}, &InputError{Err: ErrReviewerRequired}
	}
	key, err := checksum.AcceptedKeyFromPosted(rowJSON, reason)
	if err != nil {
		return model.AcceptedFingerprint{}, &InputError{Err: err}
	}
	if err := e.repo.RecordAccepted(ctx, key); err != nil {
		return model.AcceptedFingerprint{}, err
	}
	logger.Audit("row accepted by %s (combined_hash=%s)", reviewer, key.CombinedHash)
	return key, nil
}

// SetCorrectionStatus records the reviewer's correction decision. It does not
// touch the accepted-exception store.
func (e *Engine) SetCorrectionStatus(ctx context.Context, id int64, status, by string) error {
	by = strings.TrimSpace(by)
	if by == "" {
		return &InputError{Err: ErrReviewerRequired}
	}
	if err := e.repo.SetCorrectionStatus(ctx, id, status, by); err != nil {
		return err
	}
	logger.Audit("exception %d correction status %s by %s", id, status, by)
	return nil
}

// ReviewSuspicious moves a review-queue entry to status.
func (e *Engine) ReviewSuspicious(ctx context.Context, id int64, status, comment, reviewer string) error {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return &InputError{Err: ErrReviewerRequired}
	}
	if err := e.repo.ReviewSuspicious(ctx, id, status, strings.TrimSpace(comment), reviewer); err != nil {
		return err
	}
	logger.Audit("suspicious entry %d -> %s by %s", id, status, reviewer)
	return nil
}

// DeleteRun removes a run and everything that references it.
func (e *Engine) DeleteRun(ctx context.Context, runID uuid.UUID, by string) error {
	if err := e.repo.DeleteRun(ctx, runID); err != nil {
		return err
	}
	logger.Audit("run %s deleted by %s", runID, by)
	return nil
}
