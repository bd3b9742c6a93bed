package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"ExpenseCertify/internal/model"
)

// BulkWriter streams large row sets with COPY.
type BulkWriter interface {
	CopyExceptions(ctx context.Context, runID uuid.UUID, exceptions []model.Exception) (int64, error)
	CopyUserPerformance(ctx context.Context, runID uuid.UUID, perf []model.UserPerformance) (int64, error)
	CopySuspicious(ctx context.Context, entries []model.SuspiciousEntry) (int64, error)
}

// PgxBulk implements BulkWriter on a pgx pool.
type PgxBulk struct {
	pool *pgxpool.Pool
}

// NewPgxBulk wraps pool.
func NewPgxBulk(pool *pgxpool.Pool) *PgxBulk {
	return &PgxBulk{pool: pool}
}

func (b *PgxBulk) copy(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin copy %s: %w", table, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy %s: %w", table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit copy %s: %w", table, err)
	}
	committed = true
	return n, nil
}

func numeric(s string) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{}
	}
	return n
}

// CopyExceptions bulk-inserts exception records.
func (b *PgxBulk) CopyExceptions(ctx context.Context, runID uuid.UUID, exceptions []model.Exception) (int64, error) {
	rows := make([][]any, 0, len(exceptions))
	for _, e := range exceptions {
		status := e.CorrectionStatus
		if status == "" {
			status = model.CorrectionPending
		}
		rows = append(rows, []any{
			runID, e.Department, e.SubDepartment, e.CreatedUser, e.Reason, int32(e.Severity),
			numeric(e.NetAmount.StringFixed(2)), json.RawMessage(e.OriginalRowData), status,
		})
	}
	return b.copy(ctx, "exceptions", []string{
		"run_id", "department", "sub_department", "created_user", "exception_reason", "severity",
		"net_amount", "original_row_data", "correction_status",
	}, rows)
}

// CopyUserPerformance bulk-inserts per-user totals.
func (b *PgxBulk) CopyUserPerformance(ctx context.Context, runID uuid.UUID, perf []model.UserPerformance) (int64, error) {
	rows := make([][]any, 0, len(perf))
	for _, p := range perf {
		rows = append(rows, []any{
			runID, p.User, int32(p.TotalRecords), int32(p.ExceptionRecords),
			numeric(fmt.Sprintf("%.2f", p.ExceptionRate)),
		})
	}
	return b.copy(ctx, "user_performance", []string{
		"run_id", "user", "total_records", "exception_records", "exception_rate",
	}, rows)
}

// CopySuspicious bulk-inserts review-queue entries.
func (b *PgxBulk) CopySuspicious(ctx context.Context, entries []model.SuspiciousEntry) (int64, error) {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		status := e.Status
		if status == "" {
			status = model.SuspiciousPending
		}
		rows = append(rows, []any{
			e.RunID, json.RawMessage(e.OriginalRowData), e.CreatedUser, e.MatchedColumn, e.MatchedValue, status,
		})
	}
	return b.copy(ctx, "suspicious_transactions_log", []string{
		"run_id", "original_row_data", "created_user", "matched_column", "matched_value", "status",
	}, rows)
}
