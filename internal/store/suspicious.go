package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ExpenseCertify/internal/model"
)

// Rules returns every suspicious rule in creation order.
func (s *Store) Rules(ctx context.Context) ([]model.SuspiciousRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sub_department, rule_column, rule_values FROM suspicious_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	defer rows.Close()

	out := []model.SuspiciousRule{}
	for rows.Next() {
		var (
			r   model.SuspiciousRule
			raw []byte
		)
		if err := rows.Scan(&r.ID, &r.SubDepartment, &r.Column, &raw); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		if err := json.Unmarshal(raw, &r.Values); err != nil {
			return nil, fmt.Errorf("rule %d values: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertRule creates or replaces the value set of (sub_department, column).
func (s *Store) UpsertRule(ctx context.Context, r model.SuspiciousRule) (model.SuspiciousRule, error) {
	r.SubDepartment = strings.TrimSpace(r.SubDepartment)
	r.Column = strings.TrimSpace(r.Column)
	if r.Values == nil {
		r.Values = []string{}
	}
	values, err := json.Marshal(r.Values)
	if err != nil {
		return r, err
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO suspicious_rules (sub_department, rule_column, rule_values)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (sub_department, rule_column) DO UPDATE SET rule_values = EXCLUDED.rule_values
		RETURNING id`,
		r.SubDepartment, r.Column, string(values),
	).Scan(&r.ID)
	if err != nil {
		return r, fmt.Errorf("upsert rule: %w", err)
	}
	return r, nil
}

// DeleteRule removes the rule for (sub_department, column).
func (s *Store) DeleteRule(ctx context.Context, subDepartment, column string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM suspicious_rules WHERE sub_department = $1 AND rule_column = $2`,
		strings.TrimSpace(subDepartment), strings.TrimSpace(column))
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return expectOne(res)
}

// ListOptions returns the curator value palette, optionally for one column.
func (s *Store) ListOptions(ctx context.Context, column string) ([]model.SuspiciousOption, error) {
	query := `SELECT id, rule_column, option_value FROM suspicious_rule_options`
	args := []any{}
	if column = strings.TrimSpace(column); column != "" {
		query += ` WHERE rule_column = $1`
		args = append(args, column)
	}
	query += ` ORDER BY rule_column, option_value`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	defer rows.Close()

	out := []model.SuspiciousOption{}
	for rows.Next() {
		var o model.SuspiciousOption
		if err := rows.Scan(&o.ID, &o.Column, &o.Value); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// AddOption adds a value to the palette; an existing pair is returned as is.
func (s *Store) AddOption(ctx context.Context, column, value string) (model.SuspiciousOption, error) {
	o := model.SuspiciousOption{Column: strings.TrimSpace(column), Value: strings.TrimSpace(value)}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO suspicious_rule_options (rule_column, option_value)
		VALUES ($1, $2)
		ON CONFLICT (rule_column, option_value) DO UPDATE SET option_value = EXCLUDED.option_value
		RETURNING id`,
		o.Column, o.Value,
	).Scan(&o.ID)
	if err != nil {
		return o, fmt.Errorf("add option: %w", err)
	}
	return o, nil
}

// DeleteOption removes a palette value.
func (s *Store) DeleteOption(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM suspicious_rule_options WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete option: %w", err)
	}
	return expectOne(res)
}

// PersistSuspicious appends entries to the review queue.
func (s *Store) PersistSuspicious(ctx context.Context, entries []model.SuspiciousEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if s.bulk != nil {
		_, err := s.bulk.CopySuspicious(ctx, entries)
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entries {
			status := e.Status
			if status == "" {
				status = model.SuspiciousPending
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO suspicious_transactions_log
					(run_id, original_row_data, created_user, matched_column, matched_value, status)
				VALUES ($1, $2::jsonb, $3, $4, $5, $6)`,
				e.RunID, string(e.OriginalRowData), e.CreatedUser, e.MatchedColumn, e.MatchedValue, status,
			); err != nil {
				return fmt.Errorf("persist suspicious: %w", err)
			}
		}
		return nil
	})
}

// SuspiciousFilter narrows ListSuspicious. Zero values match everything.
type SuspiciousFilter struct {
	RunID  uuid.UUID
	Status string
	User   string
}

// ListSuspicious returns review-queue entries, newest first.
func (s *Store) ListSuspicious(ctx context.Context, f SuspiciousFilter) ([]model.SuspiciousEntry, error) {
	var (
		conds []string
		args  []any
	)
	if f.RunID != uuid.Nil {
		args = append(args, f.RunID)
		conds = append(conds, fmt.Sprintf("run_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.User != "" {
		args = append(args, f.User)
		conds = append(conds, fmt.Sprintf("LOWER(created_user) = LOWER($%d)", len(args)))
	}
	query := `SELECT id, run_id, original_row_data, created_user, matched_column, matched_value, status,
		COALESCE(admin_comment, ''), COALESCE(reviewed_by, '') FROM suspicious_transactions_log`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list suspicious: %w", err)
	}
	defer rows.Close()

	out := []model.SuspiciousEntry{}
	for rows.Next() {
		var (
			e   model.SuspiciousEntry
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.RunID, &raw, &e.CreatedUser, &e.MatchedColumn, &e.MatchedValue,
			&e.Status, &e.AdminComment, &e.ReviewedBy); err != nil {
			return nil, fmt.Errorf("scan suspicious: %w", err)
		}
		e.OriginalRowData = raw
		out = append(out, e)
	}
	return out, rows.Err()
}

// ReviewSuspicious applies a review-queue transition.
func (s *Store) ReviewSuspicious(ctx context.Context, id int64, status, comment, reviewer string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM suspicious_transactions_log WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load suspicious status: %w", err)
		}
		if err := model.CheckSuspicious(current, status); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE suspicious_transactions_log
			SET status = $2, admin_comment = COALESCE($3, admin_comment), reviewed_by = $4, reviewed_at = now()
			WHERE id = $1`,
			id, status, nullString(comment), nullString(reviewer),
		); err != nil {
			return fmt.Errorf("review suspicious: %w", err)
		}
		return nil
	})
}
