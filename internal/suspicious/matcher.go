package suspicious

import (
	"strings"

	"github.com/google/uuid"

	"ExpenseCertify/internal/checksum"
	"ExpenseCertify/internal/model"
	"ExpenseCertify/internal/refdata"
	"ExpenseCertify/internal/tabular"
)

// Hit identifies the rule that flagged a row.
type Hit struct {
	SubDepartment string
	Column        string
	Value         string
}

type compiled struct {
	column string
	values map[string]struct{}
}

// Matcher routes rows to the review queue. It is read-only once built.
type Matcher struct {
	bySub    map[string][]compiled
	immunity *refdata.ImmunitySet
}

// NewMatcher compiles rules. Rules keep their order within a sub-department,
// so the first matching rule wins.
func NewMatcher(rules []model.SuspiciousRule, immunity *refdata.ImmunitySet) *Matcher {
	m := &Matcher{bySub: map[string][]compiled{}, immunity: immunity}
	for _, r := range rules {
		c := compiled{column: strings.TrimSpace(r.Column), values: map[string]struct{}{}}
		for _, v := range r.Values {
			if n := normalize(v); n != "" {
				c.values[n] = struct{}{}
			}
		}
		if c.column == "" || len(c.values) == 0 {
			continue
		}
		sub := strings.TrimSpace(r.SubDepartment)
		m.bySub[sub] = append(m.bySub[sub], c)
	}
	return m
}

func normalize(s string) string {
	return strings.ToLower(tabular.Clean(s))
}

// Immune reports whether the row's ledger pair is on the immunity list.
func (m *Matcher) Immune(row tabular.Row) bool {
	return m.immunity.Contains(
		tabular.Clean(row.Str(model.FieldAccount2)),
		tabular.Clean(row.Str(model.FieldSubLedger)),
	)
}

// Match reports the first rule of the row's sub-department whose column holds
// one of the rule's values, compared case-insensitively.
func (m *Matcher) Match(row tabular.Row) (Hit, bool) {
	sub := tabular.Clean(row.Str(model.FieldSubDepartment))
	rules := m.bySub[sub]
	if len(rules) == 0 || m.Immune(row) {
		return Hit{}, false
	}
	for _, r := range rules {
		raw := tabular.Clean(row.Str(r.column))
		v := strings.ToLower(raw)
		if v == "" {
			continue
		}
		if _, ok := r.values[v]; ok {
			return Hit{SubDepartment: sub, Column: r.column, Value: raw}, true
		}
	}
	return Hit{}, false
}

// Sweep matches every row and builds the log entries for runID, one per
// matched row.
func (m *Matcher) Sweep(runID uuid.UUID, rows []tabular.Row) ([]model.SuspiciousEntry, error) {
	var out []model.SuspiciousEntry
	for _, row := range rows {
		hit, ok := m.Match(row)
		if !ok {
			continue
		}
		data, err := checksum.CanonicalJSON(row)
		if err != nil {
			return nil, err
		}
		out = append(out, model.SuspiciousEntry{
			RunID:           runID,
			OriginalRowData: data,
			CreatedUser:     tabular.Clean(row.Str(model.FieldCreatedUser)),
			MatchedColumn:   hit.Column,
			MatchedValue:    hit.Value,
			Status:          model.SuspiciousPending,
		})
	}
	return out, nil
}

// CanTransition reports whether a review-queue entry may move from one status
// to another.
func CanTransition(from, to string) bool {
	return model.CheckSuspicious(from, to) == nil
}
