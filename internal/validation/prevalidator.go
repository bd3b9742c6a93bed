package validation

import (
	"errors"
	"fmt"
	"strings"

	"ExpenseCertify/internal/model"
	"ExpenseCertify/internal/tabular"
)

// ErrMissingColumns is returned when a table lacks columns the engine needs.
var ErrMissingColumns = errors.New("missing required columns")

// MissingColumnsError names the absent columns.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingColumns, strings.Join(e.Columns, ", "))
}

func (e *MissingColumnsError) Unwrap() error { return ErrMissingColumns }

// RequireColumns fails with a MissingColumnsError when any column is absent.
func RequireColumns(t *tabular.Table, columns ...string) error {
	if missing := t.MissingColumns(columns...); len(missing) > 0 {
		return &MissingColumnsError{Columns: missing}
	}
	return nil
}

// PreValidate checks the columns a run needs after the identity filter.
func PreValidate(t *tabular.Table) error {
	return RequireColumns(t, model.RequiredRunColumns...)
}

// NormalizeSubDepartment folds placeholder tokens in Sub Department.Name to
// "" and creates the column when the export omits it.
func NormalizeSubDepartment(t *tabular.Table) {
	if !t.HasColumn(model.FieldSubDepartment) {
		t.EnsureColumn(model.FieldSubDepartment)
		for _, r := range t.Rows {
			r[model.FieldSubDepartment] = ""
		}
		return
	}
	for _, r := range t.Rows {
		r[model.FieldSubDepartment] = Value(r, model.FieldSubDepartment)
	}
}
