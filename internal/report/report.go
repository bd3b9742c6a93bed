package report

import (
	"encoding/json"
	"fmt"
	"time"

	"ExpenseCertify/internal/model"
	"ExpenseCertify/internal/tabular"
)

// Sheet names of the archived run report.
const (
	SheetSummary     = "Summary"
	SheetExceptions  = "Exceptions"
	SheetDepartments = "Department Summary"
	SheetUsers       = "User Performance"
	SheetSuspicious  = "Suspicious"
)

// RunReport is everything rendered into the workbook archived with a run.
type RunReport struct {
	Run        model.Run
	Exceptions *tabular.Table
	Stats      []model.DepartmentStat
	Users      []model.UserPerformance
	Suspicious []model.SuspiciousEntry
	Warnings   []string
	Failed     []int
}

type sheet struct {
	name string
	cols []string
	rows [][]any
}

// Build renders the report workbook.
func Build(r RunReport) ([]byte, error) {
	wb, err := tabular.NewWorkbook()
	if err != nil {
		return nil, fmt.Errorf("new workbook: %w", err)
	}

	steps := []sheet{
		{SheetSummary, []string{"Field", "Value"}, summaryRows(r)},
		exceptionsSheet(r.Exceptions),
		{SheetDepartments, []string{"Department", "Total Records", "Exception Records", "Exception Rate (%)"}, departmentRows(r.Stats)},
		{SheetUsers, []string{"User", "Total Records", "Exception Records", "Exception Rate (%)"}, userRows(r.Users)},
		{SheetSuspicious, []string{"Created user", "Matched Column", "Matched Value", "Status", "Row"}, suspiciousRows(r.Suspicious)},
	}
	for _, s := range steps {
		if err := wb.AddSheet(s.name, s.cols, s.rows); err != nil {
			_, _ = wb.Bytes()
			return nil, fmt.Errorf("sheet %s: %w", s.name, err)
		}
	}
	return wb.Bytes()
}

func summaryRows(r RunReport) [][]any {
	rows := [][]any{
		{"Run ID", r.Run.ID.String()},
		{"File", r.Run.Filename},
		{"Uploaded By", r.Run.UploadedBy},
		{"Upload Time", r.Run.UploadTime.Format(time.RFC3339)},
		{"Total Records", r.Run.TotalRecords},
		{"Total Exceptions", r.Run.TotalExceptions},
		{"Suspicious Entries", len(r.Suspicious)},
		{"File Size (bytes)", r.Run.FileSize},
	}
	if len(r.Failed) > 0 {
		rows = append(rows, []any{"Skipped Chunks", fmt.Sprint(r.Failed)})
	}
	for _, w := range r.Warnings {
		rows = append(rows, []any{"Reference Warning", w})
	}
	return rows
}

func exceptionsSheet(t *tabular.Table) sheet {
	out := sheet{name: SheetExceptions}
	if t == nil {
		out.cols = []string{model.FieldExceptionReasons, model.FieldSeverity}
		return out
	}
	out.cols = t.Columns
	for _, row := range t.Rows {
		cells := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			if c == model.FieldSeverity {
				cells[i] = row[c]
				continue
			}
			cells[i] = tabular.ValueString(row[c])
		}
		out.rows = append(out.rows, cells)
	}
	return out
}

func departmentRows(stats []model.DepartmentStat) [][]any {
	rows := make([][]any, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []any{s.Department, s.TotalRecords, s.ExceptionRecords, s.ExceptionRate})
	}
	return rows
}

func userRows(users []model.UserPerformance) [][]any {
	rows := make([][]any, 0, len(users))
	for _, u := range users {
		rows = append(rows, []any{u.User, u.TotalRecords, u.ExceptionRecords, u.ExceptionRate})
	}
	return rows
}

func suspiciousRows(entries []model.SuspiciousEntry) [][]any {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{e.CreatedUser, e.MatchedColumn, e.MatchedValue, e.Status, compact(e.OriginalRowData)})
	}
	return rows
}

func compact(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	return string(raw)
}
