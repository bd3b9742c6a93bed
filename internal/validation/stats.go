package validation

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"ExpenseCertify/internal/model"
	"ExpenseCertify/internal/tabular"
)

// Rate is exceptions as a percentage of total, rounded to two decimals.
func Rate(exceptions, total int) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(exceptions)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2).
		InexactFloat64()
}

func countBy(rows []tabular.Row, field string) map[string]int {
	out := make(map[string]int)
	for _, r := range rows {
		out[Raw(r, field)]++
	}
	return out
}

// DepartmentStats counts rows and exceptions per department. Departments
// appear in name order.
func DepartmentStats(rows, exceptions []tabular.Row) []model.DepartmentStat {
	totals := countBy(rows, model.FieldDepartment)
	errs := countBy(exceptions, model.FieldDepartment)

	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	for name := range errs {
		if _, ok := totals[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]model.DepartmentStat, 0, len(names))
	for _, name := range names {
		out = append(out, model.DepartmentStat{
			Department:       name,
			TotalRecords:     totals[name],
			ExceptionRecords: errs[name],
			ExceptionRate:    Rate(errs[name], totals[name]),
		})
	}
	return out
}

// UserPerformance outer-joins per-user totals with per-user exception counts:
// a user with rows but no exceptions gets a zero-exception entry. Users are
// grouped case-insensitively and reported under the first spelling seen.
func UserPerformance(rows, exceptions []tabular.Row) []model.UserPerformance {
	type tally struct {
		name        string
		total, errs int
	}
	byUser := map[string]*tally{}
	order := []string{}
	get := func(r tabular.Row) *tally {
		name := Raw(r, model.FieldCreatedUser)
		key := strings.ToLower(name)
		t, ok := byUser[key]
		if !ok {
			t = &tally{name: name}
			byUser[key] = t
			order = append(order, key)
		}
		return t
	}
	for _, r := range rows {
		get(r).total++
	}
	for _, r := range exceptions {
		get(r).errs++
	}
	sort.Strings(order)

	out := make([]model.UserPerformance, 0, len(order))
	for _, key := range order {
		t := byUser[key]
		out = append(out, model.UserPerformance{
			User:             t.name,
			TotalRecords:     t.total,
			ExceptionRecords: t.errs,
			ExceptionRate:    Rate(t.errs, t.total),
		})
	}
	return out
}
