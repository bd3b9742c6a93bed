package validation

import (
	"strings"

	"ExpenseCertify/internal/model"
	"ExpenseCertify/internal/tabular"
)

// blankTokens are the ERP placeholders that mean "no value".
var blankTokens = map[string]struct{}{
	"N/A":  {},
	"NULL": {},
	"NONE": {},
	"NA":   {},
	"0":    {},
	"-":    {},
}

// IsBlank reports whether s carries no value: empty after cleaning or one of
// the placeholder tokens.
func IsBlank(s string) bool {
	c := tabular.Clean(s)
	if c == "" {
		return true
	}
	_, ok := blankTokens[strings.ToUpper(c)]
	return ok
}

// Value returns the cleaned field, "" when the field is blank.
func Value(row tabular.Row, field string) string {
	c := tabular.Clean(row.Str(field))
	if IsBlank(c) {
		return ""
	}
	return c
}

// Raw returns the cleaned field without placeholder folding.
func Raw(row tabular.Row, field string) string {
	return tabular.Clean(row.Str(field))
}

// startsZZ flags ERP dummy codes.
func startsZZ(s string) bool {
	return strings.HasPrefix(strings.ToUpper(s), "ZZ")
}

// reasonSet accumulates reasons, collapsing duplicates.
type reasonSet map[string]struct{}

func (r reasonSet) add(reason string) {
	r[reason] = struct{}{}
}

// JoinReasons renders reasons the way they are stored and displayed.
func JoinReasons(reasons []string) string {
	return strings.Join(reasons, model.ReasonSeparator)
}

// SplitReasons is the inverse of JoinReasons.
func SplitReasons(s string) []string {
	var out []string
	for _, part := range strings.Split(s, model.ReasonSeparator) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
