package checksum

import (
	"strings"

	"github.com/shopspring/decimal"

	"ExpenseCertify/internal/model"
	"ExpenseCertify/internal/tabular"
)

// FingerprintKey builds the de-duplication key of a transaction row:
// Document No., Location, Activity and Crop lower-cased, followed by the net
// amount at two decimals, joined with "|".
func FingerprintKey(row tabular.Row) string {
	parts := []string{
		normalize(row, model.FieldDocumentNo),
		normalize(row, model.FieldLocation),
		normalize(row, model.FieldActivity),
		normalize(row, model.FieldCrop),
		FormatAmount(row[model.FieldNetAmount]),
	}
	return strings.Join(parts, "|")
}

// Fingerprint is the stored form of FingerprintKey.
func Fingerprint(row tabular.Row) string {
	return SumString(FingerprintKey(row))
}

// ParseAmount reads a net amount cell. Thousands separators are tolerated.
func ParseAmount(v any) (decimal.Decimal, bool) {
	if IsNullLike(v) {
		return decimal.Zero, false
	}
	if d, ok := v.(decimal.Decimal); ok {
		return d, true
	}
	s := strings.ReplaceAll(tabular.Clean(tabular.ValueString(v)), ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// FormatAmount renders an amount with two decimals. Blank amounts are "0.00";
// unparseable ones keep their lower-cased text.
func FormatAmount(v any) string {
	if IsNullLike(v) {
		return "0.00"
	}
	if d, ok := ParseAmount(v); ok {
		return d.StringFixed(2)
	}
	return strings.ToLower(tabular.Clean(tabular.ValueString(v)))
}

func normalize(row tabular.Row, field string) string {
	v := row[field]
	if IsNullLike(v) {
		return ""
	}
	return strings.ToLower(tabular.Clean(tabular.ValueString(v)))
}
