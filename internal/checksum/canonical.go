package checksum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ExpenseCertify/internal/tabular"
)

var nullLike = map[string]struct{}{
	"":     {},
	"nan":  {},
	"none": {},
	"null": {},
	"nat":  {},
	"n/a":  {},
	"na":   {},
	"<na>": {},
}

// IsNullLike reports whether a cell value serialises as JSON null.
func IsNullLike(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		_, ok := nullLike[strings.ToLower(tabular.Clean(t))]
		return ok
	case float64:
		return math.IsNaN(t) || math.IsInf(t, 0)
	case float32:
		return math.IsNaN(float64(t)) || math.IsInf(float64(t), 0)
	case time.Time:
		return t.IsZero()
	}
	return false
}

// CanonicalJSON serialises a row with keys in sorted order. Null-like values
// become null, decimals and floats become JSON numbers and times become
// RFC 3339 strings. The same logical row always yields the same bytes, whether
// it came from a freshly read file or from JSON stored by an earlier run.
func CanonicalJSON(row tabular.Row) ([]byte, error) {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeValue(&buf, row[k]); err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Recanonicalize decodes stored row JSON and re-serialises it canonically.
func Recanonicalize(stored []byte) ([]byte, tabular.Row, error) {
	row, err := DecodeRow(stored)
	if err != nil {
		return nil, nil, err
	}
	out, err := CanonicalJSON(row)
	return out, row, err
}

// DecodeRow parses stored row JSON, keeping numbers as json.Number.
func DecodeRow(stored []byte) (tabular.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(stored))
	dec.UseNumber()
	var row tabular.Row
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	if row == nil {
		row = tabular.Row{}
	}
	return row, nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	if IsNullLike(v) {
		buf.WriteString("null")
		return nil
	}
	switch t := v.(type) {
	case string:
		return writeString(buf, t)
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case int:
		buf.WriteString(strconv.Itoa(t))
	case int64:
		buf.WriteString(strconv.FormatInt(t, 10))
	case float64:
		buf.WriteString(strconv.FormatFloat(t, 'f', -1, 64))
	case float32:
		buf.WriteString(strconv.FormatFloat(float64(t), 'f', -1, 32))
	case decimal.Decimal:
		buf.WriteString(t.String())
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", t, err)
		}
		buf.WriteString(d.String())
	case time.Time:
		return writeString(buf, t.UTC().Format(time.RFC3339))
	default:
		return writeString(buf, tabular.ValueString(t))
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
