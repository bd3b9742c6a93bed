package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSVSkipsBannerAndFooter(t *testing.T) {
	data := []byte("\xef\xbb\xbfCompany Ltd\nExpense export\nPeriod\nFrom,To\n2026-01-01,2026-01-31\n" +
		" Department.Name , Created user ,Net amount\n" +
		"Sales,alice,100.5\n" +
		",,\n" +
		"Finance & Account,bob,20\n" +
		"Total,,120.5\n\n")

	tbl, err := Read("export.csv", data, Options{SkipHeadRows: 5, SkipTailRows: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"Department.Name", "Created user", "Net amount"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "Sales", tbl.Rows[0].Str("Department.Name"))
	assert.Equal(t, "bob", tbl.Rows[1].Str("Created user"))
}

func TestReadXLSXRoundTrip(t *testing.T) {
	data, err := WriteXLSX("Sheet1", []string{"Account2.Code", "Sub Ledger.Code"}, [][]string{
		{"A1", "S1"},
		{"A2", ""},
	})
	require.NoError(t, err)

	tbl, err := Read("ledger.xlsx", data, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Account2.Code", "Sub Ledger.Code"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "S1", tbl.Rows[0].Str("Sub Ledger.Code"))
	assert.Equal(t, "", tbl.Rows[1].Str("Sub Ledger.Code"))
}

func TestReadUnknownExtensionFallsBackToXLSX(t *testing.T) {
	data, err := WriteXLSX("Data", []string{"Crop.Name"}, [][]string{{"Maize"}})
	require.NoError(t, err)

	tbl, err := Read("upload", data, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Maize"}, tbl.Column("Crop.Name"))
}

func TestReadEmpty(t *testing.T) {
	_, err := Read("empty.csv", []byte("   \n"), Options{})
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Read("short.csv", []byte("a\nb\n"), Options{SkipHeadRows: 5})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestHeaderNames(t *testing.T) {
	got := headerNames([]string{" Name ", "", "Name", "Value", "", ""})
	assert.Equal(t, []string{"Name", "Unnamed: 1", "Name.1", "Value"}, got)
}

func TestTableHelpers(t *testing.T) {
	tbl := &Table{
		Columns: []string{"A"},
		Rows:    []Row{{"A": " x "}, {"A": "y"}, {"A": "x"}, {"A": nil}},
	}
	assert.Equal(t, []string{"x", "y"}, tbl.Column("A"))
	assert.Equal(t, []string{"B"}, tbl.MissingColumns("A", "B"))

	tbl.EnsureColumn("B")
	tbl.EnsureColumn("B")
	assert.Equal(t, []string{"A", "B"}, tbl.Columns)

	only := tbl.Filter(func(r Row) bool { return r.Str("A") == "y" })
	assert.Equal(t, 1, only.Len())
	assert.Equal(t, 4, tbl.Len())
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "12.5", ValueString(12.5))
	assert.Equal(t, "", ValueString(nil))
	assert.Equal(t, "true", ValueString(true))
	assert.Equal(t, "42", ValueString(int64(42)))
}

func TestClean(t *testing.T) {
	assert.Equal(t, "Sales", Clean("\u00a0Sales\u200b "))
	assert.Equal(t, "", Clean("\ufeff\u200b\u00a0"))
	assert.Equal(t, "a b", Clean("a\u00a0b"))
}
