package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ExpenseCertify/internal/model"
	"ExpenseCertify/internal/tabular"
)

func sampleTable() *tabular.Table {
	good := validSalesBrand()
	good[model.FieldCreatedUser] = "alice"
	bad := validSalesBrand()
	bad[model.FieldLocation] = ""
	bad[model.FieldCreatedUser] = "bob"
	fin := tabular.Row{
		model.FieldDepartment:    "Finance & Account",
		model.FieldSubDepartment: "N/A",
		model.FieldFunction:      "Support Functions",
		model.FieldVertical:      "Common",
		model.FieldLocation:      "HQ",
		model.FieldAccount2:      "A2",
		model.FieldSubLedger:     "S9",
		model.FieldCreatedUser:   "Alice",
	}
	cols := []string{
		model.FieldDepartment, model.FieldSubDepartment, model.FieldFunction, model.FieldVertical,
		model.FieldCrop, model.FieldLocation, model.FieldActivity, model.FieldZone, model.FieldRegion,
		model.FieldBusinessUnit, model.FieldAccount2, model.FieldSubLedger, model.FieldCreatedUser,
	}
	return &tabular.Table{Columns: cols, Rows: []tabular.Row{good, bad, fin, validSalesBrand()}}
}

func TestValidateTablePartitionsRows(t *testing.T) {
	tbl := sampleTable()
	d := NewDispatcher(New(testBundle()), 3)

	res, err := d.ValidateTable(context.Background(), tbl)
	require.NoError(t, err)
	assert.Empty(t, res.FailedChunks)
	require.Equal(t, 2, res.Exceptions.Len())
	assert.Equal(t, 2, res.Clean.Len())
	assert.Len(t, res.Processed, 4)

	cols := res.Exceptions.Columns
	assert.Equal(t, model.FieldExceptionReasons, cols[len(cols)-2])
	assert.Equal(t, model.FieldSeverity, cols[len(cols)-1])

	first := res.Exceptions.Rows[0]
	assert.Equal(t, ReasonLocation, first[model.FieldExceptionReasons])
	assert.Equal(t, 2, first[model.FieldSeverity])
	assert.Equal(t, ReasonLedger, res.Exceptions.Rows[1][model.FieldExceptionReasons])

	// source rows are not decorated
	_, decorated := tbl.Rows[1][model.FieldExceptionReasons]
	assert.False(t, decorated)
	assert.Equal(t, "", tbl.Rows[2][model.FieldSubDepartment])

	require.Len(t, res.Stats, 2)
	assert.Equal(t, model.DepartmentStat{Department: "Finance & Account", TotalRecords: 1, ExceptionRecords: 1, ExceptionRate: 100}, res.Stats[0])
	assert.Equal(t, model.DepartmentStat{Department: "Sales", TotalRecords: 3, ExceptionRecords: 1, ExceptionRate: 33.33}, res.Stats[1])
}

func TestValidateTableCreatesSubDepartment(t *testing.T) {
	tbl := &tabular.Table{
		Columns: []string{model.FieldDepartment, model.FieldLocation},
		Rows:    []tabular.Row{{model.FieldDepartment: "Legal", model.FieldLocation: "HQ"}},
	}
	_, err := NewDispatcher(New(testBundle()), 1).ValidateTable(context.Background(), tbl)
	require.NoError(t, err)
	assert.True(t, tbl.HasColumn(model.FieldSubDepartment))
}

func TestValidateTableRequiresDepartment(t *testing.T) {
	tbl := &tabular.Table{Columns: []string{"Other"}, Rows: []tabular.Row{{"Other": "x"}}}
	_, err := NewDispatcher(New(testBundle()), 2).ValidateTable(context.Background(), tbl)
	assert.ErrorIs(t, err, ErrMissingColumns)
}

func TestFailedChunkIsSkipped(t *testing.T) {
	tbl := sampleTable()
	d := NewDispatcher(New(testBundle()), 4)
	inner := d.check
	d.check = func(department string, row tabular.Row) Verdict {
		if Raw(row, model.FieldCreatedUser) == "bob" {
			panic("corrupt row")
		}
		return inner(department, row)
	}

	res, err := d.ValidateTable(context.Background(), tbl)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.FailedChunks)
	assert.Len(t, res.Processed, 3)
	assert.Equal(t, 1, res.Exceptions.Len())
	assert.Equal(t, 2, res.Clean.Len())
}

func TestValidateTableCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDispatcher(New(testBundle()), 2).ValidateTable(ctx, sampleTable())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChunkBounds(t *testing.T) {
	assert.Nil(t, chunkBounds(0, 4))
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, chunkBounds(2, 8))
	assert.Equal(t, [][2]int{{0, 4}, {4, 8}, {8, 10}}, chunkBounds(10, 3))
	assert.Len(t, chunkBounds(10, 0), 4)
}

func TestUserPerformanceOuterJoin(t *testing.T) {
	rows := []tabular.Row{
		{model.FieldCreatedUser: "alice"},
		{model.FieldCreatedUser: "Alice"},
		{model.FieldCreatedUser: "bob"},
	}
	exceptions := []tabular.Row{{model.FieldCreatedUser: "ALICE"}}

	got := UserPerformance(rows, exceptions)
	require.Len(t, got, 2)
	assert.Equal(t, model.UserPerformance{User: "alice", TotalRecords: 2, ExceptionRecords: 1, ExceptionRate: 50}, got[0])
	assert.Equal(t, model.UserPerformance{User: "bob", TotalRecords: 1, ExceptionRecords: 0, ExceptionRate: 0}, got[1])
}

func TestRate(t *testing.T) {
	assert.Equal(t, 0.0, Rate(0, 0))
	assert.Equal(t, 66.67, Rate(2, 3))
}
