package validation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ExpenseCertify/internal/config"
	"ExpenseCertify/internal/logger"
	"ExpenseCertify/internal/model"
	"ExpenseCertify/internal/tabular"
)

// TableResult is the outcome of validating a whole table.
type TableResult struct {
	// Exceptions keeps the input columns followed by Exception Reasons and
	// Severity.
	Exceptions *tabular.Table
	// Clean holds the rows that passed, in input order.
	Clean *tabular.Table
	// Processed is every row of the chunks that completed.
	Processed    []tabular.Row
	Stats        []model.DepartmentStat
	FailedChunks []int
}

// Dispatcher fans row validation out over a fixed number of chunks.
type Dispatcher struct {
	workers int
	check   func(department string, row tabular.Row) Verdict
}

// NewDispatcher creates a dispatcher. workers <= 0 means one per CPU.
func NewDispatcher(v *Validator, workers int) *Dispatcher {
	if workers <= 0 {
		workers = config.Workers()
	}
	return &Dispatcher{workers: workers, check: v.Validate}
}

type chunkResult struct {
	exceptions []tabular.Row
	clean      []tabular.Row
	failed     bool
}

// ValidateTable validates every row of t. Sub Department.Name is normalised in
// place first. A chunk that fails is logged and left out of every output; the
// call itself only fails on a missing Department.Name column or a cancelled
// context.
func (d *Dispatcher) ValidateTable(ctx context.Context, t *tabular.Table) (*TableResult, error) {
	if err := RequireColumns(t, model.FieldDepartment); err != nil {
		return nil, err
	}
	NormalizeSubDepartment(t)

	bounds := chunkBounds(t.Len(), d.workers)
	results := make([]chunkResult, len(bounds))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range bounds {
		rows := t.Rows[b[0]:b[1]]
		g.Go(func() error {
			results[i] = d.runChunk(gctx, i, rows)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("validate table: %w", err)
	}

	columns := append(append([]string(nil), t.Columns...), model.FieldExceptionReasons, model.FieldSeverity)
	res := &TableResult{
		Exceptions: &tabular.Table{Columns: columns},
		Clean:      &tabular.Table{Columns: append([]string(nil), t.Columns...)},
	}
	for i, r := range results {
		if r.failed {
			res.FailedChunks = append(res.FailedChunks, i)
			continue
		}
		res.Exceptions.Rows = append(res.Exceptions.Rows, r.exceptions...)
		res.Clean.Rows = append(res.Clean.Rows, r.clean...)
		res.Processed = append(res.Processed, t.Rows[bounds[i][0]:bounds[i][1]]...)
	}
	res.Stats = DepartmentStats(res.Processed, res.Exceptions.Rows)
	return res, nil
}

func (d *Dispatcher) runChunk(ctx context.Context, id int, rows []tabular.Row) (out chunkResult) {
	log := logger.Component("dispatcher").WithFields(logrus.Fields{"chunk": id, "rows": len(rows)})
	defer func() {
		if p := recover(); p != nil {
			log.WithField("panic", p).Error("validation chunk failed, skipping")
			out = chunkResult{failed: true}
		}
	}()

	for n, row := range rows {
		if n%256 == 0 && ctx.Err() != nil {
			log.WithError(ctx.Err()).Warn("validation chunk cancelled")
			return chunkResult{failed: true}
		}
		v := d.check(Raw(row, model.FieldDepartment), row)
		if v.OK() {
			out.clean = append(out.clean, row)
			continue
		}
		rec := row.Clone()
		rec[model.FieldExceptionReasons] = JoinReasons(v.Reasons)
		rec[model.FieldSeverity] = v.Severity
		out.exceptions = append(out.exceptions, rec)
	}
	log.WithField("exceptions", len(out.exceptions)).Debug("validation chunk done")
	return out
}

// chunkBounds splits n rows into at most parts contiguous [lo, hi) ranges.
func chunkBounds(n, parts int) [][2]int {
	if n == 0 {
		return nil
	}
	if parts <= 0 {
		parts = config.FallbackWorkers
	}
	if parts > n {
		parts = n
	}
	size := (n + parts - 1) / parts
	out := make([][2]int, 0, parts)
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		out = append(out, [2]int{lo, hi})
	}
	return out
}
