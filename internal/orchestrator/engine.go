package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ExpenseCertify/internal/checksum"
	"ExpenseCertify/internal/config"
	"ExpenseCertify/internal/logger"
	"ExpenseCertify/internal/model"
	"ExpenseCertify/internal/refdata"
	"ExpenseCertify/internal/report"
	"ExpenseCertify/internal/runlock"
	"ExpenseCertify/internal/suspicious"
	"ExpenseCertify/internal/tabular"
	"ExpenseCertify/internal/validation"
)

// Repository is the persistence the engine composes. store.Store satisfies it.
type Repository interface {
	ContainsAny(ctx context.Context, fingerprints []string) (map[string]struct{}, error)
	AcceptedAmong(ctx context.Context, combined []string) (map[string]struct{}, error)
	Rules(ctx context.Context) ([]model.SuspiciousRule, error)

	CreateRun(ctx context.Context, run model.Run) error
	PersistExceptions(ctx context.Context, runID uuid.UUID, exceptions []model.Exception) error
	PersistDepartmentSummary(ctx context.Context, runID uuid.UUID, stats []model.DepartmentStat) error
	PersistUserPerformance(ctx context.Context, runID uuid.UUID, perf []model.UserPerformance) error
	PersistFingerprints(ctx context.Context, runID uuid.UUID, fingerprints []string) (int64, error)
	PersistSuspicious(ctx context.Context, entries []model.SuspiciousEntry) error
	PersistReport(ctx context.Context, runID uuid.UUID, report []byte) error

	MarkAccepted(ctx context.Context, id int64, reviewer string) (model.AcceptedFingerprint, error)
	RecordAccepted(ctx context.Context, key model.AcceptedFingerprint) error
	SetCorrectionStatus(ctx context.Context, id int64, status, by string) error
	ReviewSuspicious(ctx context.Context, id int64, status, comment, reviewer string) error
	DeleteRun(ctx context.Context, runID uuid.UUID) error
}

// Upload is one file submitted for certification.
type Upload struct {
	Filename   string
	Data       []byte
	UserName   string
	Team       []string
	Role       string
	UploadTime time.Time
}

// RunSummary is what a caller gets back from Run.
type RunSummary struct {
	RunID              uuid.UUID              `json:"run_id"`
	Filename           string                 `json:"filename"`
	UploadTime         time.Time              `json:"upload_time"`
	TotalRecords       int                    `json:"total_records"`
	TotalExceptions    int                    `json:"total_exceptions"`
	DuplicatesDropped  int                    `json:"duplicates_dropped"`
	AcceptedSuppressed int                    `json:"accepted_suppressed"`
	SuspiciousLogged   int                    `json:"suspicious_logged"`
	FailedChunks       []int                  `json:"failed_chunks,omitempty"`
	Departments        []model.DepartmentStat `json:"departments"`
	Warnings           []string               `json:"warnings,omitempty"`
}

// Engine runs uploads through validation, de-duplication, acceptance
// suppression and the suspicious sweep, then persists the results.
type Engine struct {
	repo    Repository
	refs    refdata.Source
	lock    runlock.Locker
	workers int
	rules   []validation.DepartmentRule
	now     func() time.Time
	loc     *time.Location
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocker serialises runs across processes.
func WithLocker(l runlock.Locker) Option {
	return func(e *Engine) {
		if l != nil {
			e.lock = l
		}
	}
}

// WithWorkers sets the validation fan-out.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithRules replaces the department rule table.
func WithRules(rules []validation.DepartmentRule) Option {
	return func(e *Engine) { e.rules = rules }
}

// WithClock overrides the time source used for default upload times.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an engine over repo and the reference source.
func NewEngine(repo Repository, refs refdata.Source, opts ...Option) *Engine {
	e := &Engine{
		repo:    repo,
		refs:    refs,
		lock:    runlock.Noop{},
		workers: config.Workers(),
		now:     time.Now,
		loc:     config.Location(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run certifies one upload and returns the new run's summary. Input defects
// come back as *InputError and leave no trace in the store. A failure after
// the run record exists leaves a partial run that DeleteRun removes.
func (e *Engine) Run(ctx context.Context, up Upload) (RunSummary, error) {
	log := logger.Component("orchestrator").WithFields(logrus.Fields{
		"file": up.Filename,
		"user": up.UserName,
		"role": up.Role,
	})

	t, err := e.prepare(up)
	if err != nil {
		log.WithError(err).Warn("upload rejected")
		return RunSummary{}, err
	}

	bundle, err := e.refs.Bundle()
	if err != nil {
		return RunSummary{}, fmt.Errorf("load reference data: %w", err)
	}

	release, err := e.lock.Acquire(ctx, "runs")
	if err != nil {
		return RunSummary{}, err
	}
	defer release()

	// Runs before validation, so a re-upload drops earlier exception rows too.
	fresh, dropped, err := e.dropHistorical(ctx, t)
	if err != nil {
		return RunSummary{}, err
	}

	validator := validation.New(bundle)
	if e.rules != nil {
		validator = validation.NewWithRules(bundle, e.rules)
	}
	res, err := validation.NewDispatcher(validator, e.workers).ValidateTable(ctx, fresh)
	if err != nil {
		return RunSummary{}, err
	}
	final := res.Processed

	kept, suppressed, err := e.suppressAccepted(ctx, res.Exceptions.Rows)
	if err != nil {
		return RunSummary{}, err
	}

	rules, err := e.repo.Rules(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("load suspicious rules: %w", err)
	}

	uploadTime := up.UploadTime
	if uploadTime.IsZero() {
		uploadTime = e.now().In(e.loc)
	}
	run := model.Run{
		ID:              uuid.New(),
		Filename:        up.Filename,
		UploadTime:      uploadTime,
		TotalRecords:    len(final),
		TotalExceptions: len(kept),
		FileSize:        int64(len(up.Data)),
		FileChecksum:    checksum.Sum(up.Data),
		UploadedBy:      up.UserName,
	}
	log = log.WithField("run_id", run.ID)

	exceptions, err := exceptionRecords(run.ID, kept)
	if err != nil {
		return RunSummary{}, err
	}
	entries, err := suspicious.NewMatcher(rules, bundle.Immunity).Sweep(run.ID, final)
	if err != nil {
		return RunSummary{}, fmt.Errorf("suspicious sweep: %w", err)
	}
	stats := validation.DepartmentStats(final, kept)
	users := validation.UserPerformance(final, kept)

	if err := e.repo.CreateRun(ctx, run); err != nil {
		return RunSummary{}, err
	}
	if err := e.persist(ctx, run.ID, exceptions, stats, users, fingerprints(final), entries); err != nil {
		log.WithError(err).Error("run persisted partially")
		return RunSummary{}, err
	}

	xlsx, err := report.Build(report.RunReport{
		Run:        run,
		Exceptions: res.Exceptions.Derive(kept),
		Stats:      stats,
		Users:      users,
		Suspicious: entries,
		Warnings:   bundle.Warnings(),
		Failed:     res.FailedChunks,
	})
	if err != nil {
		log.WithError(err).Error("report build failed")
	} else if err := e.repo.PersistReport(ctx, run.ID, xlsx); err != nil {
		log.WithError(err).Error("run persisted partially")
		return RunSummary{}, err
	}

	log.WithFields(logrus.Fields{
		"total_records":       run.TotalRecords,
		"total_exceptions":    run.TotalExceptions,
		"duplicates_dropped":  dropped,
		"accepted_suppressed": suppressed,
		"suspicious":          len(entries),
		"failed_chunks":       len(res.FailedChunks),
	}).Info("run complete")

	return RunSummary{
		RunID:              run.ID,
		Filename:           run.Filename,
		UploadTime:         run.UploadTime,
		TotalRecords:       run.TotalRecords,
		TotalExceptions:    run.TotalExceptions,
		DuplicatesDropped:  dropped,
		AcceptedSuppressed: suppressed,
		SuspiciousLogged:   len(entries),
		FailedChunks:       res.FailedChunks,
		Departments:        stats,
		Warnings:           bundle.Warnings(),
	}, nil
}

// prepare parses the upload, applies the identity filter and checks the
// columns the engine needs.
func (e *Engine) prepare(up Upload) (*tabular.Table, error) {
	t, err := tabular.Read(up.Filename, up.Data, tabular.Options{
		SkipHeadRows: config.SourceSkipHeadRows,
		SkipTailRows: config.SourceSkipTailRows,
	})
	switch {
	case errors.Is(err, tabular.ErrEmpty):
		return nil, &InputError{Err: ErrEmptyFile}
	case err != nil:
		return nil, &InputError{Err: fmt.Errorf("%w: %v", ErrUnreadableFile, err)}
	case t.Len() == 0:
		return nil, &InputError{Err: ErrEmptyFile}
	}
	if err := validation.RequireColumns(t, model.FieldCreatedUser); err != nil {
		return nil, &InputError{Err: err}
	}

	t = FilterByIdentity(t, up.UserName, up.Team, up.Role)
	if t.Len() == 0 {
		return nil, &InputError{Err: ErrNoRowsForCaller}
	}
	if err := validation.PreValidate(t); err != nil {
		return nil, &InputError{Err: err}
	}
	return t, nil
}

// dropHistorical removes every row whose fingerprint an earlier run already
// recorded, exceptions included, so a re-upload is never re-validated.
func (e *Engine) dropHistorical(ctx context.Context, t *tabular.Table) (*tabular.Table, int, error) {
	fps := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		fps[i] = checksum.Fingerprint(r)
	}
	seen, err := e.repo.ContainsAny(ctx, unique(fps))
	if err != nil {
		return nil, 0, fmt.Errorf("load historical fingerprints: %w", err)
	}
	rows := make([]tabular.Row, 0, len(t.Rows))
	for i, r := range t.Rows {
		if _, dup := seen[fps[i]]; !dup {
			rows = append(rows, r)
		}
	}
	return t.Derive(rows), len(t.Rows) - len(rows), nil
}

// suppressAccepted drops exceptions whose (row, reasons) pair a reviewer has
// accepted before.
func (e *Engine) suppressAccepted(ctx context.Context, rows []tabular.Row) ([]tabular.Row, int, error) {
	if len(rows) == 0 {
		return rows, 0, nil
	}
	keys := make([]string, len(rows))
	for i, r := range rows {
		key, err := checksum.AcceptedKey(r, r.Str(model.FieldExceptionReasons))
		if err != nil {
			return nil, 0, fmt.Errorf("accepted key: %w", err)
		}
		keys[i] = key.CombinedHash
	}
	accepted, err := e.repo.AcceptedAmong(ctx, unique(keys))
	if err != nil {
		return nil, 0, fmt.Errorf("load accepted fingerprints: %w", err)
	}
	if len(accepted) == 0 {
		return rows, 0, nil
	}
	kept := make([]tabular.Row, 0, len(rows))
	for i, r := range rows {
		if _, ok := accepted[keys[i]]; !ok {
			kept = append(kept, r)
		}
	}
	return kept, len(rows) - len(kept), nil
}

func (e *Engine) persist(ctx context.Context, runID uuid.UUID, exceptions []model.Exception,
	stats []model.DepartmentStat, users []model.UserPerformance, fps []string, entries []model.SuspiciousEntry) error {
	if err := e.repo.PersistExceptions(ctx, runID, exceptions); err != nil {
		return err
	}
	if err := e.repo.PersistDepartmentSummary(ctx, runID, stats); err != nil {
		return err
	}
	if err := e.repo.PersistUserPerformance(ctx, runID, users); err != nil {
		return err
	}
	if _, err := e.repo.PersistFingerprints(ctx, runID, fps); err != nil {
		return err
	}
	return e.repo.PersistSuspicious(ctx, entries)
}

// exceptionRecords turns exception rows into store records. The stored row
// snapshot leaves out the reason and severity columns.
func exceptionRecords(runID uuid.UUID, rows []tabular.Row) ([]model.Exception, error) {
	out := make([]model.Exception, 0, len(rows))
	for _, r := range rows {
		snapshot := r.Clone()
		delete(snapshot, model.FieldExceptionReasons)
		delete(snapshot, model.FieldSeverity)
		data, err := checksum.CanonicalJSON(snapshot)
		if err != nil {
			return nil, fmt.Errorf("row snapshot: %w", err)
		}
		severity, _ := r[model.FieldSeverity].(int)
		amount, _ := checksum.ParseAmount(r[model.FieldNetAmount])
		out = append(out, model.Exception{
			RunID:            runID,
			Department:       validation.Raw(r, model.FieldDepartment),
			SubDepartment:    validation.Raw(r, model.FieldSubDepartment),
			CreatedUser:      validation.Raw(r, model.FieldCreatedUser),
			Reason:           r.Str(model.FieldExceptionReasons),
			Severity:         severity,
			NetAmount:        amount,
			OriginalRowData:  data,
			CorrectionStatus: model.CorrectionPending,
		})
	}
	return out, nil
}

func fingerprints(rows []tabular.Row) []string {
	fps := make([]string, len(rows))
	for i, r := range rows {
		fps[i] = checksum.Fingerprint(r)
	}
	return unique(fps)
}

func unique(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
