package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ExpenseCertify/internal/checksum"
	"ExpenseCertify/internal/model"
	"ExpenseCertify/internal/refdata"
	"ExpenseCertify/internal/runlock"
	"ExpenseCertify/internal/store"
)

// memRepo is an in-memory Repository with the store's conflict semantics.
type memRepo struct {
	mu           sync.Mutex
	nextID       int64
	runs         map[uuid.UUID]model.Run
	exceptions   []model.Exception
	departments  map[uuid.UUID][]model.DepartmentStat
	users        map[uuid.UUID][]model.UserPerformance
	fingerprints map[string]uuid.UUID
	accepted     map[string]model.AcceptedFingerprint
	suspicious   []model.SuspiciousEntry
	reports      map[uuid.UUID][]byte
	rules        []model.SuspiciousRule
	failOn       string
}

func newMemRepo() *memRepo {
	return &memRepo{
		runs:         map[uuid.UUID]model.Run{},
		departments:  map[uuid.UUID][]model.DepartmentStat{},
		users:        map[uuid.UUID][]model.UserPerformance{},
		fingerprints: map[string]uuid.UUID{},
		accepted:     map[string]model.AcceptedFingerprint{},
		reports:      map[uuid.UUID][]byte{},
	}
}

func (m *memRepo) fail(op string) error {
	if m.failOn == op {
		return fmt.Errorf("%s: connection reset", op)
	}
	return nil
}

func (m *memRepo) ContainsAny(_ context.Context, fps []string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]struct{}{}
	for _, fp := range fps {
		if _, ok := m.fingerprints[fp]; ok {
			out[fp] = struct{}{}
		}
	}
	return out, nil
}

func (m *memRepo) AcceptedAmong(_ context.Context, combined []string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]struct{}{}
	for _, c := range combined {
		if _, ok := m.accepted[c]; ok {
			out[c] = struct{}{}
		}
	}
	return out, nil
}

func (m *memRepo) Rules(context.Context) ([]model.SuspiciousRule, error) {
	return m.rules, m.fail("rules")
}

func (m *memRepo) CreateRun(_ context.Context, run model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *memRepo) PersistExceptions(_ context.Context, runID uuid.UUID, ex []model.Exception) error {
	if err := m.fail("exceptions"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range ex {
		m.nextID++
		e.ID = m.nextID
		e.RunID = runID
		m.exceptions = append(m.exceptions, e)
	}
	return nil
}

func (m *memRepo) PersistDepartmentSummary(_ context.Context, runID uuid.UUID, stats []model.DepartmentStat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.departments[runID] = stats
	return nil
}

func (m *memRepo) PersistUserPerformance(_ context.Context, runID uuid.UUID, perf []model.UserPerformance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[runID] = perf
	return nil
}

func (m *memRepo) PersistFingerprints(_ context.Context, runID uuid.UUID, fps []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, fp := range fps {
		if _, ok := m.fingerprints[fp]; !ok {
			m.fingerprints[fp] = runID
			n++
		}
	}
	return n, nil
}

func (m *memRepo) PersistSuspicious(_ context.Context, entries []model.SuspiciousEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.nextID++
		e.ID = m.nextID
		m.suspicious = append(m.suspicious, e)
	}
	return nil
}

func (m *memRepo) PersistReport(_ context.Context, runID uuid.UUID, report []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[runID] = report
	return nil
}

func (m *memRepo) MarkAccepted(_ context.Context, id int64, reviewer string) (model.AcceptedFingerprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.exceptions {
		e := &m.exceptions[i]
		if e.ID != id {
			continue
		}
		key, err := checksum.AcceptedKeyFromStored(e.OriginalRowData, e.Reason)
		if err != nil {
			return key, err
		}
		e.IsAccepted = true
		e.AcceptedBy = reviewer
		m.accepted[key.CombinedHash] = key
		return key, nil
	}
	return model.AcceptedFingerprint{}, store.ErrNotFound
}

func (m *memRepo) RecordAccepted(_ context.Context, key model.AcceptedFingerprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted[key.CombinedHash] = key
	return nil
}

func (m *memRepo) SetCorrectionStatus(_ context.Context, id int64, status, by string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.exceptions {
		e := &m.exceptions[i]
		if e.ID != id {
			continue
		}
		if err := model.CheckCorrection(e.CorrectionStatus, status); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidTransition, err)
		}
		e.CorrectionStatus = status
		e.CorrectedBy = by
		return nil
	}
	return store.ErrNotFound
}

func (m *memRepo) ReviewSuspicious(_ context.Context, id int64, status, comment, reviewer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.suspicious {
		e := &m.suspicious[i]
		if e.ID != id {
			continue
		}
		if err := model.CheckSuspicious(e.Status, status); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidTransition, err)
		}
		e.Status, e.AdminComment, e.ReviewedBy = status, comment, reviewer
		return nil
	}
	return store.ErrNotFound
}

func (m *memRepo) DeleteRun(_ context.Context, runID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return store.ErrNotFound
	}
	delete(m.runs, runID)
	delete(m.departments, runID)
	delete(m.users, runID)
	delete(m.reports, runID)
	kept := m.exceptions[:0]
	for _, e := range m.exceptions {
		if e.RunID != runID {
			kept = append(kept, e)
		}
	}
	m.exceptions = kept
	for fp, owner := range m.fingerprints {
		if owner == runID {
			delete(m.fingerprints, fp)
		}
	}
	return nil
}

func (m *memRepo) exceptionsOf(runID uuid.UUID) []model.Exception {
	var out []model.Exception
	for _, e := range m.exceptions {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string) (func(), error) {
	return nil, runlock.ErrBusy
}

const header = "Department.Name,Sub Department.Name,FC-Vertical.Name,Crop.Name,Location.Name,Activity.Name," +
	"Zone.Name,Region.Name,Business Unit.Name,Account2.Code,Sub Ledger.Code,Created user,Document No.,Net amount"

func cleanRow(user, doc string) string {
	return fmt.Sprintf("Sales,Sales Brand,FC-field crop,Maize,Bandamailaram,Farmer Meeting,"+
		"North Zone,Delhi Region,FC North BU,A1,S1,%s,%s,50", user, doc)
}

// badRow is blank on vertical, crop and activity: three reasons.
func badRow(user, doc string) string {
	return fmt.Sprintf("Sales,Sales Brand,,,Bandamailaram,,,,,,,%s,%s,100", user, doc)
}

func export(rows ...string) []byte {
	return []byte("Company Ltd\nExpense Register\nPeriod\nFrom,To\n2026-01-01,2026-01-31\n" +
		header + "\n" + strings.Join(rows, "\n") + "\nTotal,,,,,,,,,,,,,150\n")
}

func testBundle() *refdata.Bundle {
	return &refdata.Bundle{
		Catalog: refdata.NewCatalog(map[string][]string{
			refdata.KeyFCCrop:        {"Maize"},
			refdata.KeyFCBU:          {"FC North BU"},
			refdata.KeySaleFCZone:    {"North Zone"},
			refdata.KeySBFCRegion:    {"Delhi Region"},
			refdata.KeySalesActivity: {"Farmer Meeting"},
		}),
		Ledger:   refdata.NewLedgerCatalog([]model.LedgerPair{{Account2: "A1", SubLedger: "S1"}}),
		Immunity: refdata.NewLedgerCatalog(nil),
	}
}

func newEngine(repo *memRepo, b *refdata.Bundle, opts ...Option) *Engine {
	clock := func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	opts = append([]Option{WithWorkers(2), WithClock(clock)}, opts...)
	return NewEngine(repo, refdata.Static{B: b}, opts...)
}

func upload(data []byte) Upload {
	return Upload{Filename: "expenses.csv", Data: data, UserName: "admin", Role: RoleSuperUser}
}

func TestRunPersistsExceptionsAndStats(t *testing.T) {
	repo := newMemRepo()
	eng := newEngine(repo, testBundle())

	sum, err := eng.Run(context.Background(), upload(export(
		cleanRow("alice", "D-1"),
		badRow("bob", "D-2"),
		cleanRow("Bob", "D-3"),
	)))
	require.NoError(t, err)

	assert.Equal(t, 3, sum.TotalRecords)
	assert.Equal(t, 1, sum.TotalExceptions)
	assert.Empty(t, sum.FailedChunks)

	run := repo.runs[sum.RunID]
	assert.Equal(t, 3, run.TotalRecords)
	assert.Equal(t, int64(len(export(cleanRow("alice", "D-1"), badRow("bob", "D-2"), cleanRow("Bob", "D-3")))), run.FileSize)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), run.UploadTime.UTC())

	ex := repo.exceptionsOf(sum.RunID)
	require.Len(t, ex, 1)
	assert.Equal(t, "bob", ex[0].CreatedUser)
	assert.Equal(t, 6, ex[0].Severity)
	assert.Equal(t, "Crop Name cannot be blank; FC-Vertical Name cannot be blank; Incorrect Activity Name for Sales", ex[0].Reason)
	assert.Equal(t, model.CorrectionPending, ex[0].CorrectionStatus)
	assert.Equal(t, "100", ex[0].NetAmount.String())
	assert.NotContains(t, string(ex[0].OriginalRowData), "Exception Reasons")
	assert.Contains(t, string(ex[0].OriginalRowData), `"Document No.":"D-2"`)

	users := repo.users[sum.RunID]
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].User)
	assert.Equal(t, 0, users[0].ExceptionRecords)
	assert.Equal(t, 2, users[1].TotalRecords)
	assert.Equal(t, 50.0, users[1].ExceptionRate)

	assert.Len(t, repo.fingerprints, 3)
	assert.NotEmpty(t, repo.reports[sum.RunID])
}

func TestDepartmentExceptionsSumToExceptionCount(t *testing.T) {
	repo := newMemRepo()
	eng := newEngine(repo, testBundle())

	sum, err := eng.Run(context.Background(), upload(export(
		badRow("alice", "D-1"),
		badRow("bob", "D-2"),
		cleanRow("carol", "D-3"),
		"Finance & Account,Accounts,Common,,HQ,,,,,A1,ZZ,dave,D-4,75",
	)))
	require.NoError(t, err)

	total := 0
	for _, d := range repo.departments[sum.RunID] {
		total += d.ExceptionRecords
	}
	assert.Equal(t, len(repo.exceptionsOf(sum.RunID)), total)
	assert.Equal(t, sum.TotalExceptions, total)
}

func TestReuploadIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	eng := newEngine(repo, testBundle())
	file := export(cleanRow("alice", "D-1"), badRow("bob", "D-2"))

	first, err := eng.Run(context.Background(), upload(file))
	require.NoError(t, err)
	require.Equal(t, 1, first.TotalExceptions)

	second, err := eng.Run(context.Background(), upload(file))
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, 0, second.TotalRecords)
	assert.Equal(t, 0, second.TotalExceptions)
	assert.Equal(t, 2, second.DuplicatesDropped)
	assert.Empty(t, repo.exceptionsOf(second.RunID))
	assert.Empty(t, repo.users[second.RunID])
	assert.Empty(t, repo.departments[second.RunID])
	assert.Len(t, repo.fingerprints, 2)
}

func TestAcceptedExceptionStaysSuppressedUnderNewDocumentNo(t *testing.T) {
	repo := newMemRepo()
	eng := newEngine(repo, testBundle())
	ctx := context.Background()

	first, err := eng.Run(ctx, upload(export(badRow("bob", "D-2"))))
	require.NoError(t, err)
	ex := repo.exceptionsOf(first.RunID)
	require.Len(t, ex, 1)

	_, err = eng.MarkAccepted(ctx, ex[0].ID, "reviewer")
	require.NoError(t, err)

	second, err := eng.Run(ctx, upload(export(badRow("bob", "D-9"), badRow("bob", "D-2"))))
	require.NoError(t, err)
	assert.Equal(t, 1, second.DuplicatesDropped)
	assert.Equal(t, 1, second.TotalRecords)
	assert.Equal(t, 0, second.TotalExceptions)
	assert.Equal(t, 1, second.AcceptedSuppressed)
	assert.Empty(t, repo.exceptionsOf(second.RunID))
	require.Len(t, repo.departments[second.RunID], 1)
	assert.Equal(t, 0, repo.departments[second.RunID][0].ExceptionRecords)
	assert.Equal(t, 1, repo.departments[second.RunID][0].TotalRecords)
}

func TestAcceptanceIsPerReasonSet(t *testing.T) {
	repo := newMemRepo()
	eng := newEngine(repo, testBundle())
	ctx := context.Background()

	first, err := eng.Run(ctx, upload(export(badRow("bob", "D-2"))))
	require.NoError(t, err)
	_, err = eng.MarkAccepted(ctx, repo.exceptionsOf(first.RunID)[0].ID, "reviewer")
	require.NoError(t, err)

	// A different location no longer matches the accepted snapshot.
	changed := strings.Replace(badRow("bob", "D-3"), "Bandamailaram", "ZZ Depot", 1)
	second, err := eng.Run(ctx, upload(export(changed)))
	require.NoError(t, err)
	assert.Equal(t, 1, second.TotalExceptions)
}

func TestSuspiciousSweepHonoursImmunity(t *testing.T) {
	repo := newMemRepo()
	repo.rules = []model.SuspiciousRule{
		{SubDepartment: "Sales Brand", Column: "Location.Name", Values: []string{"BANDAMAILARAM"}},
	}
	b := testBundle()
	b.Immunity = refdata.NewLedgerCatalog([]model.LedgerPair{{Account2: "A1", SubLedger: "S1"}})
	eng := newEngine(repo, b)

	sum, err := eng.Run(context.Background(), upload(export(
		cleanRow("alice", "D-1"),
		badRow("bob", "D-2"),
	)))
	require.NoError(t, err)

	require.Len(t, repo.suspicious, 1)
	entry := repo.suspicious[0]
	assert.Equal(t, sum.RunID, entry.RunID)
	assert.Equal(t, "bob", entry.CreatedUser)
	assert.Equal(t, model.SuspiciousPending, entry.Status)
	assert.Equal(t, 1, sum.SuspiciousLogged)
	assert.Equal(t, 1, sum.TotalExceptions)
}

func TestCleanNovelRowLeavesOnlyAFingerprint(t *testing.T) {
	repo := newMemRepo()
	eng := newEngine(repo, testBundle())

	sum, err := eng.Run(context.Background(), upload(export(cleanRow("alice", "D-1"))))
	require.NoError(t, err)
	assert.Empty(t, repo.exceptionsOf(sum.RunID))
	assert.Empty(t, repo.suspicious)
	assert.Len(t, repo.fingerprints, 1)
}

func TestRunInputDefects(t *testing.T) {
	cases := []struct {
		name string
		up   Upload
		want error
	}{
		{"empty file", Upload{Filename: "e.csv", Role: RoleSuperUser}, ErrEmptyFile},
		{"header only", Upload{Filename: "e.csv", Role: RoleSuperUser, Data: []byte("a\nb\nc\nd\ne\n" + header + "\nTotal\n")}, ErrEmptyFile},
		{"no created user", Upload{Filename: "e.csv", Role: RoleSuperUser, Data: []byte("a\nb\nc\nd\ne\nDepartment.Name\nSales\nTotal\n")}, ErrMissingColumns},
		{"missing ledger columns", Upload{Filename: "e.csv", Role: RoleSuperUser, Data: []byte("a\nb\nc\nd\ne\nDepartment.Name,Created user\nSales,alice\nTotal\n")}, ErrMissingColumns},
		{"nobody's rows", Upload{Filename: "e.csv", Role: RoleUser, UserName: "zed", Data: export(cleanRow("alice", "D-1"))}, ErrNoRowsForCaller},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			repo := newMemRepo()
			_, err := newEngine(repo, testBundle()).Run(context.Background(), c.up)
			require.Error(t, err)
			assert.True(t, IsInputError(err))
			assert.ErrorIs(t, err, c.want)
			assert.Empty(t, repo.runs)
		})
	}
}

func TestRunFiltersByCaller(t *testing.T) {
	repo := newMemRepo()
	eng := newEngine(repo, testBundle())

	sum, err := eng.Run(context.Background(), Upload{
		Filename: "expenses.csv",
		Data:     export(cleanRow("ALICE", "D-1"), badRow("bob", "D-2"), cleanRow("carol", "D-3")),
		UserName: "alice",
		Team:     []string{"carol"},
		Role:     RoleManager,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalRecords)
	assert.Equal(t, 0, sum.TotalExceptions)
}

func TestPersistenceFailureLeavesDeletableRun(t *testing.T) {
	repo := newMemRepo()
	repo.failOn = "exceptions"
	eng := newEngine(repo, testBundle())

	_, err := eng.Run(context.Background(), upload(export(badRow("bob", "D-2"))))
	require.Error(t, err)
	assert.False(t, IsInputError(err))
	require.Len(t, repo.runs, 1)
	assert.Empty(t, repo.fingerprints)

	for id := range repo.runs {
		require.NoError(t, eng.DeleteRun(context.Background(), id, "admin"))
	}
	assert.Empty(t, repo.runs)
}

func TestBusyLockAbortsBeforeWrites(t *testing.T) {
	repo := newMemRepo()
	eng := newEngine(repo, testBundle(), WithLocker(busyLocker{}))

	_, err := eng.Run(context.Background(), upload(export(cleanRow("alice", "D-1"))))
	assert.ErrorIs(t, err, runlock.ErrBusy)
	assert.Empty(t, repo.runs)
}

func TestMissingReferenceData(t *testing.T) {
	repo := newMemRepo()
	eng := NewEngine(repo, refdata.Static{})
	_, err := eng.Run(context.Background(), upload(export(cleanRow("alice", "D-1"))))
	assert.ErrorIs(t, err, refdata.ErrNotLoaded)
}

func TestReviewerActions(t *testing.T) {
	repo := newMemRepo()
	repo.rules = []model.SuspiciousRule{
		{SubDepartment: "Sales Brand", Column: "Created user", Values: []string{"bob"}},
	}
	eng := newEngine(repo, testBundle())
	ctx := context.Background()

	sum, err := eng.Run(ctx, upload(export(badRow("bob", "D-2"))))
	require.NoError(t, err)
	ex := repo.exceptionsOf(sum.RunID)
	require.Len(t, ex, 1)
	require.Len(t, repo.suspicious, 1)

	_, err = eng.MarkAccepted(ctx, ex[0].ID, " ")
	assert.ErrorIs(t, err, ErrReviewerRequired)

	require.NoError(t, eng.SetCorrectionStatus(ctx, ex[0].ID, model.CorrectionYes, "rita"))
	err = eng.SetCorrectionStatus(ctx, ex[0].ID, model.CorrectionNo, "rita")
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
	assert.Empty(t, repo.accepted)

	id := repo.suspicious[0].ID
	require.NoError(t, eng.ReviewSuspicious(ctx, id, model.SuspiciousRejected, "wrong crop", "admin"))
	require.NoError(t, eng.ReviewSuspicious(ctx, id, model.SuspiciousUserCorrected, "", "bob"))
	assert.ErrorIs(t, eng.ReviewSuspicious(ctx, id, model.SuspiciousAccepted, "", "admin"), store.ErrInvalidTransition)

	err = eng.DeleteRun(ctx, uuid.New(), "admin")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestRecordAccepted(t *testing.T) {
	repo := newMemRepo()
	eng := newEngine(repo, testBundle())

	key, err := eng.RecordAccepted(context.Background(), []byte(`{"Department.Name":"Sales"}`), "Incorrect Location Name", "rita")
	require.NoError(t, err)
	assert.Contains(t, repo.accepted, key.CombinedHash)

	_, err = eng.RecordAccepted(context.Background(), []byte(`not json`), "x", "rita")
	assert.True(t, IsInputError(err))
}

func TestRecordAcceptedKeysNumbersAsText(t *testing.T) {
	ctx := context.Background()
	seed := newMemRepo()
	first, err := newEngine(seed, testBundle()).Run(ctx, upload(export(badRow("bob", "D-2"))))
	require.NoError(t, err)
	ex := seed.exceptionsOf(first.RunID)
	require.Len(t, ex, 1)

	var snapshot map[string]interface{}
	require.NoError(t, json.Unmarshal(ex[0].OriginalRowData, &snapshot))
	snapshot[model.FieldNetAmount] = 100
	posted, err := json.Marshal(snapshot)
	require.NoError(t, err)

	repo := newMemRepo()
	eng := newEngine(repo, testBundle())
	_, err = eng.RecordAccepted(ctx, posted, ex[0].Reason, "rita")
	require.NoError(t, err)

	sum, err := eng.Run(ctx, upload(export(badRow("bob", "D-2"))))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.AcceptedSuppressed)
	assert.Equal(t, 0, sum.TotalExceptions)
}
