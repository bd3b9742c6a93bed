package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ExpenseCertify/internal/checksum"
	"ExpenseCertify/internal/model"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, nil), mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestCreateRun(t *testing.T) {
	s, mock := newMock(t)
	run := model.Run{
		ID:           uuid.New(),
		Filename:     "jan.xlsx",
		UploadTime:   time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC),
		TotalRecords: 10,
		FileSize:     2048,
		FileChecksum: "abc",
		UploadedBy:   "alice",
	}
	mock.ExpectExec(q("INSERT INTO validation_runs")).
		WithArgs(run.ID, run.Filename, run.UploadTime, 10, 0, int64(2048), "abc", "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.CreateRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRunNotFound(t *testing.T) {
	s, mock := newMock(t)
	id := uuid.New()
	mock.ExpectExec(q("DELETE FROM validation_runs WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteRun(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeRunsBefore(t *testing.T) {
	s, mock := newMock(t)
	cutoff := time.Now().Add(-72 * time.Hour)
	mock.ExpectExec(q("DELETE FROM validation_runs WHERE upload_time < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.PurgeRunsBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestGetReportMissing(t *testing.T) {
	s, mock := newMock(t)
	id := uuid.New()
	mock.ExpectQuery(q("SELECT excel_report_data, filename FROM validation_runs")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"excel_report_data", "filename"}).AddRow(nil, "jan.xlsx"))

	_, name, err := s.GetReport(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "jan.xlsx", name)
}

func TestListRuns(t *testing.T) {
	s, mock := newMock(t)
	id := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery(q("FROM validation_runs ORDER BY upload_time DESC LIMIT $1 OFFSET $2")).
		WithArgs(100, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "filename", "upload_time", "total_records",
			"total_exceptions", "file_size", "file_checksum", "uploaded_by", "has_report"}).
			AddRow(id.String(), "jan.xlsx", now, 5, 2, 100, "sum", "alice", true))

	runs, err := s.ListRuns(context.Background(), 0, -5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.True(t, runs[0].HasReport)
}

func TestPersistExceptionsRowByRow(t *testing.T) {
	s, mock := newMock(t)
	runID := uuid.New()
	exc := []model.Exception{{
		Department:      "Sales",
		CreatedUser:     "bob",
		Reason:          "Incorrect Location Name",
		Severity:        2,
		NetAmount:       decimal.RequireFromString("10.50"),
		OriginalRowData: []byte(`{"a":1}`),
	}}

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO exceptions")).
		WithArgs(runID, "Sales", "", "bob", "Incorrect Location Name", 2,
			sqlmock.AnyArg(), `{"a":1}`, model.CorrectionPending).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, s.PersistExceptions(context.Background(), runID, exc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistExceptionsRollsBack(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO exceptions")).WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := s.PersistExceptions(context.Background(), uuid.New(), []model.Exception{{Reason: "x"}})
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistFingerprintsIgnoresConflicts(t *testing.T) {
	s, mock := newMock(t)
	runID := uuid.New()
	mock.ExpectExec(q("ON CONFLICT (fingerprint_hash) DO NOTHING")).
		WithArgs(runID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := s.PersistFingerprints(context.Background(), runID, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestContainsAny(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(q("FROM transaction_fingerprints WHERE fingerprint_hash = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"fingerprint_hash"}).AddRow("b"))

	got, err := s.ContainsAny(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"b": {}}, got)

	empty, err := s.ContainsAny(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAcceptedWritesFingerprint(t *testing.T) {
	s, mock := newMock(t)
	raw := []byte(`{"Department.Name": "Sales", "Net amount": 10.5}`)
	reason := "Incorrect Location Name"
	want, err := checksum.AcceptedKeyFromStored(raw, reason)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT original_row_data, exception_reason FROM exceptions WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"original_row_data", "exception_reason"}).AddRow(raw, reason))
	mock.ExpectExec(q("UPDATE exceptions SET is_accepted = true")).
		WithArgs(int64(7), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO accepted_exception_fingerprints")).
		WithArgs(want.DataHash, want.ReasonHash, want.CombinedHash, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := s.MarkAccepted(context.Background(), 7, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAcceptedUnknownException(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM exceptions WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.MarkAccepted(context.Background(), 9, "reviewer")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetCorrectionStatusRejectsBadTransition(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT correction_status FROM exceptions")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"correction_status"}).AddRow(model.CorrectionYes))
	mock.ExpectRollback()

	err := s.SetCorrectionStatus(context.Background(), 3, model.CorrectionNo, "alice")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetCorrectionStatus(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT correction_status FROM exceptions")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"correction_status"}).AddRow(model.CorrectionPending))
	mock.ExpectExec(q("UPDATE exceptions SET correction_status = $2")).
		WithArgs(int64(3), model.CorrectionYes, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.SetCorrectionStatus(context.Background(), 3, model.CorrectionYes, "alice"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRulesDecodeValues(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(q("SELECT id, sub_department, rule_column, rule_values FROM suspicious_rules")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sub_department", "rule_column", "rule_values"}).
			AddRow(1, "Sales Brand", "Activity.Name", []byte(`["Party","Gift"]`)))

	rules, err := s.Rules(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, []string{"Party", "Gift"}, rules[0].Values)
}

func TestUpsertRule(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(q("ON CONFLICT (sub_department, rule_column) DO UPDATE")).
		WithArgs("Sales Brand", "Crop.Name", `["Maize"]`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))

	r, err := s.UpsertRule(context.Background(), model.SuspiciousRule{
		SubDepartment: " Sales Brand ", Column: "Crop.Name", Values: []string{"Maize"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), r.ID)
	assert.Equal(t, "Sales Brand", r.SubDepartment)
}

func TestListOptionsFiltered(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(q("FROM suspicious_rule_options WHERE rule_column = $1 ORDER BY")).
		WithArgs("Crop.Name").
		WillReturnRows(sqlmock.NewRows([]string{"id", "rule_column", "option_value"}).AddRow(1, "Crop.Name", "Maize"))

	opts, err := s.ListOptions(context.Background(), "Crop.Name")
	require.NoError(t, err)
	assert.Equal(t, []model.SuspiciousOption{{ID: 1, Column: "Crop.Name", Value: "Maize"}}, opts)
}

func TestListSuspiciousBuildsFilter(t *testing.T) {
	s, mock := newMock(t)
	runID := uuid.New()
	mock.ExpectQuery(q("WHERE run_id = $1 AND status = $2 ORDER BY id DESC")).
		WithArgs(runID, model.SuspiciousPending).
		WillReturnRows(sqlmock.NewRows([]string{"id", "run_id", "original_row_data", "created_user",
			"matched_column", "matched_value", "status", "admin_comment", "reviewed_by"}).
			AddRow(2, runID.String(), []byte(`{}`), "carol", "Crop.Name", "Maize", model.SuspiciousPending, "", ""))

	got, err := s.ListSuspicious(context.Background(), SuspiciousFilter{RunID: runID, Status: model.SuspiciousPending})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "carol", got[0].CreatedUser)
}

func TestReviewSuspicious(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT status FROM suspicious_transactions_log")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(model.SuspiciousRejected))
	mock.ExpectExec(q("UPDATE suspicious_transactions_log")).
		WithArgs(int64(5), model.SuspiciousUserCorrected, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.ReviewSuspicious(context.Background(), 5, model.SuspiciousUserCorrected, "fixed", "carol"))

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT status FROM suspicious_transactions_log")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(model.SuspiciousAccepted))
	mock.ExpectRollback()

	err := s.ReviewSuspicious(context.Background(), 5, model.SuspiciousPending, "", "admin")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountRuns(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(q("SELECT COUNT(*) FROM validation_runs")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := s.CountRuns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
