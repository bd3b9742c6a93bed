package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Run is one upload processed end to end.
type Run struct {
	ID              uuid.UUID `json:"id"`
	Filename        string    `json:"filename"`
	UploadTime      time.Time `json:"upload_time"`
	TotalRecords    int       `json:"total_records"`
	TotalExceptions int       `json:"total_exceptions"`
	FileSize        int64     `json:"file_size"`
	FileChecksum    string    `json:"file_checksum"`
	UploadedBy      string    `json:"uploaded_by"`
	HasReport       bool      `json:"has_report"`
}

// Exception is a persisted non-conforming row.
type Exception struct {
	ID               int64           `json:"id"`
	RunID            uuid.UUID       `json:"run_id"`
	Department       string          `json:"department"`
	SubDepartment    string          `json:"sub_department"`
	CreatedUser      string          `json:"created_user"`
	Reason           string          `json:"exception_reason"`
	Severity         int             `json:"severity"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	OriginalRowData  json.RawMessage `json:"original_row_data"`
	CorrectionStatus string          `json:"correction_status"`
	CorrectedBy      string          `json:"corrected_by,omitempty"`
	IsAccepted       bool            `json:"is_accepted"`
	AcceptedBy       string          `json:"accepted_by,omitempty"`
}

// DepartmentStat summarises one department within a run.
type DepartmentStat struct {
	Department       string  `json:"department"`
	TotalRecords     int     `json:"total_records"`
	ExceptionRecords int     `json:"exception_records"`
	ExceptionRate    float64 `json:"exception_rate"`
}

// UserPerformance summarises one row author within a run.
type UserPerformance struct {
	User             string  `json:"user"`
	TotalRecords     int     `json:"total_records"`
	ExceptionRecords int     `json:"exception_records"`
	ExceptionRate    float64 `json:"exception_rate"`
}

// AcceptedFingerprint is the suppression key written when a reviewer accepts
// an exception.
type AcceptedFingerprint struct {
	DataHash     string `json:"data_hash"`
	ReasonHash   string `json:"reason_hash"`
	CombinedHash string `json:"combined_hash"`
}

// SuspiciousRule flags rows of a sub-department whose column value is in Values.
type SuspiciousRule struct {
	ID            int64    `json:"id"`
	SubDepartment string   `json:"sub_department"`
	Column        string   `json:"rule_column"`
	Values        []string `json:"rule_values"`
}

// SuspiciousOption is a curator-maintained value offered for a rule column.
type SuspiciousOption struct {
	ID     int64  `json:"id"`
	Column string `json:"rule_column"`
	Value  string `json:"option_value"`
}

// SuspiciousEntry is one row routed to the admin review queue.
type SuspiciousEntry struct {
	ID              int64           `json:"id"`
	RunID           uuid.UUID       `json:"run_id"`
	OriginalRowData json.RawMessage `json:"original_row_data"`
	CreatedUser     string          `json:"created_user"`
	MatchedColumn   string          `json:"matched_column"`
	MatchedValue    string          `json:"matched_value"`
	Status          string          `json:"status"`
	AdminComment    string          `json:"admin_comment,omitempty"`
	ReviewedBy      string          `json:"reviewed_by,omitempty"`
}

// LedgerPair is an (Account2.Code, Sub Ledger.Code) combination.
type LedgerPair struct {
	Account2  string
	SubLedger string
}

// Key is the composite "{Account2.Code}_{Sub Ledger.Code}".
func (p LedgerPair) Key() string {
	return p.Account2 + "_" + p.SubLedger
}
