package model

// Column headers of the ERP expense export.
const (
	FieldDepartment    = "Department.Name"
	FieldSubDepartment = "Sub Department.Name"
	FieldFunction      = "Function.Name"
	FieldVertical      = "FC-Vertical.Name"
	FieldCrop          = "Crop.Name"
	FieldLocation      = "Location.Name"
	FieldActivity      = "Activity.Name"
	FieldRegion        = "Region.Name"
	FieldZone          = "Zone.Name"
	FieldBusinessUnit  = "Business Unit.Name"
	FieldAccount       = "Account.Code"
	FieldAccount2      = "Account2.Code"
	FieldSubLedger     = "Sub Ledger.Code"
	FieldNetAmount     = "Net amount"
	FieldCreatedUser   = "Created user"
	FieldDocumentNo    = "Document No."
)

// Columns appended to exception records.
const (
	FieldExceptionReasons = "Exception Reasons"
	FieldSeverity         = "Severity"
)

// ReasonSeparator joins reasons for display and for the reason hash.
const ReasonSeparator = "; "

// RequiredRunColumns must be present after the identity filter.
var RequiredRunColumns = []string{FieldDepartment, FieldAccount2, FieldSubLedger}
