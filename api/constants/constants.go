package constants

// Request errors
const (
	ErrInvalidJSON        = "invalid json or missing fields"
	ErrInvalidRequestBody = "Invalid request body"
	ErrMethodNotAllowed   = "Method Not Allowed"
	ErrValidationFailed   = "request validation failed"
	ErrInvalidRunID       = "invalid run id"
	ErrInvalidID          = "invalid id"
	ErrFileRequired       = "file is required"
	ErrFileTooLarge       = "uploaded file is too large"
	ErrInvalidUploadTime  = "upload_time must be RFC 3339 or 2006-01-02 15:04:05"
	ErrInvalidPagination  = "invalid pagination parameters"
)

// Outcome errors
const (
	ErrNotFound           = "record not found"
	ErrRunBusy            = "another certification run is in progress, retry shortly"
	ErrInternal           = "internal error, see server logs"
	ErrReferenceData      = "reference data unavailable"
	ErrReferenceReload    = "reference reload failed, previous catalog kept"
	ErrRouteNotFound      = "404 - Route not found"
	ErrServiceUnavailable = "service unavailable"
)

// Content Types
const (
	ContentTypeJSON = "application/json"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentType     = "Content-Type"
)

// Date formats
const (
	DateTimeFormat = "2006-01-02 15:04:05"
)

// MaxUploadBytes bounds the multipart body of an upload.
const MaxUploadBytes = 64 << 20
