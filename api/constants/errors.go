package constants

// Common error messages
const (
	ErrInvalidSession             = "invalid user_id or session"
	ErrInvalidJSON                = "invalid json or missing fields"
	ErrInvalidJSONShort           = "Invalid JSON"
	ErrMissingUserID              = "Missing or invalid user_id in body"
	ErrUserIDRequired             = "user_id required"
	ErrMethodNotAllowed           = "Method Not Allowed"
	ErrFailedToParseMultipartForm = "failed to parse multipart form"
	ErrUnsupportedFileType        = "unsupported file type"
	ErrForbidden                  = "Insufficient permissions"
	ErrAccessDenied               = "Access denied"
)

// Paket messages (user-facing, kept in Bahasa Indonesia like the UI)
const (
	ErrFileNotFound    = "File Excel tidak ditemukan"
	ErrEmptyWorkbook   = "File tidak memiliki data"
	ErrNoExportData    = "Tidak ada data untuk diekspor"
	ErrPaketNotFound   = "Paket not found"
	ErrOpdNotFound     = "OPD not found"
	ErrOpdRequired     = "OPD is required"
	ErrInvalidStatus   = "Invalid status. Must be one of: PENDING, ACTIVE, COMPLETED, CANCELLED"
	ErrOpdHasPakets    = "Cannot delete OPD with existing pakets"
	ErrOnlyAdminDelete = "Only admin can delete paket"
)

// DB / SQL error templates
const (
	ErrTxStartFailed  = "failed to start transaction: "
	ErrTxCommitFailed = "failed to commit transaction: "
	ErrQueryFailed    = "query failed: "
)
