package constants

// Request/response keys
const (
	KeyUserID    = "user_id"
	ValueSuccess = "success"
	ValueError   = "error"
)

// Content types
const (
	ContentTypeText      = "Content-Type"
	ContentTypeJSON      = "application/json"
	ContentTypeMultipart = "multipart/form-data"
	ContentTypeXLSX      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Date formats
const (
	DateTimeFormat = "2006-01-02 15:04:05"
	DateFormat     = "2006-01-02"
	DateFormatAlt  = "02-01-2006"
	DateFormatID   = "02/01/2006"
)

// Roles
const (
	RoleAdmin  = "ADMIN"
	RoleOPD    = "OPD"
	RoleViewer = "VIEWER"
)

// Paket kategori values
var ValidKategori = []string{"KONSTRUKSI", "KONSULTANSI", "BARANG", "JASA_LAINNYA"}

// Paket status values
var ValidStatus = []string{"PENDING", "ACTIVE", "COMPLETED", "CANCELLED"}

// Default funding source when a row leaves SUMBER DANA blank
const DefaultSumberDana = "APBD"
