package envelope

// Code is a semantic error code carried by a failed envelope.
type Code string

// Row-store codes
const (
	CodeInvalidSQL             Code = "INVALID_SQL"
	CodeConstraintViolation    Code = "CONSTRAINT_VIOLATION"
	CodeDatabaseError          Code = "DATABASE_ERROR"
	CodeBatchTransactionFailed Code = "BATCH_TRANSACTION_FAILED"
)

// Object-store codes
const (
	CodeObjectNotFound   Code = "OBJECT_NOT_FOUND"
	CodeChecksumMismatch Code = "CHECKSUM_MISMATCH"
	CodeStorageError     Code = "STORAGE_ERROR"
	CodeFileTooLarge     Code = "FILE_TOO_LARGE"
	CodeInvalidKey       Code = "INVALID_KEY"
	CodeUploadNotFound   Code = "UPLOAD_NOT_FOUND"
	CodeInvalidPart      Code = "INVALID_PART"
	CodeMissingSecretKey Code = "MISSING_SECRET_KEY"
)

// Import/export codes
const (
	CodeInvalidFormat    Code = "INVALID_FORMAT"
	CodeInvalidJSON      Code = "INVALID_JSON"
	CodeMissingParameter Code = "MISSING_PARAMETER"
)

// API codes. These never come from a manager; the HTTP layer uses them for
// authentication failures, malformed requests and caller misuse.
const (
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeInvalidRequest   Code = "INVALID_REQUEST"
	CodeInstanceNotFound Code = "INSTANCE_NOT_FOUND"
	CodeInvalidOperation Code = "INVALID_OPERATION"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeInternalError    Code = "INTERNAL_ERROR"
)

func (c Code) String() string { return string(c) }
