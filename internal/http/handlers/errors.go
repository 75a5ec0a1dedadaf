package handlers

// Stable error codes carried in every ErrorResponse. The generic ones mirror
// HTTP status semantics; the domain ones tell clients which operation failed
// when the status alone is ambiguous. Codes are part of the API contract:
// renaming one breaks clients that branch on it.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeInternal     = "internal_error"

	ErrCodeSaveFailed       = "save_failed"
	ErrCodeHistoryFailed    = "history_failed"
	ErrCodeDeleteFailed     = "delete_failed"
	ErrCodeStatsFailed      = "stats_failed"
	ErrCodeSyncFailed       = "sync_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
