package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"

	// Validation errors
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeInvalidInput   = "invalid_input"
	ErrCodeMissingField   = "missing_field"

	// Resource errors
	ErrCodeNotFound = "not_found"

	// Session errors
	ErrCodeNoActiveSession     = "no_active_session"
	ErrCodeSessionNotActive    = "session_not_active"
	ErrCodeSessionStartFailed  = "session_start_failed"
	ErrCodeSessionFinishFailed = "session_finish_failed"

	// Data quality (non-fatal, logged; surfaced only in details)
	ErrCodeDataQuality = "data_quality"

	// Backend errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeBackendUnavailable = "backend_unavailable"

	// Leaderboard / history errors
	ErrCodeLeaderboardFetchFailed = "leaderboard_fetch_failed"
	ErrCodeHistoryFetchFailed     = "history_fetch_failed"
	ErrCodeExportFailed           = "export_failed"

	// WebSocket errors
	ErrCodeConnectionError = "connection_error"
)
