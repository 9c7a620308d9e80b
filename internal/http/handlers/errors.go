// Error codes carried in ErrorResponse.Code. Generic codes mirror the HTTP
// status; the domain block covers rules the status alone cannot express.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodePayloadTooLarge  = "payload_too_large"
	ErrCodeUnsupportedMedia = "unsupported_media_type"

	// Domain-specific:
	ErrCodeCreateFailed      = "create_failed"
	ErrCodeListFailed        = "list_failed"
	ErrCodeUpdateFailed      = "update_failed"
	ErrCodeInvalidStatus     = "invalid_status"
	ErrCodeStatusReserved    = "status_reserved"
	ErrCodeCheckFailed       = "check_failed"
	ErrCodeLedgerUnavailable = "ledger_unavailable"
	ErrCodeUploadFailed      = "upload_failed"
)
