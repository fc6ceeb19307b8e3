package constants

const (
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInvalidAction      = "INVALID_ACTION"
	ErrCodeTooLate            = "TOO_LATE"
	ErrCodeCooldownActive     = "COOLDOWN_ACTIVE"
	ErrCodeParcelNotFound     = "PARCEL_NOT_FOUND"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeInvalidRequestBody = "INVALID_REQUEST_BODY"
)

const (
	ErrMsgNotFound           = "message not found"
	ErrMsgInvalidAction      = "message state does not allow this action"
	ErrMsgTooLate            = "too close to the pickup time to retry"
	ErrMsgCooldownActive     = "a retry was attempted too recently"
	ErrMsgParcelNotFound     = "the referenced pickup no longer exists"
	ErrMsgInternalError      = "Internal server error"
	ErrMsgInvalidRequestBody = "failed to parse request body"
)

var errorMessages = map[string]string{
	ErrCodeNotFound:           ErrMsgNotFound,
	ErrCodeInvalidAction:      ErrMsgInvalidAction,
	ErrCodeTooLate:            ErrMsgTooLate,
	ErrCodeCooldownActive:     ErrMsgCooldownActive,
	ErrCodeParcelNotFound:     ErrMsgParcelNotFound,
	ErrCodeInternalError:      ErrMsgInternalError,
	ErrCodeInvalidRequestBody: ErrMsgInvalidRequestBody,
}

func GetErrorMessage(code string) string {
	if msg, exists := errorMessages[code]; exists {
		return msg
	}
	return ErrMsgInternalError
}

func GetHTTPStatus(code string) int {
	switch code {
	case ErrCodeInvalidRequestBody:
		return 400
	case ErrCodeNotFound, ErrCodeParcelNotFound:
		return 404
	case ErrCodeInvalidAction:
		return 409
	case ErrCodeTooLate:
		return 422
	case ErrCodeCooldownActive:
		return 429
	case ErrCodeInternalError:
		return 500
	default:
		return 500
	}
}
