package httputil

// Machine-readable error codes returned in the "code" field of error
// envelopes. Clients branch on these, never on the human-readable message.
const (
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeInvalidEmailFormat = "INVALID_EMAIL_FORMAT"
	CodeEmailRequired      = "EMAIL_REQUIRED"
	CodePasswordRequired   = "PASSWORD_REQUIRED"
	CodePasswordTooShort   = "PASSWORD_TOO_SHORT"

	CodeDuplicateEmail      = "DUPLICATE_EMAIL"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeEmailNotVerified    = "EMAIL_NOT_VERIFIED"
	CodeInvalidToken        = "INVALID_OR_EXPIRED_TOKEN"
	CodeRateLimited         = "RATE_LIMITED"
	CodeEmailDeliveryFailed = "EMAIL_DELIVERY_FAILED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeUntrustedOrigin     = "UNTRUSTED_ORIGIN"
	CodeUnknownProvider     = "UNKNOWN_PROVIDER"

	CodeInternalError = "INTERNAL_ERROR"
)
