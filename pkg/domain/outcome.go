package domain

type ErrorCode string

const (
	CodeOK               ErrorCode = "OK"
	CodeTempUnavailable  ErrorCode = "TEMP_UNAVAILABLE"
	CodeDuplicate        ErrorCode = "DUPLICATE"
	CodeRateLimit        ErrorCode = "RATE_LIMIT"
	CodeInvalidSignature ErrorCode = "INVALID_SIGNATURE"
	CodeInvalidHeader    ErrorCode = "INVALID_HEADER"
	CodeUnknown          ErrorCode = "UNKNOWN"
)

// NormalizedError is the classified outcome of one transmission attempt.
// RawMessage is already sanitized; it is safe to log and persist.
type NormalizedError struct {
	Code       ErrorCode `json:"code"`
	Retryable  bool      `json:"retryable"`
	HTTPStatus int       `json:"http_status,omitempty"`
	RawCode    string    `json:"raw_code,omitempty"`
	RawMessage string    `json:"raw_message,omitempty"`
}

// Accepted reports whether the regulator now has the transaction, either
// freshly (OK) or from an earlier submission (DUPLICATE).
func (e NormalizedError) Accepted() bool {
	return e.Code == CodeOK || e.Code == CodeDuplicate
}
