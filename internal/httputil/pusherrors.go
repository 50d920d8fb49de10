package httputil

// ErrorCode is a small enum identifying the class of failure behind an HTTP error response.
type ErrorCode string

const (
	CodeBadRequest   ErrorCode = "bad_request"
	CodeUnauthorized ErrorCode = "unauthorized"
	CodeNotFound     ErrorCode = "not_found"
	CodeInternal     ErrorCode = "internal_error"
)
