package model

import "errors"

var (
	// ErrNotFound marks a document lookup miss in the store.
	ErrNotFound = errors.New("not found")
	// ErrPathOutsideRoot marks a local document path that escapes the
	// configured root after symlink resolution.
	ErrPathOutsideRoot = errors.New("path outside root")
	// ErrProviderDisabled marks tool calls made while the Mistral provider
	// is disabled or missing credentials.
	ErrProviderDisabled = errors.New("mistral provider disabled")
	// ErrUnsupportedFormat marks documents whose format the provider cannot
	// process.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// ProviderError carries a sanitized upstream failure. Retryable reflects
// whether the caller may usefully repeat the request (rate limits, transient
// 5xx) as opposed to permanent failures (bad credentials, invalid model).
type ProviderError struct {
	Code       string
	Message    string
	Retryable  bool
	StatusCode int
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
