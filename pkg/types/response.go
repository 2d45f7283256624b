// Package types holds the JSON shapes every API response is wrapped in.
package types

// Envelope wraps a successful payload.
type Envelope[T any] struct {
	Data T `json:"data"`
}

// ErrorBody is the public face of a pkg/errors error.
type ErrorBody struct {
	Code      string `json:"code"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}
