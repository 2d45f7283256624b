package square

import (
	"encoding/json"
	"errors"
	"net/http"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
)

// mapSquareError translates SDK failures into domain error codes. A reused
// idempotency key or an authentication failure reported in the body outranks
// the HTTP status.
func mapSquareError(err error, op string) error {
	if err == nil {
		return nil
	}
	msg := "square " + op + " failed"

	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}
	return pkgerrors.Wrap(classify(apiErr), err, msg)
}

func classify(apiErr *sqcore.APIError) pkgerrors.Code {
	for _, detail := range squareErrors(apiErr) {
		if detail == nil {
			continue
		}
		if detail.Code == sq.ErrorCodeIdempotencyKeyReused {
			return pkgerrors.CodeIdempotency
		}
		if detail.Category == sq.ErrorCategoryAuthenticationError {
			return pkgerrors.CodeUnauthorized
		}
	}
	return codeForStatus(apiErr.StatusCode)
}

// squareErrors decodes the errors array Square returns in API error bodies.
func squareErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if json.Unmarshal([]byte(inner.Error()), &body) != nil {
		return nil
	}
	return body.Errors
}

var codeByStatus = map[int]pkgerrors.Code{
	http.StatusUnauthorized:        pkgerrors.CodeUnauthorized,
	http.StatusForbidden:           pkgerrors.CodeForbidden,
	http.StatusNotFound:            pkgerrors.CodeNotFound,
	http.StatusConflict:            pkgerrors.CodeConflict,
	http.StatusTooManyRequests:     pkgerrors.CodeRateLimit,
	http.StatusUnprocessableEntity: pkgerrors.CodeStateConflict,
}

// codeForStatus falls back to validation for other 4xx answers and treats
// everything else as Square being unavailable.
func codeForStatus(status int) pkgerrors.Code {
	if code, ok := codeByStatus[status]; ok {
		return code
	}
	if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		return pkgerrors.CodeValidation
	}
	return pkgerrors.CodeDependency
}
