package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/pagination"
)

// Cursors are opaque but short; anything longer was not issued by us.
const maxCursorLength = 256

// ParsePage reads the limit and cursor query parameters of a list request.
func ParsePage(r *http.Request) (pagination.Params, error) {
	query := r.URL.Query()
	params := pagination.Params{Limit: pagination.DefaultLimit}

	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return params, pkgerrors.New(pkgerrors.CodeValidation, "limit must be numeric").
				WithDetails(map[string]any{"field": "limit"})
		}
		if limit < 1 || limit > pagination.MaxLimit {
			return params, pkgerrors.New(pkgerrors.CodeValidation, "limit out of range").
				WithDetails(map[string]any{"field": "limit", "min": 1, "max": pagination.MaxLimit})
		}
		params.Limit = limit
	}

	params.Cursor = strings.TrimSpace(query.Get("cursor"))
	if len(params.Cursor) > maxCursorLength {
		return params, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor").
			WithDetails(map[string]any{"field": "cursor"})
	}
	return params, nil
}
