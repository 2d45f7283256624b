package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
)

// ParseUUIDParam reads a chi route parameter as a uuid. label names the
// parameter in error messages.
func ParseUUIDParam(r *http.Request, key, label string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, label+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label).WithDetails(map[string]any{"field": key})
	}
	return id, nil
}
