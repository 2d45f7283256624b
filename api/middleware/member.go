package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mylittlestore/pos-backend/api/responses"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/logger"
)

const memberIDHeader = "X-Member-ID"

// MemberScope seeds the request context with the member resolved by the
// upstream gateway and passed in the X-Member-ID header.
func MemberScope(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(memberIDHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "member id missing"))
				return
			}
			memberID, err := uuid.Parse(raw)
			if err != nil || memberID == uuid.Nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid member id"))
				return
			}

			ctx := WithMemberID(r.Context(), memberID)
			if logg != nil {
				ctx = logg.WithMemberID(ctx, memberID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
