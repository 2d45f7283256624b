package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mylittlestore/pos-backend/api/responses"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/logger"
)

// StoreOwnerChecker reports whether memberID owns storeID. A missing store
// surfaces as a NoSuchStore error.
type StoreOwnerChecker interface {
	OwnsStore(ctx context.Context, storeID, memberID uuid.UUID) error
}

// StoreOwnership resolves the {storeId} route parameter and rejects members
// that do not own the store.
func StoreOwnership(checker StoreOwnerChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if checker == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store checker unavailable"))
				return
			}

			memberID, ok := MemberIDFromContext(ctx)
			if !ok {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "member context missing"))
				return
			}

			raw := strings.TrimSpace(chi.URLParam(r, "storeId"))
			if raw == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "store id is required"))
				return
			}
			storeID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store id"))
				return
			}

			if err := checker.OwnsStore(ctx, storeID, memberID); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			ctx = WithStoreID(ctx, storeID)
			if logg != nil {
				ctx = logg.WithStoreID(ctx, storeID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
