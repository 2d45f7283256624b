package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
)

func TestMemberScopeRequiresHeader(t *testing.T) {
	handler := MemberScope(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	for _, value := range []string{"", "not-a-uuid", uuid.Nil.String()} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stores", nil)
		if value != "" {
			req.Header.Set(memberIDHeader, value)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%q: expected 401 got %d", value, rec.Code)
		}
	}
}

func TestMemberScopeSeedsContext(t *testing.T) {
	memberID := uuid.New()
	var got uuid.UUID
	handler := MemberScope(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = MemberIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores", nil)
	req.Header.Set(memberIDHeader, memberID.String())
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != memberID {
		t.Fatalf("expected member %s, got %s", memberID, got)
	}
}

type stubOwnerChecker struct {
	owner uuid.UUID
	store uuid.UUID
}

func (s stubOwnerChecker) OwnsStore(_ context.Context, storeID, memberID uuid.UUID) error {
	if storeID != s.store || memberID != s.owner {
		return pkgerrors.New(pkgerrors.CodeNotFound, "store not found").WithReason(pkgerrors.ReasonNoSuchStore)
	}
	return nil
}

func TestStoreOwnership(t *testing.T) {
	owner, storeID := uuid.New(), uuid.New()
	checker := stubOwnerChecker{owner: owner, store: storeID}

	tests := []struct {
		name     string
		member   uuid.UUID
		storeRaw string
		want     int
	}{
		{"owner", owner, storeID.String(), http.StatusOK},
		{"stranger", uuid.New(), storeID.String(), http.StatusNotFound},
		{"bad store id", owner, "nope", http.StatusBadRequest},
	}

	for _, tt := range tests {
		var seen uuid.UUID
		r := chi.NewRouter()
		r.Route("/stores/{storeId}", func(r chi.Router) {
			r.Use(StoreOwnership(checker, nil))
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				seen, _ = StoreIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})
		})

		req := httptest.NewRequest(http.MethodGet, "/stores/"+tt.storeRaw+"/", nil)
		req = req.WithContext(WithMemberID(req.Context(), tt.member))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != tt.want {
			t.Fatalf("%s: expected %d got %d", tt.name, tt.want, rec.Code)
		}
		if tt.want == http.StatusOK && seen != storeID {
			t.Fatalf("%s: expected store in context", tt.name)
		}
	}
}
