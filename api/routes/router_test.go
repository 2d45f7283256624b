package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mylittlestore/pos-backend/api/controllers"
	"github.com/mylittlestore/pos-backend/internal/items"
	"github.com/mylittlestore/pos-backend/internal/stores"
	"github.com/mylittlestore/pos-backend/pkg/config"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubStores struct {
	stores.Service
	owner uuid.UUID
}

func (s *stubStores) OwnsStore(ctx context.Context, storeID, memberID uuid.UUID) error {
	if memberID != s.owner {
		return pkgerrors.New(pkgerrors.CodeNotFound, "store not found").WithReason(pkgerrors.ReasonNoSuchStore)
	}
	return nil
}

func (s *stubStores) List(ctx context.Context, memberID uuid.UUID) ([]stores.StoreDTO, error) {
	return []stores.StoreDTO{}, nil
}

type stubItems struct {
	items.Service
	listedStore uuid.UUID
}

func (s *stubItems) List(ctx context.Context, storeID uuid.UUID, params pagination.Params) (*pagination.Page[items.ItemDTO], error) {
	s.listedStore = storeID
	return &pagination.Page[items.ItemDTO]{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Env: "dev", Port: "8080", CORSOrigins: []string{"http://localhost:3000"}},
		RateLimit: config.RateLimitConfig{Window: time.Minute, Limit: 100},
	}
}

func newTestRouter(t *testing.T, deps Deps) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug")})
	return NewRouter(testConfig(), logg, deps)
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t, Deps{Pingers: map[string]controllers.Pinger{"db": stubPinger{}}})

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, resp.Code, path)
	}
}

func TestAPIRequiresMember(t *testing.T) {
	router := newTestRouter(t, Deps{Stores: &stubStores{}})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/stores", nil))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestStoreScopedRoutesCheckOwnership(t *testing.T) {
	owner := uuid.New()
	storeID := uuid.New()
	itemSvc := &stubItems{}
	router := newTestRouter(t, Deps{Stores: &stubStores{owner: owner}, Items: itemSvc})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores/"+storeID.String()+"/items", nil)
	req.Header.Set("X-Member-ID", uuid.NewString())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Equal(t, uuid.Nil, itemSvc.listedStore)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/stores/"+storeID.String()+"/items", nil)
	req.Header.Set("X-Member-ID", owner.String())
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Equal(t, storeID, itemSvc.listedStore)
}

func TestMemberRoutes(t *testing.T) {
	router := newTestRouter(t, Deps{Stores: &stubStores{}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores", nil)
	req.Header.Set("X-Member-ID", uuid.NewString())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestMetricsRouteMountedWhenProvided(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("# metrics"))
	})
	router := newTestRouter(t, Deps{MetricsHandler: metricsHandler})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "# metrics")
}
