package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mylittlestore/pos-backend/api/responses"
	pkgerrors "github.com/mylittlestore/pos-backend/pkg/errors"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	pkgredis "github.com/mylittlestore/pos-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxKeyLength      = 255
	maxReplayBody     = 1 << 20

	standardReplayTTL = 24 * time.Hour
	paymentReplayTTL  = 7 * 24 * time.Hour
	// A reservation outlives any single request; it is swapped or deleted
	// when the handler returns.
	inFlightTTL = 2 * time.Minute
)

// ResponseStore persists replayable responses.
type ResponseStore interface {
	pkgredis.IdempotencyStore
	Swap(ctx context.Context, key, expected, value string, ttl time.Duration) (bool, error)
}

// Write routes that demand an Idempotency-Key. "*" matches one path segment.
var replayableRoutes = []struct {
	pattern string
	ttl     time.Duration
}{
	{"/api/v1/stores", standardReplayTTL},
	{"/api/v1/stores/*/status", standardReplayTTL},
	{"/api/v1/stores/*/tables", standardReplayTTL},
	{"/api/v1/stores/*/items", standardReplayTTL},
	{"/api/v1/stores/*/orders", standardReplayTTL},
	{"/api/v1/stores/*/orders/*/items", standardReplayTTL},
	{"/api/v1/stores/*/orders/*/payments", paymentReplayTTL},
	{"/api/v1/stores/*/orders/*/payments/*/abort", paymentReplayTTL},
	{"/api/v1/stores/*/orders/*/payments/*/methods", paymentReplayTTL},
	{"/api/v1/stores/*/orders/*/payments/*/methods/*/success", paymentReplayTTL},
	{"/api/v1/stores/*/orders/*/payments/*/methods/*/charge", paymentReplayTTL},
}

// storedResponse is either a reservation held by the request in flight or
// the response it produced.
type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	Nonce       string `json:"nonce,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency runs a keyed write at most once per member and path and
// replays its response to retries. A retry with a different body is
// rejected, as is one that arrives while the first is still running.
// Responses of 5xx are not kept so the client may retry.
func Idempotency(store ResponseStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := replayTTL(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			switch {
			case clientKey == "":
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case len(clientKey) > maxKeyLength:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long").
					WithDetails(map[string]any{"max": maxKeyLength}))
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxReplayBody))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(requestScope(r), clientKey)
			hash := requestHash(body)
			reservation, err := json.Marshal(storedResponse{Pending: true, Nonce: uuid.NewString(), RequestHash: hash})
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode reservation"))
				return
			}

			reserved, err := store.SetNX(ctx, key, string(reservation), inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replay(ctx, w, store, key, hash, logg)
				return
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			var captured bytes.Buffer
			ww.Tee(&captured)

			cleanup := context.WithoutCancel(ctx)
			defer func() {
				if p := recover(); p != nil {
					logError(ctx, logg, "release idempotency key", store.Del(cleanup, key))
					panic(p)
				}
			}()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				logError(ctx, logg, "release idempotency key", store.Del(cleanup, key))
				return
			}

			done, err := json.Marshal(storedResponse{
				RequestHash: hash,
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        captured.Bytes(),
			})
			if err != nil {
				logError(ctx, logg, "encode idempotent response", err)
				return
			}
			swapped, err := store.Swap(cleanup, key, string(reservation), string(done), ttl)
			if err != nil {
				logError(ctx, logg, "persist idempotent response", err)
			} else if !swapped && logg != nil {
				logg.Warn(ctx, "idempotency reservation expired before the response was stored")
			}
		})
	}
}

func replay(ctx context.Context, w http.ResponseWriter, store ResponseStore, key, hash string, logg *logger.Logger) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// Released between our SetNX and Get.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key failed, retry"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotent response"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotent response"))
		return
	}
	switch {
	case stored.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case stored.Pending:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

func requestScope(r *http.Request) string {
	member := "anonymous"
	if memberID, ok := MemberIDFromContext(r.Context()); ok {
		member = memberID.String()
	}
	return member + "|" + r.Method + "|" + strings.TrimRight(r.URL.Path, "/")
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func replayTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost {
		return 0, false
	}
	got := strings.Split(strings.Trim(path, "/"), "/")
	for _, route := range replayableRoutes {
		if segmentsMatch(strings.Split(strings.Trim(route.pattern, "/"), "/"), got) {
			return route.ttl, true
		}
	}
	return 0, false
}

func segmentsMatch(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, want := range pattern {
		if want != "*" && want != path[i] {
			return false
		}
	}
	return true
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
