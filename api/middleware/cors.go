package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

const (
	replayedHeader   = "Idempotent-Replayed"
	retryAfterHeader = "Retry-After"
)

// CORS lets the configured point-of-sale front ends call the API. A "*"
// entry opens the API to any origin, without credentials.
func CORS(origins []string) func(http.Handler) http.Handler {
	wildcard := slices.Contains(origins, "*")
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Content-Type", memberIDHeader, idempotencyHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, replayedHeader, retryAfterHeader},
		AllowCredentials: !wildcard,
		MaxAge:           600,
	}).Handler
}
