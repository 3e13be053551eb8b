package utils

import (
	"net/http"
	"strings"
)

var (
	allowedHeaders = []string{
		"Content-Type",
		"X-Player-Id",
		"Connect-Protocol-Version",
		"Connect-Timeout-Ms",
		"Grpc-Timeout",
		"X-Grpc-Web",
		"X-User-Agent",
	}
	exposedHeaders = []string{
		"Grpc-Status",
		"Grpc-Message",
		"Grpc-Status-Details-Bin",
		"X-Request-Id",
	}
)

// WithCORS opens every route to browser clients and answers preflight
// requests directly.
func WithCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Access-Control-Allow-Origin", "*")
		hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		hdr.Set("Access-Control-Allow-Headers", strings.Join(allowedHeaders, ", "))
		hdr.Set("Access-Control-Expose-Headers", strings.Join(exposedHeaders, ", "))

		if r.Method == http.MethodOptions {
			hdr.Set("Access-Control-Max-Age", "86400")
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}
