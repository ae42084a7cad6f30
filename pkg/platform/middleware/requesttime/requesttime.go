// Package requesttime pins one "now" per HTTP request so session touches,
// logs and latency measurements agree on when the request started.
package requesttime

import (
	"net/http"
	"time"

	"addressbook/pkg/requestcontext"
)

// Middleware stores the request start time in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
