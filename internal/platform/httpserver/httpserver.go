package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with timeouts sized for the capture API. The
// write timeout leaves room for a full lookup round trip.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
