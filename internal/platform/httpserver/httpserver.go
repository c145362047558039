package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"presence/internal/platform/config"
)

const idleTimeout = 2 * time.Minute

// New builds the HTTP server. Writes get the request timeout plus headroom
// for encoding the response; a zero request timeout leaves writes unbounded.
func New(cfg config.Server, handler http.Handler, logger *slog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       idleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	if cfg.RequestTimeout > 0 {
		srv.WriteTimeout = cfg.RequestTimeout + 5*time.Second
	}
	return srv
}
