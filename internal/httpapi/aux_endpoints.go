package httpapi

import (
	"context"
	"net/http"
	"time"
)

const readyTimeout = 800 * time.Millisecond

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

// readyz pings every distinct store implementing ReadyChecker with a short timeout.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	seen := make(map[ReadyChecker]struct{}, len(s.stores))
	for _, st := range s.stores {
		rc, ok := st.(ReadyChecker)
		if !ok {
			continue
		}
		if _, dup := seen[rc]; dup {
			continue
		}
		seen[rc] = struct{}{}
		if err := rc.Ready(ctx); err != nil {
			s.log.Warn("readiness check failed", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
