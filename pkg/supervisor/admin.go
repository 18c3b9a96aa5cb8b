package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/cuemby/shepherd/pkg/metrics"
)

// adminServer is the supervisor's own observability endpoint, separate
// from the worker fleet's shared port: /healthz reports fleet counts
// and /metrics serves the Prometheus registry.
type adminServer struct {
	server *http.Server
}

type healthzResponse struct {
	Status       string `json:"status"`
	Workers      int64  `json:"workers"`
	ShuttingDown bool   `json:"shutting_down"`
}

func (s *Supervisor) startAdmin() *adminServer {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              s.cfg.AdminListen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// the fleet keeps running without its admin endpoint
			s.logger.Warn().
				Str("addr", s.cfg.AdminListen).
				Err(err).
				Msg("admin endpoint failed")
		}
	}()
	s.logger.Info().Str("addr", s.cfg.AdminListen).Msg("admin endpoint listening")

	return &adminServer{server: srv}
}

// handleHealthz reads only the published snapshots, never control-loop
// state, so it is safe from any goroutine.
func (s *Supervisor) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	response := healthzResponse{
		Status:       "ok",
		Workers:      s.liveWorkers.Load(),
		ShuttingDown: s.adminDraining.Load(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

func (a *adminServer) close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = a.server.Shutdown(ctx)
}
