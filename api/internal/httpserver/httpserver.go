package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"healthtech/api/internal/handle"
	"healthtech/api/internal/metrics"
	"healthtech/api/internal/middleware"
	"healthtech/api/internal/site"
)

const shutdownGrace = 10 * time.Second

// Pinger reports whether the audit database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Handle  *handle.Handle
	Site    *site.Site
	Metrics *metrics.Registry // may be nil; /metrics then reports nothing
	DB      Pinger            // nil when the audit log is disabled
}

func NewRouter(d Deps) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(d.Metrics))

	r.HandleFunc("/api/analyze-prescription", d.Handle.Analyze)
	r.HandleFunc("/healthz", healthz(d.DB)).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/metrics", d.Metrics.HandleText).Methods(http.MethodGet)
	r.HandleFunc("/metrics.json", d.Metrics.HandleJSON).Methods(http.MethodGet)

	if d.Site != nil {
		r.HandleFunc("/", d.Site.Home).Methods(http.MethodGet, http.MethodHead)
		r.HandleFunc("/pathology/blood-analysis", d.Site.BloodAnalysis).Methods(http.MethodGet, http.MethodHead)
		r.PathPrefix("/static/").Handler(d.Site.Static()).Methods(http.MethodGet, http.MethodHead)
	}
	return r
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func New(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Serve runs srv until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server) error {
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	log.Info().Msg("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
