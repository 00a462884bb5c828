package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/webinspector/internal/domain"
	"github.com/hamed0406/webinspector/internal/events"
	apimw "github.com/hamed0406/webinspector/internal/httpapi/middleware"
)

// Engine is the console-facing side of the scheduler.
type Engine interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	UpdateInterval(ctx context.Context, minutes int) error
	Trigger() error
	Status() domain.RunState
}

type CheckStore interface {
	Checks(ctx context.Context) (domain.CheckList, error)
	UpsertNetworkCheck(ctx context.Context, c domain.NetworkCheck) (domain.NetworkCheck, error)
	UpsertPageCheck(ctx context.Context, c domain.PageCheck) (domain.PageCheck, error)
	DeleteCheck(ctx context.Context, kind domain.Kind, id domain.CheckID) error
	AutoStart(ctx context.Context) (bool, error)
	SetAutoStart(ctx context.Context, v bool) error
}

type ResultStore interface {
	List(ctx context.Context) ([]domain.RunResult, error)
	Clear(ctx context.Context) error
	Max() int
}

type Subscriber interface {
	Subscribe() (<-chan events.Event, func())
	Subscribers() int
}

type Server struct {
	Logger   *zap.Logger
	Engine   Engine
	Checks   CheckStore
	Results  ResultStore
	Events   Subscriber
	Backends map[string]string

	// KeepAlive is the SSE comment interval.
	KeepAlive time.Duration
	now       func() time.Time
}

func NewServer(l *zap.Logger, e Engine, cs CheckStore, rs ResultStore, sub Subscriber) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{
		Logger:    l,
		Engine:    e,
		Checks:    cs,
		Results:   rs,
		Events:    sub,
		KeepAlive: 25 * time.Second,
		now:       time.Now,
	}
}

type RouterOptions struct {
	AllowedOrigins []string
	RatePerMinute  int
	RateBurst      int
	Metrics        http.Handler
}

func (s *Server) Router(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(apimw.AccessLog(s.Logger))
	if len(opts.AllowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		// SSE streams are long-lived and stay outside the rate limiter.
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(opts.RatePerMinute, opts.RateBurst))

			r.Post("/inspection/start", s.handleStart)
			r.Post("/inspection/stop", s.handleStop)
			r.Get("/inspection/status", s.handleStatus)
			r.Put("/inspection/interval", s.handleInterval)
			r.Post("/inspection/run", s.handleRun)

			r.Get("/results", s.handleListResults)
			r.Delete("/results", s.handleClearResults)

			r.Get("/checks", s.handleListChecks)
			r.Post("/checks/network", s.handleUpsertNetwork)
			r.Post("/checks/page", s.handleUpsertPage)
			r.Delete("/checks/{kind}/{id}", s.handleDeleteCheck)

			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handlePutSettings)

			r.Get("/report", s.handleReport)
			r.Get("/diagnostics", s.handleDiagnostics)
		})
	})

	return otelhttp.NewHandler(r, "console",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/healthz" && r.URL.Path != "/metrics" }),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var okBody = map[string]bool{"success": true}
