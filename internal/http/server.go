package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"txdash/internal/core"
	applog "txdash/internal/log"
	"txdash/internal/middleware/cors"
	"txdash/internal/middleware/ratelimit"
	"txdash/internal/middleware/security"
	"txdash/internal/middleware/trace"
)

// DatasetStatusHeader reports the seeding state on every response.
const DatasetStatusHeader = "X-Dataset-Status"

// Analytics answers the dashboard queries.
type Analytics interface {
	ListTransactions(ctx context.Context, p core.ListParams) ([]core.Transaction, error)
	Statistics(ctx context.Context, m core.Month) (core.Statistics, error)
	BarChart(ctx context.Context, m core.Month) ([]core.BucketCount, error)
	PieChart(ctx context.Context, m core.Month) ([]core.CategoryCount, error)
	Combined(ctx context.Context, m core.Month) (core.CombinedData, error)
}

// StatusProvider exposes the current seeding state.
type StatusProvider interface {
	Status() core.DatasetStatus
}

// Options configure a Server. Nil handlers leave their routes unmounted.
type Options struct {
	Analytics Analytics
	Status    StatusProvider

	// GateUntilReady answers /api/* with 503 until the dataset is ready.
	GateUntilReady    bool
	CORSAllowedOrigin string
	// RateLimitRPM is the per-client request budget; 0 disables limiting.
	RateLimitRPM int

	Metrics      http.Handler
	Observer     trace.Observer
	StatusStream http.Handler
	Logger       *applog.Logger
}

type Server struct {
	http.Server
	analytics Analytics
	status    StatusProvider
	gate      bool
	logger    *applog.Logger
	detector  *security.Detector
	limiter   *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Wrap(nil, applog.ComponentHTTP)
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		analytics: opts.Analytics,
		status:    opts.Status,
		gate:      opts.GateUntilReady,
		logger:    logger.WithComponent(applog.ComponentHTTP),
		detector:  security.NewDetector(logger),
	}

	mux := http.NewServeMux()
	mux.Handle("/api/transactions", s.api(s.handleTransactions))
	mux.Handle("/api/statistics", s.api(s.handleStatistics))
	mux.Handle("/api/bar-chart", s.api(s.handleBarChart))
	mux.Handle("/api/pie-chart", s.api(s.handlePieChart))
	mux.Handle("/api/combined-data", s.api(s.handleCombined))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	if opts.StatusStream != nil {
		mux.Handle("GET /ws/status", opts.StatusStream)
	}
	mux.HandleFunc("/", handleNotFound)

	var handler http.Handler = mux
	handler = s.withDatasetStatus(handler)
	if opts.RateLimitRPM > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM})
		handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(handler)
	}
	handler = cors.Middleware(opts.CORSAllowedOrigin)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	// outermost, so it sees the pattern the mux matched
	handler = trace.NewMiddleware(logger, s.detector.ExtractClientIP, opts.Observer).Middleware(handler)

	s.Handler = handler
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) datasetStatus() core.DatasetStatus {
	if s.status == nil {
		return core.DatasetStatus{State: core.StateReady}
	}
	return s.status.Status()
}

// api wraps a JSON endpoint: GET only, optionally gated on readiness.
func (s *Server) api(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			s.writeResponse(w, r, MethodNotAllowedError(http.MethodGet))
			return
		}
		if s.gate && s.datasetStatus().State != core.StateReady {
			s.writeResponse(w, r, ServiceUnavailableError())
			return
		}
		next(w, r)
	})
}

func (s *Server) withDatasetStatus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(DatasetStatusHeader, string(s.datasetStatus().State))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.writeResponse(w, r, TooManyRequestsError())
}
