package httpapi

import (
	"calc-server/internal/cache"
	"calc-server/internal/calc"
	"calc-server/internal/metrics"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Options struct {
	Engine      *calc.Engine
	Cache       cache.Cache
	Metrics     *metrics.Registry
	Logger      *zap.Logger
	CORSOrigin  string
	AllowedIPs  []string
	BodyLimitMB int64
	// CacheKeyPrefix separates entries of differently configured instances
	// sharing one Redis.
	CacheKeyPrefix string
}

// Server serves the calculation API.
type Server struct {
	engine     *calc.Engine
	cache      cache.Cache
	metrics    *metrics.Registry
	logger     *zap.Logger
	corsOrigin string
	allowedIPs map[string]struct{}
	bodyLimit  int64
	keyPrefix  string
	started    time.Time
	now        func() time.Time
}

func New(opts Options) *Server {
	s := &Server{
		engine:     opts.Engine,
		cache:      opts.Cache,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		corsOrigin: opts.CORSOrigin,
		bodyLimit:  opts.BodyLimitMB << 20,
		keyPrefix:  "calc:" + opts.CacheKeyPrefix,
		started:    time.Now(),
		now:        time.Now,
	}
	if s.engine == nil {
		s.engine = calc.NewEngine(calc.Options{Logger: opts.Logger})
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.bodyLimit <= 0 {
		s.bodyLimit = 50 << 20
	}
	for _, ip := range opts.AllowedIPs {
		if ip = strings.TrimSpace(ip); ip != "" {
			if s.allowedIPs == nil {
				s.allowedIPs = make(map[string]struct{})
			}
			s.allowedIPs[ip] = struct{}{}
		}
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(newCORS(s.corsOrigin).Handler)
	r.Use(s.ipFilter)
	r.Use(s.limitBody)

	r.Get("/health", s.handleHealth)
	r.Post("/calculate", s.handleCalculate)
	r.Post("/calculate/export", s.handleExport)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleNotFound)
	return r
}

// Timing reports when a calculation ran.
type Timing struct {
	StartedAt   string `json:"startedAt"`
	CompletedAt string `json:"completedAt"`
	DurationMs  int64  `json:"durationMs"`
}

// Response is the envelope of every JSON API answer. Data holds the
// []calc.OfferResult array on success.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Timing  *Timing         `json:"timing,omitempty"`
	Cached  bool            `json:"cached,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
