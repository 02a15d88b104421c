// Package api exposes availability, pricing, the booking flow and admin
// operations over JSON HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"studiobook/internal/booking"
	"studiobook/internal/manager"
	"studiobook/internal/metrics"
	"studiobook/internal/settings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// AdminKeyHeader carries the admin API key.
const AdminKeyHeader = "X-Admin-Key"

// MaxCalendarDays bounds the calendar range request.
const MaxCalendarDays = 62

// Check reports whether a dependency is ready.
type Check func(ctx context.Context) error

// Deps are the services behind the API.
type Deps struct {
	Bookings *booking.Service
	Manager  *manager.Service
	Settings *settings.Service
	// Checks are run by /readyz, keyed by dependency name.
	Checks map[string]Check
}

// Options configure the API surface.
type Options struct {
	AdminKey      string
	RatePerSecond float64
	RateBurst     int
}

// Server routes API requests.
type Server struct {
	bookings *booking.Service
	manager  *manager.Service
	settings *settings.Service
	checks   map[string]Check
	adminKey string
	validate *validator.Validate
	limiter  *ipLimiter
	now      func() time.Time
	logger   zerolog.Logger
	router   chi.Router
}

func NewServer(deps Deps, opts Options, logger zerolog.Logger) *Server {
	s := &Server{
		bookings: deps.Bookings,
		manager:  deps.Manager,
		settings: deps.Settings,
		checks:   deps.Checks,
		adminKey: opts.AdminKey,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
		logger:   logger.With().Str("component", "api").Logger(),
	}
	if opts.RatePerSecond > 0 {
		s.limiter = newIPLimiter(rate.Limit(opts.RatePerSecond), opts.RateBurst)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Get("/availability", s.handleAvailability)
		r.Get("/availability/calendar", s.handleCalendar)
		r.Get("/end-times", s.handleEndTimes)
		r.Post("/quote", s.handleQuote)
		r.Get("/catalog", s.handleCatalog)

		r.Route("/drafts", func(r chi.Router) {
			r.Post("/", s.handleStartDraft)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDraft)
				r.Delete("/", s.handleCancelDraft)
				r.Get("/quote", s.handleDraftQuote)
				r.Post("/back", s.handleDraftBack)
				r.Post("/submit", s.handleSubmitDraft)
				r.Patch("/{step}", s.handleDraftStep)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)

			r.Get("/dashboard", s.handleDashboard)
			r.Route("/bookings", func(r chi.Router) {
				r.Get("/", s.handleListBookings)
				r.Get("/export.xlsx", s.handleExportBookings)
				r.Get("/{id}", s.handleGetBooking)
				r.Post("/{id}/approve", s.handleApprove)
				r.Post("/{id}/reject", s.handleReject)
			})

			r.Route("/slot-config", func(r chi.Router) {
				r.Get("/", s.handleGetSlotConfig)
				r.Put("/", s.handlePutSlotConfig)
				r.Post("/ranges", s.handleAddRange)
				r.Put("/ranges/{index}", s.handleUpdateRange)
				r.Delete("/ranges/{index}", s.handleRemoveRange)
				r.Post("/toggle", s.handleToggleDay)
				r.Delete("/dates/{date}", s.handleClearDate)
			})

			r.Get("/rate-cards", s.handleGetRateCard)
			r.Put("/rate-cards", s.handlePutRateCard)
			r.Get("/booked-out-dates", s.handleGetBookedOut)
			r.Put("/booked-out-dates", s.handlePutBookedOut)
		})
	})

	return r
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		metrics.ObserveHTTP(route, strconv.Itoa(sw.status), elapsed.Seconds())

		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", sw.status).
			Dur("duration", elapsed).
			Msg("Request handled")
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("Handler panic")
				writeError(w, errInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(AdminKeyHeader)
		if s.adminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminKey)) != 1 {
			writeError(w, errUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ipLimiter keeps one token bucket per client address.
type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newIPLimiter(limit rate.Limit, burst int) *ipLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ipLimiter{limiters: make(map[string]*rate.Limiter), limit: limit, burst: burst}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.Warn().Err(err).Str("dependency", name).Msg("Readiness check failed")
			http.Error(w, name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
