// Package mockserver provides a stand-in for a gglsbl-rest service.
// It serves the status and lookup endpoints from an in-memory blocklist and
// is used by the client tests and by the "gglsbl mock" command for local work.
package mockserver

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// TestURL is Google's safe browsing test page, blocklisted by default.
const TestURL = "http://testsafebrowsing.appspot.com/apiv4/ANY_PLATFORM/SOCIAL_ENGINEERING/URL/"

// Config controls the mock service.
type Config struct {
	// Environment is reported by the status endpoint.
	Environment string

	// Latency is added before every response.
	Latency time.Duration

	// RateLimit is the maximum requests per second per client, 0 disables it.
	RateLimit float64

	// Blocklist maps URLs to the threat type reported for them.
	Blocklist map[string]string

	Logger *slog.Logger
}

// Match is one entry of a lookup answer.
type Match struct {
	Threat      string `json:"threat"`
	Platform    string `json:"platform"`
	ThreatEntry string `json:"threat_entry"`
}

// LookupResponse is the body of a lookup answer.
type LookupResponse struct {
	URL     string  `json:"url"`
	Matches []Match `json:"matches"`
}

// StatusResponse is the body of the status endpoint.
type StatusResponse struct {
	Environment  string    `json:"environment"`
	Alternatives int       `json:"alternatives"`
	Blocklisted  int       `json:"blocklisted"`
	Started      time.Time `json:"started"`
}

// Server is the mock gglsbl-rest service.
type Server struct {
	echo    *echo.Echo
	cfg     Config
	logger  *slog.Logger
	started time.Time

	mu        sync.RWMutex
	blocklist map[string]string
}

// New creates a mock server. TestURL is always blocklisted.
func New(cfg Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if cfg.Environment == "" {
		cfg.Environment = "mock"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		echo:      e,
		cfg:       cfg,
		logger:    logger.With("component", "mockserver"),
		started:   time.Now().UTC(),
		blocklist: map[string]string{TestURL: "SOCIAL_ENGINEERING"},
	}
	for u, threat := range cfg.Blocklist {
		s.blocklist[u] = threat
	}

	e.HTTPErrorHandler = s.errorHandler
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogRequestID: true,
		LogLatency:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("request",
				"status", v.Status,
				"uri", v.URI,
				"request_id", v.RequestID,
				"latency", v.Latency,
			)
			return nil
		},
	}))

	if s.cfg.RateLimit > 0 {
		s.echo.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
			rate.Limit(s.cfg.RateLimit),
		)))
	}

	if s.cfg.Latency > 0 {
		s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				select {
				case <-time.After(s.cfg.Latency):
				case <-c.Request().Context().Done():
					return c.Request().Context().Err()
				}
				return next(c)
			}
		})
	}
}

func (s *Server) setupRoutes() {
	g := s.echo.Group("/gglsbl")
	g.GET("/status", s.status)
	g.GET("/lookup/:url", s.lookup)
}

// Handler exposes the server as an http.Handler, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until the server is shut down.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Block adds u to the blocklist.
func (s *Server) Block(u, threat string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocklist[u] = threat
}

// Blocklisted returns the blocklisted URLs in sorted order.
func (s *Server) Blocklisted() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	urls := make([]string, 0, len(s.blocklist))
	for u := range s.blocklist {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

func (s *Server) status(c echo.Context) error {
	s.mu.RLock()
	n := len(s.blocklist)
	s.mu.RUnlock()

	return c.JSON(http.StatusOK, StatusResponse{
		Environment:  s.cfg.Environment,
		Alternatives: 0,
		Blocklisted:  n,
		Started:      s.started,
	})
}

func (s *Server) lookup(c echo.Context) error {
	// The whole URL arrives as one fully escaped segment; unescape it once
	// from the raw path.
	raw := strings.TrimPrefix(c.Request().URL.EscapedPath(), "/gglsbl/lookup/")
	target, err := url.PathUnescape(raw)
	if err != nil || strings.TrimSpace(target) == "" {
		return badRequest("invalid url")
	}

	s.mu.RLock()
	threat, ok := s.blocklist[target]
	s.mu.RUnlock()

	if !ok {
		return c.JSON(http.StatusNotFound, LookupResponse{URL: target, Matches: []Match{}})
	}

	return c.JSON(http.StatusOK, LookupResponse{
		URL: target,
		Matches: []Match{{
			Threat:      threat,
			Platform:    "ANY_PLATFORM",
			ThreatEntry: "URL",
		}},
	})
}
