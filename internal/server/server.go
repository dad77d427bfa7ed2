package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"share-drop/internal/config"
	"share-drop/internal/files"
)

// Pinger reports whether the catalog database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr  string // e.g. ":5000"
	Build config.BuildInfo

	Auth    AuthConfig
	Files   *files.Service
	Catalog Pinger

	MaxUploadBytes int64
	LoginRate      int // login attempts per minute per client IP

	Logger  *zap.Logger
	Metrics *Metrics
}

type Server struct {
	httpServer *http.Server
	limiter    *rateLimiter
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(cfg.Build)
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = config.DefaultMaxUploadBytes
	}
	if cfg.LoginRate <= 0 {
		cfg.LoginRate = 10
	}

	limiter := newRateLimiter(cfg.LoginRate, time.Minute)

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", cfg.indexHandler())
	mux.Handle("GET /login", cfg.loginPageHandler())
	mux.Handle("POST /login", cfg.loginHandler(limiter))
	mux.Handle("GET /logout", cfg.Auth.requirePageAuth(cfg.logoutHandler()))
	mux.Handle("POST /upload", cfg.Auth.requireAPIAuth(cfg.uploadHandler()))
	mux.Handle("GET /download/{id}", cfg.downloadHandler())
	mux.Handle("POST /delete/{id}", cfg.Auth.requireAPIAuth(cfg.deleteHandler()))
	mux.Handle("GET /health", cfg.healthHandler())
	mux.Handle("GET /ready", cfg.readyHandler())
	mux.Handle("GET /metrics", cfg.Metrics.Handler())

	// requestID -> logging -> security headers -> proxy prefix -> mux
	var handler http.Handler = mux
	handler = proxyMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = loggingMiddleware(cfg.Logger, cfg.Metrics)(handler)
	handler = requestIDMiddleware(handler)

	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          zap.NewStdLog(cfg.Logger.Named("http")),
	}

	return &Server{httpServer: s, limiter: limiter}
}

// Handler returns the fully wrapped request handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.stop()
	return s.httpServer.Shutdown(ctx)
}
