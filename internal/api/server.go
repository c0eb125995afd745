package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	httpmw "github.com/benmeehan/location-tracker/internal/middlewares/http"
	"github.com/benmeehan/location-tracker/internal/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// MaxBodyBytes caps the size of a request body.
const MaxBodyBytes = 1 << 20

// DeviceService is the device store as seen by the HTTP layer.
type DeviceService interface {
	UpsertLocation(ctx context.Context, id, name string, sample models.LocationSample) error
	DeleteDevice(ctx context.Context, id string) error
	ClearHistory(ctx context.Context, id string) error
	ListDevices(ctx context.Context) []models.DeviceSummary
	GetHistory(ctx context.Context, id string, limit int) (models.DeviceHistory, error)
	LastLocation(ctx context.Context, id string) (*models.LocationSample, error)
	DeviceCount() int
}

// Geocoder resolves coordinates into a human readable address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// Config holds server configuration
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigin   string
}

// DefaultConfig returns a default server configuration
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            3000,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		AllowedOrigin:   "*",
	}
}

// Server serves the ingest and query API.
type Server struct {
	httpServer *http.Server
	addr       string
	cfg        Config

	devices  DeviceService
	geocoder Geocoder
	version  *semver.Version
	logger   zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
}

// New creates a new server instance. A nil geocoder disables the address endpoint.
func New(cfg Config, devices DeviceService, geocoder Geocoder, version *semver.Version, logger zerolog.Logger) *Server {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}

	server := &Server{
		addr:     addr,
		cfg:      cfg,
		devices:  devices,
		geocoder: geocoder,
		version:  version,
		logger:   logger.With().Str("component", "http_api").Logger(),
		now:      time.Now,
	}

	mux := http.NewServeMux()
	// Register API routes
	server.registerRoutes(mux)

	server.httpServer = &http.Server{
		Addr: addr,
		Handler: httpmw.Chain(mux,
			httpmw.Recover(server.logger),
			httpmw.WithRequestID(),
			httpmw.AccessLog(server.logger),
			httpmw.CORS(cfg.AllowedOrigin),
			httpmw.LimitBody(MaxBodyBytes),
		),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return server
}

// Handler returns the root handler including middlewares.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// registerRoutes registers all API endpoints
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/location", s.handleIngestLocation)

	mux.HandleFunc("GET /api/devices", s.handleListDevices)
	mux.HandleFunc("DELETE /api/devices/{deviceId}", s.handleDeleteDevice)
	mux.HandleFunc("GET /api/devices/{deviceId}/history", s.handleGetHistory)
	mux.HandleFunc("DELETE /api/devices/{deviceId}/history", s.handleClearHistory)
	mux.HandleFunc("GET /api/devices/{deviceId}/address", s.handleGetAddress)
}

// Start binds the listening socket and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("http server is already running")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server stopped unexpectedly")
		}
	}(s.done)

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP server started")
	return nil
}

// Addr returns the bound address once started, or the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts the server down, waiting for in-flight requests.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return errors.New("http server is not running")
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	<-s.done
	s.listener = nil
	if err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.logger.Info().Msg("HTTP server shut down gracefully")
	return nil
}
