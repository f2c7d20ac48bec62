package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/getmockd/decoy/pkg/codec"
	"github.com/getmockd/decoy/pkg/expect"
	"github.com/getmockd/decoy/pkg/logging"
	"github.com/getmockd/decoy/pkg/wsreact"
)

var (
	// ErrServerRunning is returned by Start when the server is already up.
	ErrServerRunning = errors.New("engine: server already running")
	// ErrServerStopped is returned by operations that need a live listener.
	ErrServerStopped = errors.New("engine: server not running")
)

// Config holds server configuration.
type Config struct {
	// Addr is the listen address. Defaults to an ephemeral localhost port.
	Addr string `json:"addr" yaml:"addr"`

	// NoMatchStatus is the status returned when no expectation matches.
	// Defaults to 404.
	NoMatchStatus int `json:"noMatchStatus" yaml:"noMatchStatus"`

	// Logger receives engine diagnostics. Defaults to a no-op logger.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// DefaultConfig returns sensible defaults for a test-double server.
func DefaultConfig() Config {
	return Config{
		Addr:          "127.0.0.1:0",
		NoMatchStatus: http.StatusNotFound,
	}
}

// Server is the programmable test double: an HTTP listener whose
// behavior is whatever expectations say it is. Expectations register in
// the configuration phase; requests match concurrently during the
// matching phase; Verify checks call counts afterward.
type Server struct {
	cfg   Config
	log   *slog.Logger
	store *Store
	ws    *wsreact.Engine

	decoders *codec.DecoderRegistry
	encoders *codec.EncoderRegistry

	mu       sync.Mutex
	listener net.Listener
	httpSrv  *http.Server
	running  bool

	reportMu   sync.Mutex
	lastReport *Report
}

// New creates a server with the given configuration. Nothing listens
// until Start.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	if cfg.NoMatchStatus == 0 {
		cfg.NoMatchStatus = http.StatusNotFound
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	s := &Server{
		cfg:      cfg,
		log:      log,
		store:    NewStore(),
		decoders: codec.NewDefaultDecoderRegistry(),
		encoders: codec.NewDefaultEncoderRegistry(),
	}
	s.ws = wsreact.NewEngine(log, s.store.Signal)
	return s
}

// NewDefault creates a server with default configuration.
func NewDefault() *Server {
	return New(DefaultConfig())
}

// Expect registers expectations in order. The first configuration error
// aborts registration and is returned.
func (s *Server) Expect(expectations ...*expect.Expectation) error {
	for _, e := range expectations {
		if err := s.store.Register(e); err != nil {
			return fmt.Errorf("engine: register expectation: %w", err)
		}
		s.log.Debug("expectation registered", "id", e.ID(), "expectation", e.Describe())
	}
	return nil
}

// Require registers cross-cutting requirements. A requirement is ANDed
// into every expectation whose method and path it applies to.
func (s *Server) Require(requirements ...*expect.Requirement) error {
	for _, r := range requirements {
		if err := s.store.RegisterRequirement(r); err != nil {
			return fmt.Errorf("engine: register requirement: %w", err)
		}
	}
	return nil
}

// ExpectWebSocket registers WebSocket expectations.
func (s *Server) ExpectWebSocket(expectations ...*wsreact.Expectation) {
	for _, e := range expectations {
		s.ws.Register(e)
	}
}

// GlobalDecoder installs a server-global decoder for a content type.
// Expectation-local decoders shadow it.
func (s *Server) GlobalDecoder(contentType string, d codec.Decoder) {
	s.decoders.Register(contentType, d)
}

// GlobalEncoder installs a server-global encoder for a content type and
// payload type (nil sample matches any payload type).
func (s *Server) GlobalEncoder(contentType string, sample interface{}, e codec.Encoder) {
	s.encoders.Register(contentType, sample, e)
}

// IsConfigured reports whether any HTTP or WebSocket expectations are
// registered.
func (s *Server) IsConfigured() bool {
	return s.store.Len() > 0 || s.ws.HasExpectations()
}

// Start binds the listener and begins serving. Returns ErrServerRunning
// if already started.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrServerRunning
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("engine: listen on %s: %w", s.cfg.Addr, err)
	}

	s.listener = ln
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.running = true

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("serve failed", "error", err)
		}
	}()

	s.log.Info("decoy listening", "addr", ln.Addr().String())
	return nil
}

// Stop shuts the listener down gracefully. In-flight matches complete;
// counters are never rolled back.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrServerStopped
	}
	s.running = false

	s.ws.Shutdown()
	err := s.httpSrv.Shutdown(ctx)
	s.httpSrv = nil
	s.listener = nil
	return err
}

// Close stops the server immediately, bounded by a short grace period.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.Stop(ctx)
	if errors.Is(err, ErrServerStopped) {
		return nil
	}
	return err
}

// ClearExpectations discards every expectation, requirement, and
// WebSocket expectation, counters included. Live WebSocket connections
// are closed.
func (s *Server) ClearExpectations() {
	s.store.Clear()
	s.ws.Clear()
	s.reportMu.Lock()
	s.lastReport = nil
	s.reportMu.Unlock()
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// URL returns the base URL of the running server, or "" before Start.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	return "http://" + addr
}

// Verify reports whether every expectation's call-count constraint is
// met right now. Non-destructive.
func (s *Server) Verify() bool {
	return VerifyNow(s.store, s.ws.Satisfied)
}

// VerifyTimeout blocks until every constraint is met or the timeout
// elapses. WaitForever disables the deadline. Workers keep serving while
// the caller waits.
func (s *Server) VerifyTimeout(timeout time.Duration) bool {
	return VerifyTimeout(s.store, timeout, s.ws.Satisfied)
}

// LastReport returns the mismatch report from the most recent unmatched
// request, or nil.
func (s *Server) LastReport() *Report {
	s.reportMu.Lock()
	defer s.reportMu.Unlock()
	return s.lastReport
}

func (s *Server) setLastReport(r *Report) {
	s.reportMu.Lock()
	s.lastReport = r
	s.reportMu.Unlock()
}
