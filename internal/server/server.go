package server

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"

	"github.com/wolfeidau/devtls/internal/config"
	"github.com/wolfeidau/devtls/internal/files"
	httpmiddleware "github.com/wolfeidau/devtls/internal/http"
	"github.com/wolfeidau/devtls/internal/logger"
	"github.com/wolfeidau/devtls/internal/pki"
	"github.com/wolfeidau/devtls/internal/telemetry"
)

// Server serves a directory over HTTPS. Each accepted connection is handled
// on its own goroutine by net/http for the lifetime of the process.
type Server struct {
	cfg     config.Config
	log     zerolog.Logger
	banner  io.Writer
	metrics *telemetry.Metrics
	tracing bool

	root     *os.Root
	listener net.Listener
	srv      *http.Server
}

type Option func(*Server)

// WithBanner sets where the startup banner is printed, os.Stdout by default.
func WithBanner(w io.Writer) Option {
	return func(s *Server) { s.banner = w }
}

// WithMetrics overrides the instruments used to record requests and
// connections.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTracing wraps the handler with OpenTelemetry HTTP instrumentation.
func WithTracing(enabled bool) Option {
	return func(s *Server) { s.tracing = enabled }
}

func New(cfg config.Config, log zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		log:    log,
		banner: os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = telemetry.GetMetrics()
	}
	return s
}

// Run binds the listener and serves until the process exits.
func (s *Server) Run() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Listen resolves and validates the configuration, then binds the TLS
// listener. Missing TLS files are reported before any socket is opened.
func (s *Server) Listen() error {
	cfg, err := s.cfg.Resolve()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg

	root, err := files.Open(cfg.Dir)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		_ = root.Close()
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}

	cert, err := pki.LoadKeyPair(cfg.CertPath, cfg.KeyPath)
	if err != nil {
		_ = ln.Close()
		_ = root.Close()
		return fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	s.logCertificate(cert)

	srv := s.configureHTTPServer(s.handler(root))
	srv.TLSConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"http/1.1"},
	}
	if cfg.HTTP2 {
		// ALPN picks the first server protocol the client also offers
		srv.TLSConfig.NextProtos = []string{http2.NextProtoTLS, "http/1.1"}
		if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
			_ = ln.Close()
			_ = root.Close()
			return fmt.Errorf("failed to configure HTTP/2: %w", err)
		}
	}

	s.root = root
	s.srv = srv
	// Serve may adjust srv.TLSConfig, the listener keeps its own copy
	s.listener = tls.NewListener(ln, srv.TLSConfig.Clone())

	return nil
}

// Addr returns the bound address, nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Config returns the resolved configuration once Listen has succeeded.
func (s *Server) Config() config.Config {
	return s.cfg
}

// Serve prints the banner and accepts connections until the listener is
// closed.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}

	s.printBanner()
	s.log.Info().
		Str("addr", s.Addr().String()).
		Str("dir", s.cfg.Dir).
		Bool("http2", s.cfg.HTTP2).
		Msg("Starting HTTPS server")

	err := s.srv.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close immediately closes the listener and all connections.
func (s *Server) Close() error {
	var errs []error
	if s.srv != nil {
		errs = append(errs, s.srv.Close())
	}
	if s.root != nil {
		errs = append(errs, s.root.Close())
	}
	return errors.Join(errs...)
}

func (s *Server) handler(root *os.Root) http.Handler {
	var h http.Handler = files.Handler(root)
	h = httpmiddleware.CORS(s.cfg.CORSOrigins)(h)
	h = s.metrics.Middleware(h)
	h = httpmiddleware.Recover(s.log)(h)
	h = httpmiddleware.AccessLog(s.log)(h)
	if s.tracing {
		h = otelhttp.NewHandler(h, "devtls.files")
	}
	return h
}

func (s *Server) configureHTTPServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		ErrorLog:          logger.ServerErrorLog(s.log, s.metrics.HandshakeFailed),
		ConnState:         s.metrics.ConnState,
	}
}

func (s *Server) logCertificate(cert tls.Certificate) {
	if cert.Leaf == nil {
		return
	}
	leaf := cert.Leaf

	level := zerolog.InfoLevel
	if time.Now().After(leaf.NotAfter) {
		level = zerolog.WarnLevel
	}
	s.log.WithLevel(level).
		Str("subject", leaf.Subject.CommonName).
		Strs("dns_names", leaf.DNSNames).
		Time("not_after", leaf.NotAfter).
		Msg("Loaded TLS certificate")
}

func (s *Server) printBanner() {
	port := s.cfg.Port
	if tcp, ok := s.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}

	fmt.Fprintf(s.banner, "Serving HTTPS on https://%s (dir: %s)\n",
		net.JoinHostPort(s.cfg.Host, strconv.Itoa(port)), s.cfg.Dir)

	host := s.cfg.Host
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	fmt.Fprintf(s.banner, "Open: https://%s%s\n", net.JoinHostPort(host, strconv.Itoa(port)), s.cfg.OpenPath)
}
