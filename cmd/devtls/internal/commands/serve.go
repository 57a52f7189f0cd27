package commands

import (
	"context"
	"time"

	"github.com/wolfeidau/devtls/internal/config"
	"github.com/wolfeidau/devtls/internal/logger"
	"github.com/wolfeidau/devtls/internal/server"
	"github.com/wolfeidau/devtls/internal/telemetry"
)

type ServeCmd struct {
	Host string `help:"bind address" default:"0.0.0.0" env:"DEVTLS_HOST"`
	Port int    `help:"port to listen on" default:"8443" env:"DEVTLS_PORT"`
	Cert string `help:"path to PEM certificate" default:"${install_dir}/cert.pem" env:"DEVTLS_CERT"`
	Key  string `help:"path to PEM private key" default:"${install_dir}/key.pem" env:"DEVTLS_KEY"`
	Dir  string `help:"directory to serve" default:"${install_dir}" env:"DEVTLS_DIR"`

	OpenPath string `help:"path suggested in the startup banner" default:"/" env:"DEVTLS_OPEN_PATH"`

	// Optional hardening, unbounded by default
	ReadHeaderTimeout time.Duration `help:"limit for reading request headers, 0 disables" default:"0s" env:"DEVTLS_READ_HEADER_TIMEOUT"`
	IdleTimeout       time.Duration `help:"limit for idle keep-alive connections, 0 disables" default:"0s" env:"DEVTLS_IDLE_TIMEOUT"`

	HTTP2       bool     `name:"http2" help:"offer HTTP/2 via ALPN" default:"false" env:"DEVTLS_HTTP2"`
	CORSOrigins []string `name:"cors-origin" help:"allowed CORS origins, none by default" env:"DEVTLS_CORS_ORIGINS"`
	Tracing     bool     `help:"export traces and metrics over OTLP" default:"false" env:"DEVTLS_TRACING"`
}

func (c *ServeCmd) Config() config.Config {
	return config.Config{
		Host:              c.Host,
		Port:              c.Port,
		CertPath:          c.Cert,
		KeyPath:           c.Key,
		Dir:               c.Dir,
		OpenPath:          c.OpenPath,
		ReadHeaderTimeout: c.ReadHeaderTimeout,
		IdleTimeout:       c.IdleTimeout,
		HTTP2:             c.HTTP2,
		CORSOrigins:       c.CORSOrigins,
	}
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	log.Debug().Str("version", globals.Version).Msg("Starting devtls")

	if c.Tracing {
		shutdown, err := telemetry.InitTelemetry(ctx, log, "devtls", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	return server.New(c.Config(), log, server.WithTracing(c.Tracing)).Run()
}
