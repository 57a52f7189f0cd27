package telemetry

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/devtls"
)

// Metrics holds the OpenTelemetry instruments for the file server.
type Metrics struct {
	RequestsTotal     metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	ActiveConnections metric.Int64UpDownCounter
	ConnectionsTotal  metric.Int64Counter
	HandshakeErrors   metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance backed by the global
// meter provider, initializing it if necessary.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = NewMetrics(otel.GetMeterProvider().Meter(meterName))
	})
	return metrics
}

// NewMetrics creates the instruments on the given meter.
func NewMetrics(meter metric.Meter) *Metrics {
	m := &Metrics{}

	m.RequestsTotal, _ = meter.Int64Counter(
		"devtls.requests.total",
		metric.WithDescription("Total number of HTTP requests served"),
		metric.WithUnit("{request}"),
	)

	m.RequestDuration, _ = meter.Float64Histogram(
		"devtls.requests.duration",
		metric.WithDescription("Duration of HTTP requests"),
		metric.WithUnit("ms"),
	)

	m.ActiveConnections, _ = meter.Int64UpDownCounter(
		"devtls.connections.active",
		metric.WithDescription("Number of open client connections"),
		metric.WithUnit("{connection}"),
	)

	m.ConnectionsTotal, _ = meter.Int64Counter(
		"devtls.connections.total",
		metric.WithDescription("Total number of accepted client connections"),
		metric.WithUnit("{connection}"),
	)

	m.HandshakeErrors, _ = meter.Int64Counter(
		"devtls.tls.handshake_errors.total",
		metric.WithDescription("Total number of failed TLS handshakes"),
		metric.WithUnit("{error}"),
	)

	return m
}

// Middleware records a request count and duration, labelled with method
// and status code.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return hlog.AccessHandler(func(r *http.Request, status, _ int, duration time.Duration) {
		attrs := metric.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("http.response.status_code", strconv.Itoa(status)),
		)
		m.RequestsTotal.Add(r.Context(), 1, attrs)
		m.RequestDuration.Record(r.Context(), float64(duration.Microseconds())/1000, attrs)
	})(next)
}

// ConnState is an http.Server.ConnState hook tracking open connections.
func (m *Metrics) ConnState(_ net.Conn, state http.ConnState) {
	ctx := context.Background()
	switch state {
	case http.StateNew:
		m.ConnectionsTotal.Add(ctx, 1)
		m.ActiveConnections.Add(ctx, 1)
	case http.StateClosed, http.StateHijacked:
		m.ActiveConnections.Add(ctx, -1)
	}
}

// HandshakeFailed counts one failed TLS handshake.
func (m *Metrics) HandshakeFailed() {
	m.HandshakeErrors.Add(context.Background(), 1)
}
