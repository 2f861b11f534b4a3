package relay

import "time"

// Config is the relay server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string

	// WebhookPath receives inbound messages (e.g., "/whatsapp").
	WebhookPath string

	// MetricsPath serves Prometheus metrics when a collector is supplied.
	// Empty disables the endpoint.
	MetricsPath string

	// Inspect enables the read-only history endpoints.
	Inspect bool

	// UpstreamTimeout bounds each completion call.
	UpstreamTimeout time.Duration
}
