package config

import (
	"strings"
	"time"
)

// WorkerConfig contains configuration for the remote analysis worker.
//
// The worker fetches its own credentials using the identity carried in the
// dispatch payload; the bearer token here authenticates this service to the
// worker, never the other way around.
type WorkerConfig struct {
	// BaseURL is the base URL of the remote analysis worker.
	BaseURL string `env:"WORKER_BASE_URL" envDefault:"http://localhost:9090"`

	// Token is the bearer credential attached to every outbound worker call.
	Token string `env:"WORKER_TOKEN" envDefault:""`

	// Timeout bounds the full acknowledgement round trip. The worker responds
	// as soon as it accepts the job, so this stays far below analysis time.
	Timeout time.Duration `env:"WORKER_TIMEOUT" envDefault:"30s"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	w.BaseURL = strings.TrimRight(strings.TrimSpace(w.BaseURL), "/")
	w.Token = strings.TrimSpace(w.Token)
	if w.Timeout <= 0 {
		w.Timeout = 30 * time.Second
	}
}
