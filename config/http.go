package config

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the application (e.g., "https://app.example.com").
	// Used for generating absolute URLs in external contexts.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// ReadTimeoutSeconds bounds how long the server waits for a request to arrive.
	ReadTimeoutSeconds int `env:"HTTP_READ_TIMEOUT_SECONDS" envDefault:"30"`

	// WriteTimeoutSeconds bounds how long a handler may take to respond. The
	// dispatch trigger hands work off without waiting for the analysis, so a
	// short bound is safe.
	WriteTimeoutSeconds int `env:"HTTP_WRITE_TIMEOUT_SECONDS" envDefault:"30"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.ReadTimeoutSeconds <= 0 {
		h.ReadTimeoutSeconds = 30
	}
	if h.WriteTimeoutSeconds <= 0 {
		h.WriteTimeoutSeconds = 30
	}
}
