package httpx

import (
	"net/http"

	"github.com/gitgauge/gitgauge/internal/data"
	"github.com/gitgauge/gitgauge/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Dispatcher *service.DispatcherService
	Jobs       *service.JobService
	Retry      *service.RetryService
	// Optional: fixed clock for tests.
	TimeProvider data.TimeProvider
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	dispatchHandlers := &DispatchHandlers{Svc: services.Dispatcher, TimeProvider: services.TimeProvider}
	jobHandlers := &JobHandlers{Jobs: services.Jobs, Retry: services.Retry}

	registerDispatchRoutes(mux, dispatchHandlers)
	registerJobRoutes(mux, jobHandlers)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return mux
}

func registerDispatchRoutes(mux *http.ServeMux, h *DispatchHandlers) {
	mux.Handle("GET /api/dispatch", http.HandlerFunc(h.GetStatus))
	mux.Handle("POST /api/dispatch", http.HandlerFunc(h.Trigger))
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.Handle("GET /api/jobs/{id}", http.HandlerFunc(h.GetStatus))
	mux.Handle("POST /api/jobs/retry", http.HandlerFunc(h.RetryJob))
}
