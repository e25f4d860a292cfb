package httpx

import (
	"io"
	"net/http"
)

// healthHandler answers readiness and liveness probes. It reports process
// liveness only; queue and database health surface through the dispatch
// status endpoint instead.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = io.WriteString(w, `{"status":"ok"}`)
}
