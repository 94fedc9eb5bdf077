package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// ReadinessReporter probes a dependency the service cannot work without.
type ReadinessReporter interface {
	Readiness(ctx context.Context) error
}

func Readiness(rr ReadinessReporter, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}
		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		out := resp{Status: "ready"}
		err := rr.Readiness(ctx)
		if err != nil {
			out = resp{Status: "not_ready", Error: err.Error()}
		}
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
