package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// ReadyCheck is a named dependency check for /readyz. A failing Optional
// check is reported but does not make the service unready.
type ReadyCheck struct {
	Name     string
	Check    func(context.Context) error
	Optional bool
}

type readyReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewBaseMuxWithReady serves /healthz (always ok) and /readyz, which runs
// every check concurrently with a 2s budget each.
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeReport(w, http.StatusOK, readyReport{Status: "ok"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		report, ready := runChecks(r.Context(), checks, 2*time.Second)
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		writeReport(w, code, report)
	})
	return mux
}

func runChecks(ctx context.Context, checks []ReadyCheck, budget time.Duration) (readyReport, bool) {
	report := readyReport{Status: "ok", Checks: make(map[string]string, len(checks))}
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		ready = true
	)
	for _, check := range checks {
		if check.Check == nil {
			continue
		}
		name := check.Name
		if name == "" {
			name = "dependency"
		}
		wg.Add(1)
		go func(check ReadyCheck, name string) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, budget)
			defer cancel()
			err := check.Check(cctx)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				report.Checks[name] = "ok"
				return
			}
			report.Checks[name] = err.Error()
			if !check.Optional {
				ready = false
			}
		}(check, name)
	}
	wg.Wait()
	if !ready {
		report.Status = "unavailable"
	}
	return report, ready
}

func writeReport(w http.ResponseWriter, code int, report readyReport) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}
