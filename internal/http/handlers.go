package http

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	for _, c := range s.deps.ReadyChecks {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.trace.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()

	w.WriteHeader(http.StatusOK)

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	}
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	gauge("http_requests_in_flight", "Requests currently being served", traceMetrics.InFlight)
	gauge("http_response_time_avg_microseconds", "Average response time", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP http_responses_total Responses by status code\n")
	fmt.Fprintf(w, "# TYPE http_responses_total counter\n")
	codes := make([]int, 0, len(traceMetrics.ByStatus))
	for code := range traceMetrics.ByStatus {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "http_responses_total{code=\"%d\"} %d\n", code, traceMetrics.ByStatus[code])
	}
	fmt.Fprintln(w)

	counter("rate_limit_rejections_total", "Requests rejected by the rate limiter", rateLimitMetrics.Rejected)
	gauge("rate_limit_active_clients", "Clients tracked by the rate limiter", rateLimitMetrics.ClientCount)

	counter("uploads_total", "Spreadsheet files uploaded", s.metrics.uploads.Load())
	counter("budget_lines_imported_total", "Budget lines stored by imports", s.metrics.budgetLines.Load())
	counter("transactions_written_total", "Transactions created through the API", s.metrics.transactions.Load())
	counter("import_failures_total", "Uploads or imports that failed", s.metrics.importFailures.Load())
	counter("template_failures_total", "HTML partials that failed to render", s.metrics.templateFailure.Load())

	if s.deps.Outbox != nil {
		gauge("outbox_pending_messages", "Sync messages waiting for retry", int64(s.deps.Outbox.Pending()))
		counter("outbox_dropped_messages_total", "Sync messages dropped after retries", int64(s.deps.Outbox.Dropped()))
	}

	gauge("uptime_seconds", "Seconds since the server started", int64(time.Since(s.startedAt).Seconds()))
}
