package observability

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/yungbote/neurobridge-scorm/internal/platform/envutil"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	ingestTotal   *CounterVec
	ingestLatency *HistogramVec
	ingestBytes   *CounterVec

	rteCalls      *CounterVec
	rteCommits    *CounterVec
	rteCommitTry  *HistogramVec
	progressMerge *CounterVec
	proxyRequests *CounterVec
	janitorSweeps *CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current is the process-wide registry, nil when metrics are disabled. All
// Metrics methods are nil-safe.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

// NewMetrics builds an unregistered registry.
func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("scorm_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec("scorm_api_request_duration_seconds", "API request latency in seconds.",
			[]string{"method", "route"}, []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}),
		apiInflight: NewGauge("scorm_api_inflight_requests", "In-flight API requests."),

		ingestTotal: NewCounterVec("scorm_ingest_total", "Package ingestions by outcome.", []string{"outcome"}),
		ingestLatency: NewHistogramVec("scorm_ingest_duration_seconds", "Package ingestion time in seconds.",
			[]string{"outcome"}, []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}),
		ingestBytes: NewCounterVec("scorm_ingest_bytes_total", "Uncompressed bytes extracted by successful ingestions.", nil),

		rteCalls:   NewCounterVec("scorm_rte_calls_total", "RTE calls by method and resulting error code.", []string{"method", "code"}),
		rteCommits: NewCounterVec("scorm_rte_commits_total", "RTE flushes by outcome.", []string{"outcome"}),
		rteCommitTry: NewHistogramVec("scorm_rte_commit_attempts", "Attempts needed per RTE flush.",
			[]string{"outcome"}, []float64{1, 2, 3, 5, 10}),
		progressMerge: NewCounterVec("scorm_progress_merges_total", "Progress merges by outcome.", []string{"outcome"}),
		proxyRequests: NewCounterVec("scorm_proxy_requests_total", "Proxied content requests by outcome.", []string{"outcome"}),
		janitorSweeps: NewCounterVec("scorm_janitor_directories_total", "Extraction directories seen by the janitor; skipped counts sweeps that lost the lock.", []string{"action"}),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil || addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed && log != nil {
			log.Error("metrics server failed", "error", err, "addr", addr)
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	type writer interface{ WritePrometheus(io.Writer) error }
	for _, c := range []writer{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.ingestTotal, m.ingestLatency, m.ingestBytes,
		m.rteCalls, m.rteCommits, m.rteCommitTry,
		m.progressMerge, m.proxyRequests, m.janitorSweeps,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) APIInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

func (m *Metrics) ObserveIngest(outcome string, dur time.Duration, bytes int64) {
	if m == nil {
		return
	}
	m.ingestTotal.Inc(outcome)
	m.ingestLatency.Observe(dur.Seconds(), outcome)
	if bytes > 0 {
		m.ingestBytes.Add(float64(bytes))
	}
}

func (m *Metrics) IncRTECall(method, code string) {
	if m != nil {
		m.rteCalls.Inc(method, code)
	}
}

func (m *Metrics) ObserveRTECommit(ok bool, attempts int) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.rteCommits.Inc(outcome)
	m.rteCommitTry.Observe(float64(attempts), outcome)
}

func (m *Metrics) IncProgressMerge(outcome string) {
	if m != nil {
		m.progressMerge.Inc(outcome)
	}
}

func (m *Metrics) IncProxyRequest(outcome string) {
	if m != nil {
		m.proxyRequests.Inc(outcome)
	}
}

func (m *Metrics) ObserveJanitor(removed, kept int, skipped bool) {
	if m == nil {
		return
	}
	if skipped {
		m.janitorSweeps.Inc("skipped")
		return
	}
	m.janitorSweeps.Add(float64(removed), "removed")
	m.janitorSweeps.Add(float64(kept), "kept")
}
