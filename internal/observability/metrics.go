package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

type MetricsConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Addr           string        `yaml:"addr"`
	ScrapeInterval time.Duration `yaml:"scrape_interval"`
}

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	llmRequests *CounterVec
	llmLatency  *HistogramVec
	llmRetries  *CounterVec
	genFailures *CounterVec

	sessionsStarted   *CounterVec
	sessionsCompleted *CounterVec
	answersRecorded   *Counter
	answerConflicts   *Counter
	resumeUploads     *CounterVec
	logins            *CounterVec

	dbStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge

	scrapeInterval time.Duration
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current returns the process-wide metrics, or nil when metrics are off.
// Every method is nil-safe.
func Current() *Metrics {
	return instance
}

// Init builds the process-wide registry once. Returns nil when disabled.
func Init(cfg MetricsConfig, log *logger.Logger) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if cfg.ScrapeInterval > 0 {
			instance.scrapeInterval = cfg.ScrapeInterval
		}
		if log != nil {
			log.Info("Observability metrics enabled", "addr", cfg.Addr)
		}
	})
	return instance
}

// NewMetrics returns a standalone registry; tests use it directly.
func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("cv_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"cv_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		),
		apiInflight: NewGauge("cv_api_inflight_requests", "In-flight API requests."),
		llmRequests: NewCounterVec("cv_llm_requests_total", "LLM attempts by model/status.", []string{"model", "status"}),
		llmLatency: NewHistogramVec(
			"cv_llm_request_duration_seconds",
			"LLM attempt latency in seconds by model/status.",
			[]string{"model", "status"},
			[]float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		),
		llmRetries:        NewCounterVec("cv_llm_retries_total", "LLM retries after transient overload by model.", []string{"model"}),
		genFailures:       NewCounterVec("cv_generation_failures_total", "Generation workflow failures by workflow/kind.", []string{"workflow", "kind"}),
		sessionsStarted:   NewCounterVec("cv_interview_sessions_started_total", "Interview sessions created by mode/difficulty.", []string{"mode", "difficulty"}),
		sessionsCompleted: NewCounterVec("cv_interview_sessions_completed_total", "Interview sessions completed by mode.", []string{"mode"}),
		answersRecorded:   NewCounter("cv_interview_answers_recorded_total", "Answers recorded."),
		answerConflicts:   NewCounter("cv_interview_answer_conflicts_total", "Answer writes that lost a version race."),
		resumeUploads:     NewCounterVec("cv_resume_uploads_total", "Resume uploads by outcome.", []string{"outcome"}),
		logins:            NewCounterVec("cv_auth_logins_total", "Google sign-in callbacks by outcome.", []string{"outcome"}),
		dbStats:           NewGaugeVec("cv_db_stats", "Database connection pool stats.", []string{"metric"}),
		redisUp:           NewGauge("cv_redis_up", "Redis connectivity (1=up, 0=down)."),
		redisPing:         NewGauge("cv_redis_ping_seconds", "Redis ping latency in seconds."),
		scrapeInterval:    10 * time.Second,
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	all := []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmRetries, m.genFailures,
		m.sessionsStarted, m.sessionsCompleted, m.answersRecorded, m.answerConflicts,
		m.resumeUploads, m.logins,
		m.dbStats, m.redisUp, m.redisPing,
	}
	for _, pw := range all {
		if err := pw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(1)
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(-1)
}

// ObserveLLMRequest records one outbound attempt. status is "ok", "retryable"
// or "error".
func (m *Metrics) ObserveLLMRequest(model, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.Inc(model, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), model, status)
	}
}

func (m *Metrics) IncLLMRetry(model string) {
	if m == nil {
		return
	}
	m.llmRetries.Inc(model)
}

func (m *Metrics) IncGenerationFailure(workflow, kind string) {
	if m == nil {
		return
	}
	m.genFailures.Inc(workflow, kind)
}

func (m *Metrics) IncSessionStarted(mode, difficulty string) {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc(mode, difficulty)
}

func (m *Metrics) IncSessionCompleted(mode string) {
	if m == nil {
		return
	}
	m.sessionsCompleted.Inc(mode)
}

func (m *Metrics) IncAnswerRecorded() {
	if m == nil {
		return
	}
	m.answersRecorded.Inc()
}

func (m *Metrics) IncAnswerConflict() {
	if m == nil {
		return
	}
	m.answerConflicts.Inc()
}

func (m *Metrics) IncResumeUpload(outcome string) {
	if m == nil {
		return
	}
	m.resumeUploads.Inc(outcome)
}

func (m *Metrics) IncLogin(outcome string) {
	if m == nil {
		return
	}
	m.logins.Inc(outcome)
}

func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbStats.Set(float64(stats.OpenConnections), "open_connections")
				m.dbStats.Set(float64(stats.InUse), "in_use")
				m.dbStats.Set(float64(stats.Idle), "idle")
				m.dbStats.Set(float64(stats.WaitCount), "wait_count")
				m.dbStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.dbStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

// StartRedisCollector pings an existing client; it does not own it.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb goredis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
