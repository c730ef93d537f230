package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	sessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patientsim_sessions_started_total",
			Help: "Chat sessions started per persona.",
		},
		[]string{"persona"},
	)

	systemPromptsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patientsim_system_prompts_sent_total",
			Help: "Persona system prompts emitted to the UI per persona.",
		},
		[]string{"persona"},
	)

	completions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patientsim_completions_total",
			Help: "Streamed completion requests per provider/model and outcome.",
		},
		[]string{"provider", "model", "outcome"},
	)

	completionLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "patientsim_completion_latency_ms",
			Help:    "Time from completion request to end of stream in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 20000},
		},
		[]string{"provider", "model", "success"},
	)

	fragmentsRelayed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "patientsim_fragments_relayed_total",
			Help: "Non-empty assistant fragments relayed to the UI.",
		},
	)

	tokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patientsim_tokens_total",
			Help: "Estimated tokens sent to (in) and received from (out) the model.",
		},
		[]string{"direction"},
	)
)

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			sessionsStarted,
			systemPromptsSent,
			completions,
			completionLatencyMs,
			fragmentsRelayed,
			tokens,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func SessionStarted(persona string) {
	sessionsStarted.WithLabelValues(norm(persona)).Inc()
}

func SystemPromptSent(persona string) {
	systemPromptsSent.WithLabelValues(norm(persona)).Inc()
}

func FragmentRelayed() {
	fragmentsRelayed.Inc()
}

// ObserveCompletion records one finished (or failed) completion stream.
func ObserveCompletion(provider, model string, latencyMs int64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	completions.WithLabelValues(norm(provider), norm(model), outcome).Inc()
	completionLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(err == nil)).
		Observe(float64(latencyMs))
}

func TokensIn(n int) {
	if n > 0 {
		tokens.WithLabelValues("in").Add(float64(n))
	}
}

func TokensOut(n int) {
	if n > 0 {
		tokens.WithLabelValues("out").Add(float64(n))
	}
}

func norm(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "unknown"
	}
	return s
}
