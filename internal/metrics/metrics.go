// Package metrics exposes engine and dictionary counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pinfe/internal/dict"
	"pinfe/internal/types"
)

const namespace = "pinfe"

type Metrics struct {
	registry *prometheus.Registry

	Actions           *prometheus.CounterVec
	Commits           prometheus.Counter
	CommittedRunes    prometheus.Counter
	ModeChanges       *prometheus.CounterVec
	Hotkeys           *prometheus.CounterVec
	KeyLatency        prometheus.Histogram
	LookupLatency     prometheus.Histogram
	Reloads           *prometheus.CounterVec
	DictionaryEntries prometheus.Gauge
	DictionaryFailed  prometheus.Gauge
}

// New registers every metric on a private registry along with the Go
// runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Actions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "actions_total",
			Help:      "Key events handled, by resulting action.",
		}, []string{"action"}),
		Commits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "commits_total",
			Help:      "Text commits sent to the output.",
		}),
		CommittedRunes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "committed_runes_total",
			Help:      "Characters committed to the output.",
		}),
		ModeChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "mode_changes_total",
			Help:      "Mode switches, by new mode.",
		}, []string{"mode"}),
		Hotkeys: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "hotkeys_total",
			Help:      "Profile, preview and paste hotkeys, by hotkey and new value.",
		}, []string{"hotkey", "value"}),
		KeyLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "key_duration_seconds",
			Help:      "Time to turn one key event into an action.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		LookupLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dict",
			Name:      "lookup_duration_seconds",
			Help:      "Candidate lookup latency for control and CLI queries.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		Reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dict",
			Name:      "reloads_total",
			Help:      "Dictionary reloads, by result.",
		}, []string{"result"}),
		DictionaryEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dict",
			Name:      "entries",
			Help:      "Entries in the published dictionary.",
		}),
		DictionaryFailed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dict",
			Name:      "failed_files",
			Help:      "Dictionary files skipped by the last reload.",
		}),
	}
}

// ActionLabel names an action for the action label.
func ActionLabel(a types.Action) string {
	switch a.(type) {
	case types.Emit:
		return "emit"
	case types.DeleteAndEmit:
		return "delete_and_emit"
	case types.PassThrough:
		return "pass_through"
	case types.Consume:
		return "consume"
	default:
		return "unknown"
	}
}

// RecordAction counts one handled key. Commits are emits and unhighlighted
// replacements with text.
func (m *Metrics) RecordAction(a types.Action, took time.Duration) {
	m.Actions.WithLabelValues(ActionLabel(a)).Inc()
	m.KeyLatency.Observe(took.Seconds())
	var text string
	switch v := a.(type) {
	case types.Emit:
		text = v.Text
	case types.DeleteAndEmit:
		if !v.Highlight {
			text = v.Text
		}
	}
	if text != "" {
		m.Commits.Inc()
		m.CommittedRunes.Add(float64(len([]rune(text))))
	}
}

func (m *Metrics) RecordModeChange(mode types.InputMode) {
	m.ModeChanges.WithLabelValues(mode.String()).Inc()
}

func (m *Metrics) RecordHotkey(hotkey, value string) {
	m.Hotkeys.WithLabelValues(hotkey, value).Inc()
}

func (m *Metrics) ObserveLookup(took time.Duration) {
	m.LookupLatency.Observe(took.Seconds())
}

// RecordReload counts a reload attempt and, on success, the published
// dictionary size.
func (m *Metrics) RecordReload(report dict.Report, err error) {
	if err != nil {
		m.Reloads.WithLabelValues("error").Inc()
		return
	}
	m.Reloads.WithLabelValues("ok").Inc()
	m.DictionaryEntries.Set(float64(report.Entries))
	m.DictionaryFailed.Set(float64(report.Failed()))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if logger != nil {
		logger.Info("metrics listening", "addr", ln.Addr().String())
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
