package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	io_prometheus_client "github.com/prometheus/client_model/go"

	"github.com/tectoniq/seismograph/internal/cache"
	"github.com/tectoniq/seismograph/internal/domain/classifier"
)

// MetricsRegistry holds the Prometheus metrics for the service.
type MetricsRegistry struct {
	registry *prometheus.Registry

	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec

	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec
	CacheHitRatio prometheus.Gauge

	ClassificationsTotal *prometheus.CounterVec
	RegimeGauge          *prometheus.GaugeVec
	RegimeSwitchesTotal  *prometheus.CounterVec
	SimulationsTotal     prometheus.Counter
	SimulationDuration   prometheus.Histogram
	StreamClients        prometheus.Gauge

	mu         sync.Mutex
	lastRegime map[string]classifier.Regime
}

// NewMetricsRegistry creates and registers all service metrics on a private
// registry.
func NewMetricsRegistry() *MetricsRegistry {
	m := &MetricsRegistry{
		registry: prometheus.NewRegistry(),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seismograph_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"endpoint", "status"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seismograph_requests_total",
				Help: "Total HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seismograph_cache_hits_total",
				Help: "Cache hits by cache type",
			},
			[]string{"cache_type"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seismograph_cache_misses_total",
				Help: "Cache misses by cache type",
			},
			[]string{"cache_type"},
		),
		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "seismograph_cache_hit_ratio",
				Help: "Overall cache hit ratio (0.0 to 1.0)",
			},
		),
		ClassificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seismograph_classifications_total",
				Help: "Completed classifications by symbol",
			},
			[]string{"symbol"},
		),
		RegimeGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "seismograph_regime_tier",
				Help: "Accepted regime tier by symbol (0=green, 1=yellow, 2=red)",
			},
			[]string{"symbol"},
		),
		RegimeSwitchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seismograph_regime_switches_total",
				Help: "Accepted regime changes observed between served classifications",
			},
			[]string{"symbol"},
		),
		SimulationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "seismograph_simulations_total",
				Help: "Completed backtest simulations",
			},
		),
		SimulationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "seismograph_simulation_duration_seconds",
				Help:    "Backtest simulation duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		),
		StreamClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "seismograph_stream_clients",
				Help: "Connected websocket stream clients",
			},
		),
		lastRegime: make(map[string]classifier.Regime),
	}

	m.registry.MustRegister(
		m.RequestDuration, m.RequestsTotal,
		m.CacheHits, m.CacheMisses, m.CacheHitRatio,
		m.ClassificationsTotal, m.RegimeGauge, m.RegimeSwitchesTotal,
		m.SimulationsTotal, m.SimulationDuration, m.StreamClients,
	)
	return m
}

// RecordClassification counts a served classification, publishes the
// accepted regime tier, and counts a switch when the regime differs from
// the last one observed for the symbol.
func (m *MetricsRegistry) RecordClassification(symbol string, regime classifier.Regime) {
	m.ClassificationsTotal.WithLabelValues(symbol).Inc()
	m.RegimeGauge.WithLabelValues(symbol).Set(float64(regime.Tier()))

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, seen := m.lastRegime[symbol]; seen && prev != regime {
		m.RegimeSwitchesTotal.WithLabelValues(symbol).Inc()
	}
	m.lastRegime[symbol] = regime
}

// RecordSimulation counts a completed backtest and its wall-clock duration.
func (m *MetricsRegistry) RecordSimulation(d time.Duration) {
	m.SimulationsTotal.Inc()
	m.SimulationDuration.Observe(d.Seconds())
}

// StreamOpened tracks a websocket client connecting.
func (m *MetricsRegistry) StreamOpened() { m.StreamClients.Inc() }

// StreamClosed tracks a websocket client going away.
func (m *MetricsRegistry) StreamClosed() { m.StreamClients.Dec() }

// RecordCacheHit records a hit and refreshes the ratio gauge.
func (m *MetricsRegistry) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabelValues(cacheType).Inc()
	m.updateCacheHitRatio()
}

// RecordCacheMiss records a miss and refreshes the ratio gauge.
func (m *MetricsRegistry) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabelValues(cacheType).Inc()
	m.updateCacheHitRatio()
}

func (m *MetricsRegistry) updateCacheHitRatio() {
	var hits, misses float64
	metric := &io_prometheus_client.Metric{}

	for _, cacheType := range []string{"state", "bars"} {
		if counter, err := m.CacheHits.GetMetricWithLabelValues(cacheType); err == nil {
			if err := counter.Write(metric); err == nil {
				hits += metric.GetCounter().GetValue()
			}
		}
		if counter, err := m.CacheMisses.GetMetricWithLabelValues(cacheType); err == nil {
			if err := counter.Write(metric); err == nil {
				misses += metric.GetCounter().GetValue()
			}
		}
	}

	if total := hits + misses; total > 0 {
		m.CacheHitRatio.Set(hits / total)
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentCache wraps a Cache so every read lands in the hit/miss
// counters under the given cache type label.
func (m *MetricsRegistry) InstrumentCache(cacheType string, inner cache.Cache) cache.Cache {
	return &instrumentedCache{cacheType: cacheType, inner: inner, metrics: m}
}

type instrumentedCache struct {
	cacheType string
	inner     cache.Cache
	metrics   *MetricsRegistry
}

func (c *instrumentedCache) Get(ctx context.Context, key string) (classifier.MarketState, bool, error) {
	state, ok, err := c.inner.Get(ctx, key)
	if err == nil && ok {
		c.metrics.RecordCacheHit(c.cacheType)
	} else {
		c.metrics.RecordCacheMiss(c.cacheType)
	}
	return state, ok, err
}

func (c *instrumentedCache) Set(ctx context.Context, key string, state classifier.MarketState) error {
	return c.inner.Set(ctx, key, state)
}
