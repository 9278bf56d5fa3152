// Package metrics exposes the portfolio valuation and collaborator health to
// Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/dense-analysis/coinfolio/internal/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "coinfolio"

type Metrics struct {
	// Portfolio metrics
	totalValue         prometheus.Gauge
	totalCost          prometheus.Gauge
	totalGainLoss      prometheus.Gauge
	gainLossPercentage prometheus.Gauge
	holdings           prometheus.Gauge

	// Collaborator metrics
	priceRefreshes    *prometheus.CounterVec
	storeSaveFailures prometheus.Counter

	// HTTP metrics
	requestDuration *prometheus.HistogramVec
	requestCount    *prometheus.CounterVec
}

// New registers the collectors with registerer.
func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		totalValue: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_total_value",
			Help:      "Sum of the holdings at their live or purchase price",
		}),
		totalCost: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_total_cost",
			Help:      "Sum of the holdings at their purchase price",
		}),
		totalGainLoss: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_total_gain_loss",
			Help:      "Total value less total cost",
		}),
		gainLossPercentage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_gain_loss_percentage",
			Help:      "Total gain or loss as a percentage of the total cost",
		}),
		holdings: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_holdings",
			Help:      "Number of coins held",
		}),
		priceRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "price_refresh_total",
				Help:      "Price refresh cycles by result",
			},
			[]string{"result"},
		),
		storeSaveFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_save_failures_total",
			Help:      "Portfolio saves which failed",
		}),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "status"},
		),
		requestCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
	}
}

// ObserveSnapshot publishes the aggregates of a ledger snapshot.
func (m *Metrics) ObserveSnapshot(snapshot ledger.Snapshot) {
	m.totalValue.Set(snapshot.TotalValue.InexactFloat64())
	m.totalCost.Set(snapshot.TotalCost.InexactFloat64())
	m.totalGainLoss.Set(snapshot.TotalGainLoss.InexactFloat64())
	m.gainLossPercentage.Set(snapshot.TotalGainLossPercentage.InexactFloat64())
	m.holdings.Set(float64(len(snapshot.Items)))
}

// ObserveRefresh counts one refresh cycle.
func (m *Metrics) ObserveRefresh(result string) {
	m.priceRefreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) SaveFailed() {
	m.storeSaveFailures.Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method string, status int, duration time.Duration) {
	statusLabel := strconv.Itoa(status)

	m.requestDuration.WithLabelValues(method, statusLabel).Observe(duration.Seconds())
	m.requestCount.WithLabelValues(method, statusLabel).Inc()
}

// PriceRefreshes is the refresh counter, labelled by result.
func (m *Metrics) PriceRefreshes() *prometheus.CounterVec {
	return m.priceRefreshes
}

func (m *Metrics) StoreSaveFailures() prometheus.Counter {
	return m.storeSaveFailures
}
