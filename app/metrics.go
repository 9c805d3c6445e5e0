package app

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type appMetrics struct {
	blockHeight   prometheus.Gauge
	txTotal       *prometheus.CounterVec
	eventsTotal   *prometheus.CounterVec
	finalizeTime  prometheus.Histogram
	checkTxReject prometheus.Counter
}

func (m *appMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.blockHeight = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "gp_app_block_height",
		Help: "height of the last finalized block",
	})
	m.txTotal = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "gp_app_txs_total",
		Help: "finalized transactions by type and result code",
	}, []string{"type", "code"})
	m.eventsTotal = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "gp_app_events_total",
		Help: "events emitted by successful transactions",
	}, []string{"type"})
	m.finalizeTime = promautoFactory.NewHistogram(prometheus.HistogramOpts{
		Name:    "gp_app_finalize_block_seconds",
		Help:    "time spent executing a block",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	m.checkTxReject = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "gp_app_checktx_rejected_total",
		Help: "transactions rejected by CheckTx",
	})
}

func (m *appMetrics) observeTx(txType string, code uint32, events []string) {
	m.txTotal.WithLabelValues(txType, strconv.FormatUint(uint64(code), 10)).Inc()
	for _, e := range events {
		m.eventsTotal.WithLabelValues(e).Inc()
	}
}

func (m *appMetrics) observeBlock(height uint64, started time.Time) {
	m.blockHeight.Set(float64(height))
	m.finalizeTime.Observe(time.Since(started).Seconds())
}
