package metrics

import (
	"time"

	"github.com/berfenger/gridwatch/pkg/analyzer"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	PollResultSuccess   = "success"
	PollResultTransport = "transport_error"
	PollResultDecode    = "decode_error"
)

// Metrics holds the process collectors on a dedicated registry served by the
// HTTP API's /metrics route.
type Metrics struct {
	Registry *prometheus.Registry

	PollCycles          *prometheus.CounterVec
	ModbusReadDuration  *prometheus.HistogramVec
	StoreAppendFailures prometheus.Counter
	ReconcileWarnings   *prometheus.CounterVec
	ActivePowerWatt     prometheus.Gauge
	TotalImportedWh     prometheus.Gauge
	TotalExportedWh     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		PollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridwatch_poll_cycles_total",
			Help: "Poll cycles by result.",
		}, []string{"result"}),
		ModbusReadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridwatch_modbus_read_duration_seconds",
			Help:    "Duration of modbus protocol round trips.",
			Buckets: prometheus.DefBuckets,
		}, []string{"fn"}),
		StoreAppendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridwatch_store_append_failures_total",
			Help: "Samples that could not be persisted (data loss).",
		}),
		ReconcileWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridwatch_reconcile_warnings_total",
			Help: "Counter anomalies detected by the reconciler.",
		}, []string{"counter"}),
		ActivePowerWatt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridwatch_active_power_watt",
			Help: "Last decoded total active power (positive = consumption).",
		}),
		TotalImportedWh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridwatch_total_energy_imported_wh",
			Help: "Monotonic total imported energy.",
		}),
		TotalExportedWh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridwatch_total_energy_exported_wh",
			Help: "Monotonic total exported energy.",
		}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		m.PollCycles,
		m.ModbusReadDuration,
		m.StoreAppendFailures,
		m.ReconcileWarnings,
		m.ActivePowerWatt,
		m.TotalImportedWh,
		m.TotalExportedWh,
	)
	return m
}

// AnalyzerInstrument bridges the analyzer reader's timing hook into the
// modbus read histogram.
func (m *Metrics) AnalyzerInstrument() *analyzer.Instrument {
	return &analyzer.Instrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			m.ModbusReadDuration.WithLabelValues(fnName).Observe(readTime.Seconds())
		},
	}
}
