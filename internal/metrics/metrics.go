// Package metrics exports plug telemetry as Prometheus collectors and mirrors
// the gauges to DogStatsD when it is enabled.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thatsimonsguy/plug-monitor/internal/datadog"
	"github.com/thatsimonsguy/plug-monitor/internal/model"
)

const namespace = "plug_monitor"

var (
	Registry = prometheus.NewRegistry()

	telemetry = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "telemetry",
			Help:      "Latest plug reading by quantity (power_w, voltage_v, current_ma, switch_on)",
		},
		[]string{"quantity"},
	)

	energyKWh = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "energy_kwh",
		Help:      "Accumulated energy in kWh",
	})

	cost = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "energy_cost",
		Help:      "Accumulated energy cost in the configured currency",
	})

	onDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "on_duration_minutes",
		Help:      "Minutes since the plug was last switched on",
	})

	historyRows = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "history_rows",
		Help:      "Rows in the history log",
	})

	failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed plug operations by kind (fetch, command, persist)",
		},
		[]string{"kind"},
	)

	autoOffFired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auto_off_fired_total",
		Help:      "Auto-off deadlines that reached the plug",
	})
)

func init() {
	Registry.MustRegister(telemetry, energyKWh, cost, onDuration, historyRows, failures, autoOffFired)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordStatus(s model.Status) {
	switchOn := 0.0
	if s.SwitchOn {
		switchOn = 1
	}

	telemetry.WithLabelValues("power_w").Set(s.PowerW)
	telemetry.WithLabelValues("voltage_v").Set(s.VoltageV)
	telemetry.WithLabelValues("current_ma").Set(s.CurrentMA)
	telemetry.WithLabelValues("switch_on").Set(switchOn)
	energyKWh.Set(s.EnergyKWh)
	cost.Set(s.Cost)
	onDuration.Set(float64(s.DurationMin))

	datadog.Gauge("plug.power_w", s.PowerW)
	datadog.Gauge("plug.voltage_v", s.VoltageV)
	datadog.Gauge("plug.current_ma", s.CurrentMA)
	datadog.Gauge("plug.switch_on", switchOn)
	datadog.Gauge("plug.energy_kwh", s.EnergyKWh)
	datadog.Gauge("plug.cost", s.Cost)
	datadog.Gauge("plug.on_duration_minutes", float64(s.DurationMin))
}

func RecordHistoryRows(n int) {
	historyRows.Set(float64(n))
	datadog.Gauge("plug.history_rows", float64(n))
}

func FetchFailed() {
	failures.WithLabelValues("fetch").Inc()
	datadog.Incr("plug.failures", "kind:fetch")
}

func CommandFailed() {
	failures.WithLabelValues("command").Inc()
	datadog.Incr("plug.failures", "kind:command")
}

func PersistFailed() {
	failures.WithLabelValues("persist").Inc()
	datadog.Incr("plug.failures", "kind:persist")
}

func AutoOffFired() {
	autoOffFired.Inc()
	datadog.Incr("plug.auto_off_fired")
}
