// Package metrics exposes Prometheus counters for the command pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	commandsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "couchpilot_commands_enqueued_total",
			Help: "Total commands enqueued by owners",
		},
		[]string{"type"},
	)

	commandsDeliveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "couchpilot_commands_delivered_total",
			Help: "Total commands handed to a device via poll",
		},
	)

	commandsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "couchpilot_commands_failed_total",
			Help: "Total commands reported failed by devices",
		},
	)

	pollsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "couchpilot_polls_total",
			Help: "Total device poll requests",
		},
	)

	devicesActivatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "couchpilot_devices_activated_total",
			Help: "Total successful device activations",
		},
	)
)

func init() {
	prometheus.MustRegister(
		commandsEnqueuedTotal,
		commandsDeliveredTotal,
		commandsFailedTotal,
		pollsTotal,
		devicesActivatedTotal,
	)
}

func CommandEnqueued(cmdType string) {
	commandsEnqueuedTotal.WithLabelValues(cmdType).Inc()
}

func CommandsDelivered(n int) {
	commandsDeliveredTotal.Add(float64(n))
}

func CommandFailed() {
	commandsFailedTotal.Inc()
}

func PollReceived() {
	pollsTotal.Inc()
}

func DeviceActivated() {
	devicesActivatedTotal.Inc()
}
