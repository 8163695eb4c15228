package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostwire",
			Subsystem: "dispatch",
			Name:      "commands_total",
			Help:      "Commands executed by the serializer.",
		},
		[]string{"transport", "command", "status"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hostwire",
			Subsystem: "dispatch",
			Name:      "command_duration_seconds",
			Help:      "Command round-trip duration from submit to completion.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"transport", "command"},
	)
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hostwire",
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Tasks queued on the serializer, sampled at submit.",
		},
	)
	droppedDatagrams = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostwire",
			Subsystem: "lossy",
			Name:      "dropped_datagrams_total",
			Help:      "Datagrams dropped before execution.",
		},
		[]string{"reason"},
	)
	unsafeRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostwire",
			Subsystem: "lossy",
			Name:      "unsafe_rejections_total",
			Help:      "NeverLossy commands rejected on the lossy transport.",
		},
		[]string{"command"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			commandsTotal,
			commandDuration,
			queueDepth,
			droppedDatagrams,
			unsafeRejections,
		)
	})
}

func RecordCommand(transport, command string, err error, duration time.Duration) {
	RegisterMetrics()
	status := "success"
	if err != nil {
		status = "error"
	}
	commandsTotal.WithLabelValues(transport, command, status).Inc()
	commandDuration.WithLabelValues(transport, command).Observe(duration.Seconds())
}

func RecordQueueDepth(depth int) {
	RegisterMetrics()
	queueDepth.Set(float64(depth))
}

func RecordDroppedDatagram(reason string) {
	RegisterMetrics()
	droppedDatagrams.WithLabelValues(reason).Inc()
}

func RecordUnsafeRejection(command string) {
	RegisterMetrics()
	unsafeRejections.WithLabelValues(command).Inc()
}
