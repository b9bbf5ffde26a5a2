package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// FramesReceived counts raw frames read from the engine socket
var FramesReceived = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "marketsync_frames_received_total",
		Help: "Total number of frames read from the engine connection",
	},
)

// DecodeFailures counts frames dropped by the protocol decoder
var DecodeFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "marketsync_decode_failures_total",
		Help: "Total number of inbound frames that could not be decoded",
	},
)

// MessagesApplied counts reducer applications by message tag
var MessagesApplied = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marketsync_messages_applied_total",
		Help: "Total number of messages applied to the snapshot",
	},
	[]string{"tag"},
)

// Connection lifecycle metrics
var (
	ReconnectsScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "marketsync_reconnects_scheduled_total",
			Help: "Total number of reconnect attempts scheduled",
		},
	)

	ConnectionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketsync_connection_state",
			Help: "Current connection state (0 disconnected, 1 connecting, 2 open, 3 closed, 4 errored)",
		},
	)
)

// Command dispatch metrics
var (
	CommandsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketsync_commands_sent_total",
			Help: "Total number of commands accepted by the engine",
		},
		[]string{"command"},
	)

	CommandsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketsync_commands_failed_total",
			Help: "Total number of commands that failed to reach the engine",
		},
		[]string{"command"},
	)
)

// Errors counts handled errors by category
var Errors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marketsync_errors_total",
		Help: "Total number of handled errors by category",
	},
	[]string{"category"},
)

func init() {
	prometheus.MustRegister(FramesReceived, DecodeFailures, MessagesApplied)
	prometheus.MustRegister(ReconnectsScheduled, ConnectionState)
	prometheus.MustRegister(CommandsSent, CommandsFailed, Errors)
}
