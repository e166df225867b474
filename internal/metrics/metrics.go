package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "twin"

var (
	// Telemetry loop
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "loop",
		Name:      "ticks_total",
		Help:      "Telemetry loop wake-ups, by whether the twin was running",
	}, []string{"state"})

	HistoryAppends = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "loop",
		Name:      "history_appends_total",
		Help:      "History points recorded by the loop",
	})

	TierTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "loop",
		Name:      "tier_total",
		Help:      "Decision tiers produced by loop ticks",
	}, []string{"tier"})

	Resistance = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "resistance",
		Help:      "Latest residuary resistance estimate",
	})

	Carbon = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "carbon",
		Help:      "Latest carbon intensity estimate",
	})

	Speed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "froude_number",
		Help:      "Latest speed parameter",
	})

	Running = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "running",
		Help:      "1 while autonomous telemetry is active",
	})

	// API
	ParamUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "param_updates_total",
		Help:      "Accepted parameter updates",
	})

	BadRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "bad_requests_total",
		Help:      "Rejected requests by route",
	}, []string{"route"})

	AuthRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "auth_rejections_total",
		Help:      "Requests refused by the API key check, by route and reason",
	}, []string{"route", "reason"})

	Toggles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "toggles_total",
		Help:      "Run flag toggles",
	})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "stream_clients",
		Help:      "Connected websocket clients",
	})

	// Persistence pipeline
	ChannelDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "channel_drops_total",
		Help:      "Samples dropped because a sink channel was full",
	}, []string{"sink"})

	DBWriteSuccess = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "db_write_success_total",
		Help:      "Samples written to TimescaleDB",
	})

	DBWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "db_write_failures_total",
		Help:      "Samples lost after the retry failed",
	})

	StateWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "state_write_failures_total",
		Help:      "Failed Redis state updates",
	})

	AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "alerts_raised_total",
		Help:      "Alerts raised after deduplication",
	}, []string{"tier"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
