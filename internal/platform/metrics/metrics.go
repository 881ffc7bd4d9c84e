package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OpenConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "courier",
		Name:      "open_connections",
		Help:      "Live websocket connections tracked by the registry.",
	})
	RegisteredChannels = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "courier",
		Name:      "registered_channels",
		Help:      "Connections bound to an account, by channel kind.",
	}, []string{"kind"})
	PushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courier",
		Name:      "pushes_total",
		Help:      "Live push frames written, by message kind.",
	}, []string{"kind"})
	PushFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courier",
		Name:      "push_failures_total",
		Help:      "Live pushes that failed and tore the connection down.",
	}, []string{"kind"})
	MessagesForwardedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courier",
		Name:      "messages_forwarded_total",
		Help:      "Messages persisted through the forward path.",
	}, []string{"kind"})
	ArchivedPurgedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courier",
		Name:      "archived_purged_total",
		Help:      "Archived messages removed after the retention period.",
	}, []string{"kind"})
)
