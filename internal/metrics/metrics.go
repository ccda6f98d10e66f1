package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dm_messages_sent_total",
		Help: "Direct messages persisted, by kind",
	}, []string{"kind"})

	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dm_ws_active_connections",
		Help: "Active websocket connections on this node",
	})

	EventsDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dm_realtime_frames_delivered_total",
		Help: "Realtime frames handed to local channels",
	})

	EventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dm_realtime_dropped_total",
		Help: "Realtime events or frames dropped",
	}, []string{"reason"})

	PushResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dm_push_results_total",
		Help: "Push notification outcomes",
	}, []string{"result"})
)

// Register adds every collector to reg. Collectors that are already
// registered are left alone.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{MessagesSent, Connections, EventsDelivered, EventsDropped, PushResults} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
