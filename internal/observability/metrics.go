package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circle_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// WebSocketConnectionsTotal is the gauge of active feed connections on this instance.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "circle_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// BroadcastEventsTotal counts realtime events handed to the broadcast channel.
	BroadcastEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circle_broadcast_events_total",
		Help: "Total realtime events published by type and transport",
	}, []string{"event_type", "transport"})

	// BroadcastFailures counts events that could not be published.
	BroadcastFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circle_broadcast_failures_total",
		Help: "Total realtime events that failed to publish",
	}, []string{"event_type", "reason"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circle_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// LikeTogglesTotal counts like toggles by resulting state.
	LikeTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circle_like_toggles_total",
		Help: "Total like toggles by resulting state",
	}, []string{"result"})

	// RateLimitRejections counts requests refused by a named limit.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circle_rate_limit_rejections_total",
		Help: "Total requests rejected by rate limits",
	}, []string{"limit"})

	// ContentCreatedTotal counts created threads and replies.
	ContentCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circle_content_created_total",
		Help: "Total threads and replies created",
	}, []string{"kind"})
)
