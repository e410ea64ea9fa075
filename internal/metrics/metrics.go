package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "points_miner"

	LabelType    = "type"
	LabelResult  = "result"
	LabelBackend = "backend"

	ResultOK      = "ok"
	ResultError   = "error"
	ResultRetried = "retried"
	ResultGaveUp  = "gave_up"
	ResultSkipped = "skipped"
	ResultDropped = "dropped"
)

// Engine metrics
var (
	WatchedStreamers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "watched_streamers",
		Help:      "Streamers currently in the watch set.",
	})

	OnlineStreamers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "online_streamers",
		Help:      "Tracked streamers currently online.",
	})

	PlatformEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "platform_events_total",
		Help:      "Platform events processed by the control loop.",
	}, []string{LabelType})

	Preemptions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "preemptions_total",
		Help:      "Watch sessions evicted to admit a higher-priority streamer.",
	})

	Heartbeats = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "heartbeats_total",
		Help:      "Watch heartbeats by result.",
	}, []string{LabelResult})

	Bets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bets_total",
		Help:      "Bet decisions by result.",
	}, []string{LabelResult})
)

// Notification metrics
var (
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification sends by backend and result.",
	}, []string{LabelBackend, LabelResult})
)
