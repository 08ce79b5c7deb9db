// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bustogether"

var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Chat sessions currently open.",
	})

	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connected_clients",
		Help:      "WebSocket connections currently registered.",
	})

	MessagesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_accepted_total",
		Help:      "Chat messages accepted and broadcast.",
	})

	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rejections_total",
		Help:      "Gateway requests rejected, by reason.",
	}, []string{"reason"})

	Kicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "kicks_total",
		Help:      "Connections banned after repeated violations.",
	})

	AutoDeletes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auto_deleted_messages_total",
		Help:      "Messages removed after reaching the report threshold.",
	})

	SchedulerTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_ticks_total",
		Help:      "Scheduler ticks, by result (ok, error, skipped).",
	}, []string{"result"})
)
