package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_sessions_started_total",
			Help: "Test sessions started",
		},
	)

	sessionsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_sessions_finished_total",
			Help: "Test sessions finished, by reason",
		},
		[]string{"reason"},
	)

	exportsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_exports_served_total",
			Help: "CSV exports served, by kind",
		},
		[]string{"kind"},
	)
)
