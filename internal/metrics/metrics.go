package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Investigation metrics
	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "symptom_coach_sessions_started_total",
			Help: "Investigation sessions opened, by topic",
		},
		[]string{"topic"},
	)

	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "symptom_coach_decisions_total",
			Help: "Engine decisions by kind and tier",
		},
		[]string{"kind", "tier"}, // tier is empty for questions
	)

	NotInvestigable = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "symptom_coach_messages_ignored_total",
			Help: "Messages that neither opened nor continued an investigation",
		},
	)

	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "symptom_coach_turn_duration_seconds",
			Help:    "Time to handle one message, lock wait included",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	// Store and delivery metrics
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "symptom_coach_store_errors_total",
			Help: "State store failures by operation",
		},
		[]string{"op"},
	)

	ReportsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "symptom_coach_referral_reports_total",
			Help: "Referral reports delivered to the coach chat",
		},
		[]string{"status"}, // sent, failed
	)
)
