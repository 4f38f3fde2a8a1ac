package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operational counters for the payment ledger. Exposed at /metrics by the API server.
var (
	PaymentsCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "karo",
		Subsystem: "payment",
		Name:      "captures_total",
		Help:      "Payment transactions settled into the fee ledger.",
	}, []string{"gateway"})

	WebhookDuplicates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "karo",
		Subsystem: "payment",
		Name:      "webhook_duplicates_total",
		Help:      "Webhook events absorbed as no-ops (already applied).",
	}, []string{"gateway"})

	SignatureFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "karo",
		Subsystem: "payment",
		Name:      "signature_failures_total",
		Help:      "Rejected gateway payloads with invalid signatures.",
	}, []string{"gateway"})

	RemindersSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "karo",
		Subsystem: "reminder",
		Name:      "sent_total",
		Help:      "Fee reminder notifications handed to the email channel.",
	})
)
