package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickethub_tickets_issued_total",
			Help: "Tickets created by webhook fulfillment or the free-ticket path",
		},
		[]string{"event_id", "path"},
	)

	TicketsScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickethub_tickets_scanned_total",
			Help: "Ticket scan attempts by outcome",
		},
		[]string{"outcome"},
	)

	OffersGranted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickethub_waitinglist_offers_total",
			Help: "Waiting-list offers granted, by trigger (join or promotion)",
		},
		[]string{"event_id", "trigger"},
	)

	OffersExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickethub_waitinglist_offers_expired_total",
			Help: "Offers that lapsed without a purchase",
		},
		[]string{"event_id"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickethub_stripe_webhook_events_total",
			Help: "Stripe webhook deliveries by type and result",
		},
		[]string{"type", "result"},
	)
)
