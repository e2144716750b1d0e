// Package monitoring exposes Prometheus metrics for the reservation
// engine.  Metrics are registered through promauto at init time and
// served on /metrics by the HTTP router.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	offersGranted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offers_granted_total",
			Help: "Purchase offers granted, immediate and promoted",
		},
		[]string{"event_id"},
	)

	offersExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offers_expired_total",
			Help: "Offers reclaimed after their deadline passed",
		},
		[]string{"event_id"},
	)

	offersReleased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offers_released_total",
			Help: "Offers and queue spots given up voluntarily",
		},
		[]string{"event_id"},
	)

	buyersQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waiting_list_enqueued_total",
			Help: "Buyers appended to the waiting list",
		},
		[]string{"event_id"},
	)

	purchasesFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_finalized_total",
			Help: "Offers converted into valid tickets",
		},
		[]string{"event_id"},
	)

	refundAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refund_attempts_total",
			Help: "Per-ticket refund outcomes",
		},
		[]string{"event_id", "status"},
	)
)

// OfferGranted records an offer grant for the event.
func OfferGranted(eventID string) { offersGranted.WithLabelValues(eventID).Inc() }

// OfferExpired records an offer reclaimed by the scheduler.
func OfferExpired(eventID string) { offersExpired.WithLabelValues(eventID).Inc() }

// OfferReleased records a voluntary release.
func OfferReleased(eventID string) { offersReleased.WithLabelValues(eventID).Inc() }

// BuyerQueued records an enqueue onto the waiting list.
func BuyerQueued(eventID string) { buyersQueued.WithLabelValues(eventID).Inc() }

// PurchaseFinalized records a confirmed purchase.
func PurchaseFinalized(eventID string) { purchasesFinalized.WithLabelValues(eventID).Inc() }

// RefundAttempt records one per-ticket refund outcome ("refunded" or
// "failed").
func RefundAttempt(eventID, status string) { refundAttempts.WithLabelValues(eventID, status).Inc() }
