package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tessera/internal/logger"
	"tessera/internal/models"
	"tessera/internal/service"

	"github.com/nats-io/stan.go"
)

// TicketIndexer writes sold tickets into the search projection.
type TicketIndexer interface {
	IndexTicket(ctx context.Context, doc models.TicketDocument) error
}

// MessageHandler processes one event payload. A returned error leaves the
// message unacknowledged so NATS Streaming redelivers it.
type MessageHandler func(ctx context.Context, data []byte) error

type Handlers struct {
	indexer TicketIndexer
	timeout time.Duration
}

func NewHandlers(indexer TicketIndexer) *Handlers {
	return &Handlers{indexer: indexer, timeout: 10 * time.Second}
}

// Ack wraps handler into a manual-ack stan callback.
func (h *Handlers) Ack(subject string, handler MessageHandler) stan.MsgHandler {
	return func(m *stan.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		if err := handler(ctx, m.Data); err != nil {
			logger.Get().Error("Failed to process message, awaiting redelivery",
				"subject", subject,
				"sequence", m.Sequence,
				"redelivered", m.Redelivered,
				"error", err)
			return
		}
		if err := m.Ack(); err != nil {
			logger.Get().Error("Failed to ack message", "subject", subject, "sequence", m.Sequence, "error", err)
		}
	}
}

// HandleTicketsPurchased indexes every ticket of a fulfillment. Documents
// are keyed by barcode, so redelivery overwrites instead of duplicating.
func (h *Handlers) HandleTicketsPurchased(ctx context.Context, data []byte) error {
	var event models.TicketsPurchasedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		logger.Get().Error("Failed to unmarshal tickets purchased event", "error", err)
		return nil
	}

	log := logger.WithFields("event_id", event.EventID, "user_id", event.UserID, "tickets", len(event.Tickets))
	if h.indexer == nil {
		log.Info("Tickets purchased")
		return nil
	}

	for i := range event.Tickets {
		doc := service.TicketDocumentFrom(&event.Tickets[i])
		if doc.PaymentRef == "" {
			doc.PaymentRef = event.PaymentRef
		}
		if err := h.indexer.IndexTicket(ctx, doc); err != nil {
			return fmt.Errorf("failed to index ticket %s: %w", doc.Barcode, err)
		}
	}

	log.Info("Indexed purchased tickets")
	return nil
}

func (h *Handlers) HandlePurchaseRejected(ctx context.Context, data []byte) error {
	var event models.PurchaseRejectedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		logger.Get().Error("Failed to unmarshal purchase rejected event", "error", err)
		return nil
	}

	// Платёж прошёл, а места не проданы: нужен возврат
	logger.Get().Warn("Payment rejected, refund required",
		"event_id", event.EventID,
		"user_id", event.UserID,
		"payment_ref", event.PaymentRef,
		"reason", event.Reason,
		"charged_minor", event.ChargedMinor,
		"expected_minor", event.ExpectedMinor,
		"seats", event.Seats)
	return nil
}

func (h *Handlers) HandleSeatsReserved(ctx context.Context, data []byte) error {
	var event models.SeatsReservedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		logger.Get().Error("Failed to unmarshal seats reserved event", "error", err)
		return nil
	}

	logger.Get().Debug("Seats reserved",
		"event_id", event.EventID,
		"user_id", event.UserID,
		"seats", event.Seats,
		"expires_at", event.ExpiresAt)
	return nil
}

func (h *Handlers) HandleSeatsReleased(ctx context.Context, data []byte) error {
	var event models.SeatsReleasedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		logger.Get().Error("Failed to unmarshal seats released event", "error", err)
		return nil
	}

	logger.Get().Debug("Seats released",
		"event_id", event.EventID,
		"user_id", event.UserID,
		"seats", event.Seats)
	return nil
}

func (h *Handlers) HandleHoldsExpired(ctx context.Context, data []byte) error {
	var event models.HoldsExpiredEvent
	if err := json.Unmarshal(data, &event); err != nil {
		logger.Get().Error("Failed to unmarshal holds expired event", "error", err)
		return nil
	}

	logger.Get().Debug("Expired holds cleared", "cleared", event.Cleared)
	return nil
}
