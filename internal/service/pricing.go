package service

import (
	"context"
	"errors"
	"fmt"

	apperrors "tessera/internal/errors"
	"tessera/internal/inventory"
	"tessera/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PricingService computes authoritative amounts from live price data.
type PricingService struct {
	store inventory.Store
	opts  Options
}

func NewPricingService(store inventory.Store, opts Options) *PricingService {
	return &PricingService{store: store, opts: opts.withDefaults()}
}

// Price sums the current base prices of seats. In PhaseHold every seat must be
// RESERVED; PhaseAudit also accepts SOLD. Missing seats fail with
// SEAT_NOT_FOUND, seats in any other state with SEAT_NOT_HELD.
func (s *PricingService) Price(ctx context.Context, eventID int64, seats []models.SeatKey, phase models.PricePhase) (*models.Quote, error) {
	if eventID <= 0 {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "event id is required")
	}
	keys, err := models.CanonicalSeats(eventID, seats)
	if err != nil {
		return nil, apperrors.New(apperrors.KindInvalidRequest, err.Error())
	}
	switch phase {
	case "":
		phase = models.PhaseHold
	case models.PhaseHold, models.PhaseAudit:
	default:
		return nil, apperrors.Newf(apperrors.KindInvalidRequest, "unknown pricing phase %q", phase)
	}

	now := s.opts.Clock()
	var (
		missing []models.SeatKey
		notHeld []models.SeatKey
		lines   = make([]models.PriceLine, 0, len(keys))
	)
	for _, key := range keys {
		seat, err := s.store.GetSeat(ctx, key)
		if errors.Is(err, apperrors.ErrSeatNotFound) {
			missing = append(missing, key)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to price seat %s: %w", key, err)
		}

		status := seat.DisplayStatus(now)
		if !priceable(status, phase) {
			notHeld = append(notHeld, key)
			continue
		}
		line := models.PriceLine{Seat: key, Status: status, UnitPrice: seat.BasePrice}
		if status == models.SeatReserved {
			line.HeldBy = seat.ReservedBy
		}
		lines = append(lines, line)
	}

	if len(missing) > 0 {
		return nil, apperrors.WithSeats(apperrors.KindSeatNotFound, "seat not found", missing)
	}
	if len(notHeld) > 0 {
		return nil, apperrors.WithSeats(apperrors.KindSeatNotHeld, "seat is not reserved", notHeld)
	}

	total := sumPrices(lines)
	return &models.Quote{
		EventID:     eventID,
		Seats:       keys,
		Lines:       lines,
		Total:       total.StringFixed(2),
		AmountMinor: toMinorUnits(total),
		Currency:    s.opts.Currency,
	}, nil
}

func priceable(status models.SeatStatus, phase models.PricePhase) bool {
	if status == models.SeatReserved {
		return true
	}
	return phase == models.PhaseAudit && status == models.SeatSold
}

func sumPrices(lines []models.PriceLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.UnitPrice)
	}
	return total
}

// toMinorUnits rounds once, half away from zero, to whole cents.
func toMinorUnits(total decimal.Decimal) int64 {
	return total.Mul(hundred).Round(0).IntPart()
}

// amountOf is the minor-unit total of locked seats, priced the same way as Price.
func amountOf(seats []*models.Seat) int64 {
	total := decimal.Zero
	for _, seat := range seats {
		total = total.Add(seat.BasePrice)
	}
	return toMinorUnits(total)
}
