package service

import (
	"context"
	"fmt"

	apperrors "tessera/internal/errors"
	"tessera/internal/inventory"
	"tessera/internal/models"
)

// SeatService renders the seat map of an event.
type SeatService struct {
	store inventory.Store
	opts  Options
}

func NewSeatService(store inventory.Store, opts Options) *SeatService {
	return &SeatService{store: store, opts: opts.withDefaults()}
}

// List returns every seat of the event with its displayed status. Lapsed
// holds are shown as AVAILABLE. viewerID marks the caller's own holds; pass 0
// for anonymous callers.
func (s *SeatService) List(ctx context.Context, eventID, viewerID int64) ([]models.ListSeatsResponseItem, error) {
	if eventID <= 0 {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "event id is required")
	}

	seats, err := s.store.ListSeats(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}

	now := s.opts.Clock()
	result := make([]models.ListSeatsResponseItem, len(seats))
	for i := range seats {
		seat := &seats[i]
		item := models.ListSeatsResponseItem{
			Row:    seat.Row,
			Seat:   seat.Number,
			Status: seat.DisplayStatus(now),
			Price:  seat.BasePrice.StringFixed(2),
		}
		if item.Status == models.SeatReserved {
			item.ReservedUntil = seat.ReservedUntil
			item.HeldByMe = viewerID > 0 && seat.HeldBy(viewerID, now)
		}
		result[i] = item
	}
	return result, nil
}
