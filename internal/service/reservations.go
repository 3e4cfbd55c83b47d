package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "tessera/internal/errors"
	"tessera/internal/inventory"
	"tessera/internal/logger"
	"tessera/internal/metrics"
	"tessera/internal/models"
)

// ReservationService holds and releases seats.
type ReservationService struct {
	store   inventory.Store
	events  *eventPublisher
	metrics *metrics.Metrics
	opts    Options
}

func NewReservationService(store inventory.Store, events *eventPublisher, m *metrics.Metrics, opts Options) *ReservationService {
	return &ReservationService{
		store:   store,
		events:  events,
		metrics: m,
		opts:    opts.withDefaults(),
	}
}

// holdDuration applies the configured default and cap.
func (s *ReservationService) holdDuration(requested time.Duration) time.Duration {
	if requested <= 0 {
		return s.opts.HoldDuration
	}
	if requested > s.opts.MaxHoldDuration {
		return s.opts.MaxHoldDuration
	}
	return requested
}

// Reserve places a hold on every seat or on none of them. A seat is eligible
// when it reads AVAILABLE (expired holds included) or is already held by the
// same user, in which case the deadline is refreshed. Otherwise the call fails
// with SEAT_UNAVAILABLE listing every ineligible seat, missing seats included.
func (s *ReservationService) Reserve(ctx context.Context, eventID, userID int64, seats []models.SeatKey, hold time.Duration) (*models.Hold, error) {
	keys, err := validateSelection(eventID, userID, seats)
	if err != nil {
		return nil, err
	}
	hold = s.holdDuration(hold)
	start := time.Now()

	var expiresAt time.Time
	err = s.store.InTx(ctx, eventID, func(tx inventory.Tx) error {
		now := s.opts.Clock()
		expiresAt = now.Add(hold)

		locked, err := tx.LockSeats(ctx, keys)
		if err != nil {
			return err
		}

		var conflicts []models.SeatKey
		for _, key := range keys {
			seat, ok := locked[key]
			if !ok || !reservable(seat, userID, now) {
				conflicts = append(conflicts, key)
			}
		}
		if len(conflicts) > 0 {
			return apperrors.WithSeats(apperrors.KindSeatUnavailable, "some seats are unavailable", conflicts)
		}

		for _, key := range keys {
			seat := locked[key]
			seat.Hold(userID, expiresAt)
			if err := tx.UpdateSeat(ctx, seat); err != nil {
				return err
			}
		}
		return nil
	})
	s.metrics.ObserveDuration("reserve", start)

	log := logger.WithContext(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrSeatUnavailable) {
			s.metrics.ReservationResult("conflict")
			log.Info("Reservation rejected", "event_id", eventID, "user_id", userID, "error", err)
			return nil, err
		}
		s.metrics.ReservationResult("error")
		return nil, fmt.Errorf("failed to reserve seats: %w", err)
	}
	s.metrics.ReservationResult("ok")

	log.Info("Seats reserved",
		"event_id", eventID,
		"user_id", userID,
		"seats", models.SeatLabels(keys),
		"expires_at", expiresAt)

	s.events.publish(ctx, models.EventSeatsReserved, models.SeatsReservedEvent{
		EventID:   eventID,
		UserID:    userID,
		Seats:     models.SeatLabels(keys),
		ExpiresAt: expiresAt,
		Timestamp: time.Now(),
	})

	return &models.Hold{
		EventID:   eventID,
		UserID:    userID,
		Seats:     keys,
		ExpiresAt: expiresAt,
	}, nil
}

func reservable(seat *models.Seat, userID int64, now time.Time) bool {
	switch seat.DisplayStatus(now) {
	case models.SeatAvailable:
		return true
	case models.SeatReserved:
		return seat.ReservedBy != nil && *seat.ReservedBy == userID
	}
	return false
}

// Release returns the caller's live holds to AVAILABLE and reports how many
// seats it released. Seats held by others, sold, free or missing are skipped.
// Each seat is released on its own; a storage failure on one seat does not
// stop the others. Seats that failed are listed in a STORE_UNAVAILABLE error
// returned together with the count of seats that were released.
func (s *ReservationService) Release(ctx context.Context, eventID, userID int64, seats []models.SeatKey) (int, error) {
	keys, err := validateSelection(eventID, userID, seats)
	if err != nil {
		return 0, err
	}

	now := s.opts.Clock()
	var (
		released []models.SeatKey
		failed   []models.SeatKey
		errs     []error
	)
	for _, key := range keys {
		ok, err := s.store.TrySetStatus(ctx, models.SeatTransition{
			Key:          key,
			Expect:       models.SeatReserved,
			ExpectHolder: &userID,
			Next:         models.SeatAvailable,
			Now:          now,
		})
		if err != nil {
			failed = append(failed, key)
			errs = append(errs, fmt.Errorf("failed to release seat %s: %w", key, err))
			continue
		}
		if ok {
			released = append(released, key)
		}
	}

	s.metrics.SeatsReleased(len(released))
	if len(released) > 0 {
		logger.WithContext(ctx).Info("Seats released",
			"event_id", eventID,
			"user_id", userID,
			"seats", models.SeatLabels(released))

		s.events.publish(ctx, models.EventSeatsReleased, models.SeatsReleasedEvent{
			EventID:   eventID,
			UserID:    userID,
			Seats:     models.SeatLabels(released),
			Timestamp: time.Now(),
		})
	}

	if len(failed) > 0 {
		partial := apperrors.WithSeats(apperrors.KindStoreUnavailable, "failed to release seats", failed)
		partial.Err = errors.Join(errs...)
		return len(released), partial
	}
	return len(released), nil
}

func validateSelection(eventID, userID int64, seats []models.SeatKey) ([]models.SeatKey, error) {
	if eventID <= 0 {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "event id is required")
	}
	if userID <= 0 {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "user id is required")
	}
	keys, err := models.CanonicalSeats(eventID, seats)
	if err != nil {
		return nil, apperrors.New(apperrors.KindInvalidRequest, err.Error())
	}
	return keys, nil
}
