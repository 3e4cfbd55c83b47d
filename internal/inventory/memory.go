package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "tessera/internal/errors"
	"tessera/internal/models"
)

// MemoryStore keeps the inventory in process memory. Transactions of one event
// are serialized by a per-event mutex and their writes are staged until commit.
type MemoryStore struct {
	mu       sync.RWMutex
	eventsMu sync.Mutex
	events   map[int64]*sync.Mutex

	seats    map[models.SeatKey]*models.Seat
	prices   map[int64]models.PriceCode
	owners   []models.Ownership
	barcodes map[string]struct{}
	payments map[string]models.PaymentUse
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:   make(map[int64]*sync.Mutex),
		seats:    make(map[models.SeatKey]*models.Seat),
		prices:   make(map[int64]models.PriceCode),
		barcodes: make(map[string]struct{}),
		payments: make(map[string]models.PaymentUse),
	}
}

// PutPriceCode creates or replaces a price code. Prices are read live, so a
// change is visible to the next pricing call.
func (s *MemoryStore) PutPriceCode(pc models.PriceCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[pc.ID] = pc
}

// AddSeats inserts seats, skipping ones that already exist.
func (s *MemoryStore) AddSeats(seats ...models.Seat) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for i := range seats {
		seat := seats[i]
		seat.Row = models.NormalizeRow(seat.Row)
		if seat.Status == "" {
			seat.Status = models.SeatAvailable
		}
		key := seat.Key()
		if _, ok := s.seats[key]; ok {
			continue
		}
		seat.UpdatedAt = time.Now()
		s.seats[key] = &seat
		added++
	}
	return added
}

func (s *MemoryStore) eventLock(eventID int64) *sync.Mutex {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	m, ok := s.events[eventID]
	if !ok {
		m = &sync.Mutex{}
		s.events[eventID] = m
	}
	return m
}

// view copies a stored seat and joins its current base price. Caller holds mu.
func (s *MemoryStore) view(seat *models.Seat) *models.Seat {
	out := *seat
	if seat.ReservedBy != nil {
		by := *seat.ReservedBy
		out.ReservedBy = &by
	}
	if seat.ReservedUntil != nil {
		until := *seat.ReservedUntil
		out.ReservedUntil = &until
	}
	if seat.PriceCodeID != nil {
		id := *seat.PriceCodeID
		out.PriceCodeID = &id
		if pc, ok := s.prices[id]; ok {
			out.BasePrice = pc.BasePrice
		}
	}
	return &out
}

func (s *MemoryStore) GetSeat(ctx context.Context, key models.SeatKey) (*models.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key.Row = models.NormalizeRow(key.Row)
	seat, ok := s.seats[key]
	if !ok {
		return nil, apperrors.WithSeats(apperrors.KindSeatNotFound, "seat not found", []models.SeatKey{key})
	}
	return s.view(seat), nil
}

func (s *MemoryStore) ListSeats(ctx context.Context, eventID int64) ([]models.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var seats []models.Seat
	for key, seat := range s.seats {
		if key.EventID == eventID {
			seats = append(seats, *s.view(seat))
		}
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].Key().Less(seats[j].Key()) })
	return seats, nil
}

func (s *MemoryStore) TrySetStatus(ctx context.Context, t models.SeatTransition) (bool, error) {
	lock := s.eventLock(t.Key.EventID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	seat, ok := s.seats[t.Key]
	if !ok {
		return false, nil
	}
	if seat.DisplayStatus(t.Now) != t.Expect {
		return false, nil
	}
	if t.ExpectHolder != nil && (seat.ReservedBy == nil || *seat.ReservedBy != *t.ExpectHolder) {
		return false, nil
	}

	next := *seat
	next.Status = t.Next
	next.ReservedBy = t.Holder
	next.ReservedUntil = t.Until
	if err := checkHolder(&next); err != nil {
		return false, err
	}
	next.UpdatedAt = time.Now()
	s.seats[t.Key] = &next
	return true, nil
}

func (s *MemoryStore) InTx(ctx context.Context, eventID int64, fn func(tx Tx) error) error {
	lock := s.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{
		store:   s,
		eventID: eventID,
		staged:  make(map[models.SeatKey]*models.Seat),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

func (s *MemoryStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.RLock()
	eventIDs := make(map[int64]struct{})
	for key := range s.seats {
		eventIDs[key.EventID] = struct{}{}
	}
	s.mu.RUnlock()

	var cleared int64
	for eventID := range eventIDs {
		lock := s.eventLock(eventID)
		lock.Lock()
		s.mu.Lock()
		for key, seat := range s.seats {
			if key.EventID != eventID || seat.Status != models.SeatReserved {
				continue
			}
			if seat.DisplayStatus(now) == models.SeatAvailable {
				next := *seat
				next.Clear()
				next.UpdatedAt = time.Now()
				s.seats[key] = &next
				cleared++
			}
		}
		s.mu.Unlock()
		lock.Unlock()
	}
	return cleared, nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID int64) ([]models.Ownership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Ownership
	for _, rec := range s.owners {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetByBarcode(ctx context.Context, barcode string) (*models.Ownership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.owners {
		if rec.Barcode == barcode {
			out := rec
			return &out, nil
		}
	}
	return nil, nil
}

type memoryTx struct {
	store    *MemoryStore
	eventID  int64
	staged   map[models.SeatKey]*models.Seat
	owners   []models.Ownership
	payments []models.PaymentUse
}

func (tx *memoryTx) LockSeats(ctx context.Context, keys []models.SeatKey) (map[models.SeatKey]*models.Seat, error) {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()

	out := make(map[models.SeatKey]*models.Seat, len(keys))
	for _, key := range keys {
		if key.EventID != tx.eventID {
			return nil, fmt.Errorf("seat %s belongs to event %d, transaction is scoped to event %d", key, key.EventID, tx.eventID)
		}
		if seat, ok := tx.staged[key]; ok {
			copied := *seat
			out[key] = &copied
			continue
		}
		seat, ok := tx.store.seats[key]
		if !ok {
			continue
		}
		v := tx.store.view(seat)
		tx.staged[key] = v
		copied := *v
		out[key] = &copied
	}
	return out, nil
}

func (tx *memoryTx) UpdateSeat(ctx context.Context, seat *models.Seat) error {
	key := seat.Key()
	if _, ok := tx.staged[key]; !ok {
		return fmt.Errorf("seat %s was not locked in this transaction", key)
	}
	if err := checkHolder(seat); err != nil {
		return err
	}
	copied := *seat
	tx.staged[key] = &copied
	return nil
}

func (tx *memoryTx) InsertOwnership(ctx context.Context, rec *models.Ownership) error {
	if rec.EventID != tx.eventID {
		return fmt.Errorf("ownership for event %d inside transaction of event %d", rec.EventID, tx.eventID)
	}
	for _, staged := range tx.owners {
		if staged.Barcode == rec.Barcode {
			return fmt.Errorf("duplicate barcode %s", rec.Barcode)
		}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	tx.owners = append(tx.owners, *rec)
	return nil
}

func (tx *memoryTx) RecordPayment(ctx context.Context, use *models.PaymentUse) error {
	tx.store.mu.RLock()
	_, used := tx.store.payments[use.PaymentRef]
	tx.store.mu.RUnlock()
	for _, staged := range tx.payments {
		if staged.PaymentRef == use.PaymentRef {
			used = true
		}
	}
	if used {
		return apperrors.Newf(apperrors.KindPaymentAlreadyUsed, "payment %s was already used", use.PaymentRef)
	}
	if use.CreatedAt.IsZero() {
		use.CreatedAt = time.Now()
	}
	tx.payments = append(tx.payments, *use)
	return nil
}

func (tx *memoryTx) commit() error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	// Uniqueness across events is only decidable under the store lock.
	for _, rec := range tx.owners {
		if _, ok := s.barcodes[rec.Barcode]; ok {
			return fmt.Errorf("duplicate barcode %s", rec.Barcode)
		}
	}
	for _, use := range tx.payments {
		if _, ok := s.payments[use.PaymentRef]; ok {
			return apperrors.Newf(apperrors.KindPaymentAlreadyUsed, "payment %s was already used", use.PaymentRef)
		}
	}

	now := time.Now()
	for key, seat := range tx.staged {
		next := *seat
		next.BasePrice = s.seats[key].BasePrice
		next.UpdatedAt = now
		s.seats[key] = &next
	}
	for _, rec := range tx.owners {
		s.nextID++
		rec.ID = s.nextID
		s.owners = append(s.owners, rec)
		s.barcodes[rec.Barcode] = struct{}{}
	}
	for _, use := range tx.payments {
		s.payments[use.PaymentRef] = use
	}
	return nil
}

func checkHolder(seat *models.Seat) error {
	held := seat.ReservedBy != nil && seat.ReservedUntil != nil
	switch seat.Status {
	case models.SeatReserved:
		if !held {
			return fmt.Errorf("seat %s: RESERVED requires holder and deadline", seat.Key())
		}
	case models.SeatAvailable, models.SeatSold:
		if seat.ReservedBy != nil || seat.ReservedUntil != nil {
			return fmt.Errorf("seat %s: %s must not carry a holder", seat.Key(), seat.Status)
		}
	default:
		return fmt.Errorf("seat %s: unknown status %q", seat.Key(), seat.Status)
	}
	return nil
}
