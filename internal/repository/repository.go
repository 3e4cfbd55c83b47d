package repository

import (
	"time"

	"tessera/internal/database"
)

type Repositories struct {
	Seats      *SeatRepository
	Ownership  *OwnershipRepository
	PriceCodes *PriceCodeRepository
}

func NewRepositories(db *database.DB, lockTimeout time.Duration) *Repositories {
	return &Repositories{
		Seats:      NewSeatRepository(db, lockTimeout),
		Ownership:  NewOwnershipRepository(db),
		PriceCodes: NewPriceCodeRepository(db),
	}
}
