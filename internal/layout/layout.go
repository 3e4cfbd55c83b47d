// Package layout builds rectangular seat maps for an event.
package layout

import (
	"fmt"

	"tessera/internal/models"

	"github.com/shopspring/decimal"
)

const (
	TierStandard = "standard"
	TierPremium  = "premium"
)

// Plan describes a hall: Rows rows of SeatsPerRow seats, the first
// PremiumRows of them at the premium price.
type Plan struct {
	EventID       int64
	Rows          int
	SeatsPerRow   int
	PremiumRows   int
	StandardPrice decimal.Decimal
	PremiumPrice  decimal.Decimal
}

func (p Plan) Validate() error {
	switch {
	case p.EventID <= 0:
		return fmt.Errorf("event id must be positive")
	case p.Rows <= 0 || p.Rows > 26*26:
		return fmt.Errorf("rows must be between 1 and %d", 26*26)
	case p.SeatsPerRow <= 0:
		return fmt.Errorf("seats per row must be positive")
	case p.PremiumRows < 0 || p.PremiumRows > p.Rows:
		return fmt.Errorf("premium rows must be between 0 and %d", p.Rows)
	case p.StandardPrice.IsNegative() || p.PremiumPrice.IsNegative():
		return fmt.Errorf("prices must not be negative")
	}
	return nil
}

// Tiers returns the price labels the plan needs, with their base price.
func (p Plan) Tiers() map[string]decimal.Decimal {
	tiers := map[string]decimal.Decimal{}
	if p.PremiumRows > 0 {
		tiers[TierPremium] = p.PremiumPrice
	}
	if p.PremiumRows < p.Rows {
		tiers[TierStandard] = p.StandardPrice
	}
	return tiers
}

// Seats lays the plan out as AVAILABLE seats. codes maps tier label to price
// code id; a tier without a code leaves the seat unpriced.
func (p Plan) Seats(codes map[string]int64) ([]models.Seat, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	seats := make([]models.Seat, 0, p.Rows*p.SeatsPerRow)
	for r := 0; r < p.Rows; r++ {
		tier := TierStandard
		if r < p.PremiumRows {
			tier = TierPremium
		}
		var code *int64
		if id, ok := codes[tier]; ok {
			id := id
			code = &id
		}
		row := RowLabel(r)
		for n := 1; n <= p.SeatsPerRow; n++ {
			seats = append(seats, models.Seat{
				EventID:     p.EventID,
				Row:         row,
				Number:      n,
				Status:      models.SeatAvailable,
				PriceCodeID: code,
			})
		}
	}
	return seats, nil
}

// RowLabel names row i: A..Z, then AA, AB...
func RowLabel(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return string(rune('A'+i/26-1)) + string(rune('A'+i%26))
}
