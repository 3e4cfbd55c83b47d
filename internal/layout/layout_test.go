package layout

import (
	"testing"

	"tessera/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlan() Plan {
	return Plan{
		EventID:       3,
		Rows:          3,
		SeatsPerRow:   4,
		PremiumRows:   1,
		StandardPrice: decimal.RequireFromString("10.00"),
		PremiumPrice:  decimal.RequireFromString("25.00"),
	}
}

func TestSeatsAssignTiers(t *testing.T) {
	seats, err := testPlan().Seats(map[string]int64{TierPremium: 1, TierStandard: 2})
	require.NoError(t, err)
	require.Len(t, seats, 12)

	assert.Equal(t, "A", seats[0].Row)
	assert.Equal(t, 1, seats[0].Number)
	assert.Equal(t, int64(1), *seats[0].PriceCodeID)
	assert.Equal(t, models.SeatAvailable, seats[0].Status)

	last := seats[len(seats)-1]
	assert.Equal(t, "C", last.Row)
	assert.Equal(t, 4, last.Number)
	assert.Equal(t, int64(2), *last.PriceCodeID)
}

func TestSeatsWithoutCodeAreUnpriced(t *testing.T) {
	seats, err := testPlan().Seats(nil)
	require.NoError(t, err)
	assert.Nil(t, seats[0].PriceCodeID)
}

func TestTiers(t *testing.T) {
	p := testPlan()
	assert.Len(t, p.Tiers(), 2)

	p.PremiumRows = 0
	tiers := p.Tiers()
	assert.Len(t, tiers, 1)
	assert.True(t, tiers[TierStandard].Equal(decimal.RequireFromString("10")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Plan)
	}{
		{"no event", func(p *Plan) { p.EventID = 0 }},
		{"no rows", func(p *Plan) { p.Rows = 0 }},
		{"no seats", func(p *Plan) { p.SeatsPerRow = 0 }},
		{"too many premium rows", func(p *Plan) { p.PremiumRows = 4 }},
		{"negative price", func(p *Plan) { p.StandardPrice = decimal.NewFromInt(-1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPlan()
			tt.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestRowLabel(t *testing.T) {
	assert.Equal(t, "A", RowLabel(0))
	assert.Equal(t, "Z", RowLabel(25))
	assert.Equal(t, "AA", RowLabel(26))
	assert.Equal(t, "BA", RowLabel(52))
}
