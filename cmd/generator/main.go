package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"tessera/internal/config"
	"tessera/internal/database"
	"tessera/internal/layout"
	"tessera/internal/logger"
	"tessera/internal/repository"

	"github.com/shopspring/decimal"
)

var (
	eventID       = flag.Int64("event", 0, "Event ID to generate seats for")
	rows          = flag.Int("rows", 10, "Number of rows")
	seatsPerRow   = flag.Int("seats", 20, "Seats per row")
	premiumRows   = flag.Int("premium-rows", 2, "Front rows priced as premium")
	standardPrice = flag.String("standard-price", "10.00", "Base price of the standard tier")
	premiumPrice  = flag.String("premium-price", "25.00", "Base price of the premium tier")
	dryRun        = flag.Bool("dry-run", false, "Show what would be generated without making changes")
)

// SeatGenerator создаёт ценовые категории и места события
type SeatGenerator struct {
	repos *repository.Repositories
}

func main() {
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	plan, err := planFromFlags()
	if err != nil {
		slog.Error("Invalid layout", "error", err)
		os.Exit(2)
	}

	if *dryRun {
		slog.Info("[DRY RUN] Would generate seats",
			"event_id", plan.EventID,
			"total_seats", plan.Rows*plan.SeatsPerRow,
			"tiers", len(plan.Tiers()))
		return
	}

	slog.Info("Starting seat generator...", "event_id", plan.EventID)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	generator := &SeatGenerator{repos: repository.NewRepositories(db, cfg.Database.LockTimeout)}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	created, err := generator.Generate(ctx, plan)
	if err != nil {
		slog.Error("Failed to generate seats", "error", err)
		os.Exit(1)
	}

	slog.Info("Seat generation completed successfully!", "event_id", plan.EventID, "created", created)
}

func planFromFlags() (layout.Plan, error) {
	standard, err := decimal.NewFromString(*standardPrice)
	if err != nil {
		return layout.Plan{}, fmt.Errorf("invalid standard price: %w", err)
	}
	premium, err := decimal.NewFromString(*premiumPrice)
	if err != nil {
		return layout.Plan{}, fmt.Errorf("invalid premium price: %w", err)
	}

	plan := layout.Plan{
		EventID:       *eventID,
		Rows:          *rows,
		SeatsPerRow:   *seatsPerRow,
		PremiumRows:   *premiumRows,
		StandardPrice: standard,
		PremiumPrice:  premium,
	}
	return plan, plan.Validate()
}

// Generate upserts the plan's price tiers and inserts its seats. Seats that
// already exist are left as they are.
func (g *SeatGenerator) Generate(ctx context.Context, plan layout.Plan) (int64, error) {
	codes := make(map[string]int64)
	for tier, price := range plan.Tiers() {
		pc, err := g.repos.PriceCodes.Upsert(ctx, tier, price)
		if err != nil {
			return 0, err
		}
		codes[tier] = pc.ID
		slog.Info("Price code ready", "label", pc.Label, "id", pc.ID, "base_price", pc.BasePrice.StringFixed(2))
	}

	seats, err := plan.Seats(codes)
	if err != nil {
		return 0, err
	}

	return g.repos.Seats.CreateSeats(ctx, seats)
}
