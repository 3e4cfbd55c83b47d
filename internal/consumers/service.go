package consumers

import (
	"context"
	"fmt"

	"tessera/internal/config"
	"tessera/internal/database"
	"tessera/internal/logger"
	"tessera/internal/messaging"
	"tessera/internal/metrics"
	"tessera/internal/models"
	"tessera/internal/repository"
	"tessera/internal/search"

	"github.com/nats-io/stan.go"
)

// QueueGroup is shared by all consumer instances so each event is handled once.
const QueueGroup = "tessera-consumers"

// Subscriber is satisfied by messaging.NATSClient.
type Subscriber interface {
	SubscribeQueue(subject, queue string, handler stan.MsgHandler) (stan.Subscription, error)
}

type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	repos    *repository.Repositories
	handlers *Handlers
	subs     []stan.Subscription
}

func NewConsumerService(cfg *config.Config, m *metrics.Metrics) (*ConsumerService, error) {
	cs := &ConsumerService{}

	natsClient, err := messaging.NewNATSClient(cfg.NATS.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	cs.nats = natsClient

	// Очистка удержаний нужна только для postgres: memory backend живёт в процессе API
	if cfg.Inventory.Backend == config.BackendPostgres {
		dbCfg := cfg.Database
		if m != nil {
			dbCfg.Retry.OnRetry = m.StoreRetry
		}
		db, err := database.Connect(dbCfg)
		if err != nil {
			cs.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		cs.db = db
		cs.repos = repository.NewRepositories(db, dbCfg.LockTimeout)
	}

	var indexer TicketIndexer
	if cfg.Elasticsearch.Enabled {
		index, err := search.NewTicketIndex(cfg.Elasticsearch)
		if err != nil {
			cs.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
		}
		indexer = index
	}
	cs.handlers = NewHandlers(indexer)

	return cs, nil
}

// Publisher returns the NATS client for background jobs.
func (cs *ConsumerService) Publisher() *messaging.NATSClient {
	return cs.nats
}

// Seats returns the seat repository, or nil when the inventory is not in postgres.
func (cs *ConsumerService) Seats() *repository.SeatRepository {
	if cs.repos == nil {
		return nil
	}
	return cs.repos.Seats
}

func (cs *ConsumerService) Start() error {
	logger.Get().Info("Starting NATS consumers...")
	subs, err := Subscribe(cs.nats, cs.handlers)
	cs.subs = subs
	if err != nil {
		return err
	}
	logger.Get().Info("All consumers started successfully", "subscriptions", len(subs))
	return nil
}

// Subscribe attaches every handler to its subject in the shared queue group.
func Subscribe(sub Subscriber, h *Handlers) ([]stan.Subscription, error) {
	routes := []struct {
		subject string
		handler MessageHandler
	}{
		{models.EventTicketsPurchased, h.HandleTicketsPurchased},
		{models.EventPurchaseRejected, h.HandlePurchaseRejected},
		{models.EventSeatsReserved, h.HandleSeatsReserved},
		{models.EventSeatsReleased, h.HandleSeatsReleased},
		{models.EventHoldsExpired, h.HandleHoldsExpired},
	}

	subs := make([]stan.Subscription, 0, len(routes))
	for _, r := range routes {
		s, err := sub.SubscribeQueue(r.subject, QueueGroup, h.Ack(r.subject, r.handler))
		if err != nil {
			return subs, fmt.Errorf("failed to subscribe to %s: %w", r.subject, err)
		}
		subs = append(subs, s)
	}
	return subs, nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	log := logger.Get()
	log.Info("Shutting down consumer service...")

	for _, s := range cs.subs {
		if err := s.Close(); err != nil {
			log.Error("Error closing subscription", "error", err)
		}
	}

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			log.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			log.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
