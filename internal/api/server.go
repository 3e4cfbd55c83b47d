package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"tessera/internal/barcode"
	"tessera/internal/cache"
	"tessera/internal/config"
	"tessera/internal/database"
	"tessera/internal/external"
	"tessera/internal/handlers"
	"tessera/internal/inventory"
	"tessera/internal/layout"
	"tessera/internal/logger"
	"tessera/internal/messaging"
	"tessera/internal/metrics"
	"tessera/internal/middleware"
	"tessera/internal/models"
	"tessera/internal/repository"
	"tessera/internal/search"
	"tessera/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Server представляет HTTP сервер API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	redis    *redis.Client
	limiter  *cache.RateLimiter
	registry *prometheus.Registry
	services *service.Services
}

// NewServer собирает зависимости и роуты
func NewServer(cfg *config.Config) (*Server, error) {
	gin.SetMode(cfg.GinMode)

	s := &Server{config: cfg}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(s.registry)
	}

	store, owners, err := s.openStore(m)
	if err != nil {
		s.Cleanup()
		return nil, err
	}

	gateway, err := newPaymentGateway(cfg.Payment)
	if err != nil {
		s.Cleanup()
		return nil, err
	}

	barcodes := barcode.NewGenerator(cfg.Inventory.InstanceID)
	logger.Get().Info("Barcode generator ready", "instance", barcodes.Instance())

	deps := service.Dependencies{
		Store:    store,
		Owners:   owners,
		Gateway:  gateway,
		Barcodes: barcodes,
		Metrics:  m,
	}

	// NATS, Elasticsearch и Redis опциональны: без них API продолжает работать
	if cfg.NATS.Enabled {
		natsClient, err := messaging.NewNATSClient(cfg.NATS.Config)
		if err != nil {
			logger.Get().Warn("NATS unavailable, events will not be published", "error", err)
		} else {
			s.nats = natsClient
			deps.Publisher = natsClient
		}
	}

	if cfg.Elasticsearch.Enabled {
		index, err := search.NewTicketIndex(cfg.Elasticsearch)
		if err != nil {
			logger.Get().Warn("Elasticsearch unavailable, ticket search falls back to barcode lookup", "error", err)
		} else {
			deps.Search = index
		}
	}

	if cfg.Redis.Enabled && cfg.RateLimit.Enabled {
		rdb, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Get().Warn("Redis unavailable, rate limiting disabled", "error", err)
		} else {
			s.redis = rdb
			s.limiter = cache.NewRateLimiter(rdb, cfg.RateLimit)
		}
	}

	s.services = service.NewServices(deps, service.Options{
		HoldDuration:    cfg.Inventory.HoldDuration,
		MaxHoldDuration: cfg.Inventory.HoldMaxDuration,
		Currency:        cfg.Inventory.Currency,
	})

	s.router = gin.New()
	s.router.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.CORS(),
		middleware.Timeout(cfg.RequestTimeout),
	)
	s.setupRoutes()

	return s, nil
}

// openStore выбирает хранилище мест по INVENTORY_BACKEND
func (s *Server) openStore(m *metrics.Metrics) (inventory.Store, inventory.OwnershipReader, error) {
	switch s.config.Inventory.Backend {
	case config.BackendMemory:
		store := inventory.NewMemoryStore()
		if err := seedMemoryStore(store, s.config.Inventory.Seed); err != nil {
			return nil, nil, fmt.Errorf("failed to seed memory store: %w", err)
		}
		logger.Get().Warn("Using in-memory inventory, state is lost on restart")
		return store, store, nil

	case config.BackendPostgres:
		dbCfg := s.config.Database
		if m != nil {
			dbCfg.Retry.OnRetry = m.StoreRetry
		}
		db, err := database.Connect(dbCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db

		if err := db.RunMigrations(); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		repos := repository.NewRepositories(db, dbCfg.LockTimeout)
		return repos.Seats, repos.Ownership, nil

	default:
		return nil, nil, fmt.Errorf("unknown inventory backend %q", s.config.Inventory.Backend)
	}
}

func seedMemoryStore(store *inventory.MemoryStore, cfg config.SeedConfig) error {
	if cfg.EventID <= 0 {
		return nil
	}
	standard, err := decimal.NewFromString(cfg.StandardPrice)
	if err != nil {
		return fmt.Errorf("invalid standard price: %w", err)
	}
	premium, err := decimal.NewFromString(cfg.PremiumPrice)
	if err != nil {
		return fmt.Errorf("invalid premium price: %w", err)
	}

	plan := layout.Plan{
		EventID:       cfg.EventID,
		Rows:          cfg.Rows,
		SeatsPerRow:   cfg.SeatsPerRow,
		PremiumRows:   cfg.PremiumRows,
		StandardPrice: standard,
		PremiumPrice:  premium,
	}
	codes := make(map[string]int64)
	var nextID int64
	for _, tier := range []string{layout.TierPremium, layout.TierStandard} {
		price, ok := plan.Tiers()[tier]
		if !ok {
			continue
		}
		nextID++
		store.PutPriceCode(models.PriceCode{ID: nextID, Label: tier, BasePrice: price})
		codes[tier] = nextID
	}

	seats, err := plan.Seats(codes)
	if err != nil {
		return err
	}
	added := store.AddSeats(seats...)
	logger.Get().Info("Seeded memory store", "event_id", cfg.EventID, "seats", added)
	return nil
}

func newPaymentGateway(cfg config.PaymentConfig) (service.PaymentGateway, error) {
	switch cfg.Provider {
	case config.ProviderStripe:
		gw, err := external.NewStripeGateway(cfg.StripeSecretKey)
		if err != nil {
			// Без ключа резервирование работает, оплата отвечает PAYMENT_GATEWAY
			logger.Get().Warn("Stripe is not configured, payments are disabled", "error", err)
			return nil, nil
		}
		return gw, nil
	case config.ProviderGateway:
		return external.NewPaymentClient(cfg.Gateway), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services, handlers.WithDirectPurchase(s.config.Inventory.DirectPurchase))

	mw := handlers.RouteMiddleware{
		Auth:         middleware.JWTAuth(s.config.Auth.JWTSecret),
		OptionalAuth: middleware.OptionalAuth(s.config.Auth.JWTSecret),
	}
	if s.limiter != nil {
		mw.RateLimit = middleware.RateLimit(s.limiter)
	}
	h.Register(s.router.Group("/api"), mw)

	s.router.GET("/health", s.healthCheck)
	if s.registry != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	body := gin.H{
		"status":  "ok",
		"service": "tessera-api",
		"backend": s.config.Inventory.Backend,
	}
	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		check := s.db.HealthCheck(ctx)
		body["database"] = check
		if check.Status != "healthy" {
			body["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}
	c.JSON(http.StatusOK, body)
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// PprofHandler возвращает отдельный mux с pprof
func PprofHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	log := logger.Get()
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			log.Error("Error closing NATS connection", "error", err)
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Error("Error closing Redis connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
