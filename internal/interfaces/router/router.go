package router

import (
	"net/http"
	"time"

	"portfel-backend/internal/application/aggregation"
	assetsvc "portfel-backend/internal/application/assets"
	dealsvc "portfel-backend/internal/application/deals"
	portfoliosvc "portfel-backend/internal/application/portfolios"
	possvc "portfel-backend/internal/application/positions"
	"portfel-backend/internal/application/pricing"
	"portfel-backend/internal/application/reconcile"
	"portfel-backend/internal/config"
	"portfel-backend/internal/infrastructure/database"
	assethandler "portfel-backend/internal/interfaces/handlers/assets"
	dealhandler "portfel-backend/internal/interfaces/handlers/deals"
	healthhandler "portfel-backend/internal/interfaces/handlers/health"
	portfoliohandler "portfel-backend/internal/interfaces/handlers/portfolios"
	poshandler "portfel-backend/internal/interfaces/handlers/positions"
	"portfel-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Services is the application layer wired for one database and Redis client.
type Services struct {
	DB         *gorm.DB
	Aggregates *aggregation.Service
	Positions  *possvc.Service
	Portfolios *portfoliosvc.Service
	Assets     *assetsvc.Service
	Deals      *dealsvc.Service
	// Quotes is the external price source for refreshes; nil without BROKER_API_URL.
	Quotes pricing.Feed
}

// NewServices wires the services. Aggregates always value holdings from the stored asset
// price; the broker feed (cached in Redis when available) only refreshes those prices.
func NewServices(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *Services {
	agg := &aggregation.Service{DB: db, Prices: pricing.ReferenceFeed{}}
	s := &Services{
		DB:         db,
		Aggregates: agg,
		Positions:  &possvc.Service{DB: db, Aggregates: agg},
		Portfolios: &portfoliosvc.Service{DB: db, Aggregates: agg},
		Assets:     &assetsvc.Service{DB: db, Aggregates: agg},
		Deals:      &dealsvc.Service{DB: db},
	}
	if cfg.BrokerAPIURL != "" {
		var quotes pricing.Feed = pricing.NewBrokerFeed(cfg.BrokerAPIURL, cfg.BrokerAPIToken)
		if rdb != nil {
			cached := &pricing.CachedFeed{Rdb: rdb, Next: quotes, TTL: cfg.PriceCacheTTL}
			s.Assets.Cache = cached
			quotes = cached
		}
		s.Quotes = quotes
	}
	return s
}

// ReconcileJob builds the periodic price refresh and recompute pass.
func (s *Services) ReconcileJob(timeout time.Duration) *reconcile.Job {
	return &reconcile.Job{
		Assets:     s.Assets,
		Aggregates: s.Aggregates,
		Feed:       s.Quotes,
		Timeout:    timeout,
		Log:        log.Logger.With().Str("job", "portfolio_reconcile").Logger(),
	}
}

// CreateApp connects Redis and the database and builds the app. The returned Services is the
// same graph the HTTP handlers use; it is nil when no database is configured.
func CreateApp(cfg *config.Config) (*fiber.App, *Services, *redis.Client, error) {
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb = redis.NewClient(opt)
	}

	var svc *Services
	if cfg.DatabaseURL != "" {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
		svc = NewServices(cfg, db, rdb)
	}

	app := NewApp(cfg, svc, rdb)
	return app, svc, rdb, nil
}

// NewApp builds the HTTP surface. API routes are mounted only when svc is set.
func NewApp(cfg *config.Config, svc *Services, rdb *redis.Client) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Session(rdb))

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	if svc != nil {
		hh.DB = &gormDBPinger{db: svc.DB}
	}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	if svc == nil {
		log.Warn().Msg("no database configured, API routes disabled")
		return app
	}
	admin := middleware.RequireAdminKey(cfg.AdminKey)
	api := app.Group("/api/v1", middleware.RequireAuth())

	// Assets
	ah := &assethandler.Handlers{Service: svc.Assets}
	api.Get("/asset-types", ah.ListTypes)
	api.Get("/asset-types/:id", ah.GetType)
	api.Post("/asset-types", admin, ah.CreateType)
	api.Get("/assets", ah.List)
	api.Get("/assets/:id", ah.Get)
	api.Post("/assets", admin, ah.Create)
	api.Patch("/assets/:id/price", admin, ah.UpdatePrice)
	api.Delete("/assets/:id", admin, ah.Delete)

	// Portfolios
	ph := &portfoliohandler.Handlers{Service: svc.Portfolios}
	api.Post("/portfolios", ph.Create)
	api.Get("/portfolios", ph.List)
	api.Get("/portfolios/:id", ph.Get)
	api.Patch("/portfolios/:id", ph.Rename)
	api.Delete("/portfolios/:id", ph.Delete)
	api.Post("/portfolios/:id/recompute", ph.Recompute)

	// Deals
	dh := &dealhandler.Handlers{Service: svc.Deals, Positions: svc.Positions}
	api.Get("/portfolios/:id/deals", dh.List)
	api.Post("/portfolios/:id/deals", dh.Record)

	// Positions
	poh := &poshandler.Handlers{Service: svc.Positions}
	api.Post("/portfolio-assets", poh.Apply)
	api.Delete("/portfolio-assets/:id", poh.Remove)

	return app
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
