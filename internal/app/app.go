package app

import (
	"github.com/technicaldee/locallift/internal/config"
	"github.com/technicaldee/locallift/internal/database"
	"github.com/technicaldee/locallift/internal/escrow"
	"github.com/technicaldee/locallift/internal/health"
	"github.com/technicaldee/locallift/internal/middleware"
	"github.com/technicaldee/locallift/internal/pool"
	"github.com/technicaldee/locallift/internal/portfolio"
	"github.com/technicaldee/locallift/internal/registry"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// gormPinger adapts *gorm.DB to the health DBPinger.
type gormPinger struct{ db *gorm.DB }

func (p gormPinger) Ping() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// CreateApp builds the Fiber app with all global middleware and route
// registration. Returns the DB and Redis handles for startup checks.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb = redis.NewClient(opt)
	}
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
	}

	// Health + audit (no auth)
	healthHandlers := &health.Handlers{Rdb: rdb, DB: db, AdminKey: cfg.AdminKey}
	if db != nil {
		healthHandlers.Pinger = gormPinger{db: db}
	}
	app.Get("/", healthHandlers.Root)
	app.Get("/health/json", healthHandlers.JSON)
	app.Get("/health/audit", healthHandlers.Audit)
	app.Get("/health/reset", healthHandlers.Reset)

	if db != nil {
		custodian := &escrow.Custodian{
			Transferer:     escrow.LogTransferer{},
			FeeBps:         cfg.PlatformFeeBps,
			PlatformWallet: cfg.PlatformWallet,
		}
		poolService := &pool.Service{
			DB:           db,
			Escrow:       custodian,
			MinRate:      cfg.MinInterestRateBps,
			MaxRate:      cfg.MaxInterestRateBps,
			GraceSeconds: cfg.RepaymentGraceSecs,
		}
		registryService := &registry.Service{DB: db}
		portfolioService := &portfolio.Service{DB: db}

		registryHandlers := &registry.Handlers{Service: registryService}
		businessGroup := app.Group("/api/v1/business", middleware.RequireIdentity())
		businessGroup.Post("/register", registryHandlers.Register)
		businessGroup.Post("/deactivate", registryHandlers.Deactivate)
		businessGroup.Get("/:id", registryHandlers.Get)

		poolHandlers := &pool.Handlers{Service: poolService}
		poolGroup := app.Group("/api/v1/pools", middleware.RequireIdentity())
		poolGroup.Post("/create", poolHandlers.Create)
		poolGroup.Post("/invest", poolHandlers.Invest)
		poolGroup.Post("/cancel", poolHandlers.Cancel)
		poolGroup.Post("/release-principal", poolHandlers.ReleasePrincipal)
		poolGroup.Post("/settle-repayment", poolHandlers.SettleRepayment)
		poolGroup.Post("/mark-defaulted", poolHandlers.MarkDefaulted)
		poolGroup.Post("/sweep-expired", middleware.RequireAdmin(cfg.AdminKey), poolHandlers.SweepExpired)
		poolGroup.Post("/clear-halt", middleware.RequireAdmin(cfg.AdminKey), poolHandlers.ClearHalt)
		poolGroup.Get("/:id", poolHandlers.Get)

		portfolioHandlers := &portfolio.Handlers{Service: portfolioService}
		investorGroup := app.Group("/api/v1/investors", middleware.RequireIdentity())
		investorGroup.Get("/:id/portfolio", portfolioHandlers.Get)
	}

	return app, db, rdb, nil
}
