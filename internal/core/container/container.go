package container

import (
	"context"
	"database/sql"
	"fmt"

	"eam/internal/attachments"
	auditLogRepo "eam/internal/auditlog"
	"eam/internal/config"
	"eam/internal/database"
	"eam/internal/health"
	"eam/internal/metrics"
	"eam/internal/pages"
	"eam/internal/proxy"
	"eam/internal/rate_limiter"
	"eam/internal/repository"
	"eam/internal/session"
	"eam/internal/suggest"
	"eam/internal/workorders"
	"eam/pkg/auditlog"
	"eam/pkg/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	DB           *sql.DB
	Repository   *repository.Repository
	Redis        *redis.Client
	SessionStore session.Store
	BlobStore    attachments.BlobStore
	HealthStore  *health.Store
	Checker      health.Checker

	ProxyLimiter  *rate_limiter.RateLimiter
	CreateLimiter *rate_limiter.RateLimiter

	HealthHandler      *health.Handler
	SessionHandler     *session.Handler
	WorkOrderHandler   *workorders.Handler
	AttachmentsHandler *attachments.Handler
	SuggestHandler     *suggest.Handler
	ProxyHandler       *proxy.Handler
	PagesHandler       *pages.Handler
}

// NewAppContainer connects the configured backends and builds every handler.
// Backends without configuration fall back to in-memory implementations.
func NewAppContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	repo, auditRepo, err := c.workOrderStores(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.SessionStore, err = c.sessionStore(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.BlobStore, err = c.blobStore(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.HealthStore = health.NewStore(cfg.Server.Version, cfg.Maintenance.CacheDuration)
	if cfg.Maintenance.CheckURL != "" {
		c.Checker = health.NewHTTPChecker(cfg.Maintenance.CheckURL, cfg.Maintenance.Timeout)
	} else {
		c.Checker = health.NewStoreChecker(c.HealthStore)
	}

	c.ProxyLimiter = rate_limiter.NewRateLimiter(cfg.Proxy.RateLimit.Requests, cfg.Proxy.RateLimit.Window)
	c.CreateLimiter = rate_limiter.NewRateLimiter(cfg.WorkOrder.CreateRateLimit.Requests, cfg.WorkOrder.CreateRateLimit.Window)

	auditLog := auditlog.NewAuditLog(auditRepo, logger)
	service := workorders.NewService(repo, auditLog, logger)
	backend := attachments.NewBlobBackend(c.BlobStore, cfg.Attachments.PublicURL, cfg.Attachments.URLExpiry, logger)
	drafts := workorders.NewDraftService(service, backend, workorders.DraftConfig{
		Capabilities: cfg.WorkOrder.Capabilities(),
		UTCOffset:    cfg.WorkOrder.UTCOffset(),
		StaleAfter:   cfg.WorkOrder.SaveStaleAfter,
	}, c.Metrics, logger)

	var debouncer *suggest.Debouncer
	if cfg.Suggest.URL != "" {
		debouncer = suggest.NewDebouncer(suggest.NewHTTPGenerator(cfg.Suggest), cfg.Suggest.Debounce)
	} else {
		logger.Info("suggestion service not configured")
	}

	c.HealthHandler = health.NewHandler(c.HealthStore, logger)
	c.SessionHandler = session.NewHandler(c.SessionStore, logger)
	c.WorkOrderHandler = workorders.NewHandler(service, drafts, c.SessionStore, c.CreateLimiter.Middleware(rate_limiter.ByClientIP), logger)
	c.AttachmentsHandler = attachments.NewHandler(backend, c.BlobStore, c.Metrics, logger)
	c.SuggestHandler = suggest.NewHandler(debouncer, logger)
	c.ProxyHandler = proxy.NewHandler(cfg.Proxy.Config, c.ProxyLimiter.Middleware(rate_limiter.ByClientIP), c.Metrics, logger)
	c.PagesHandler = pages.NewHandler(c.SessionStore, service, c.Checker, cfg.Server.SecureCookies, logger)

	return c, nil
}

func (c *Container) workOrderStores(ctx context.Context) (workorders.Repository, auditlog.Repository, error) {
	cfg := c.Config.Database
	if cfg.URL == "" {
		c.Logger.Info("no database configured, keeping work orders in memory")
		var seed []models.WorkOrder
		if c.Config.WorkOrder.Seed {
			seed = workorders.SeedWorkOrders()
		}
		return workorders.NewMemoryRepository(seed), auditLogRepo.NewMemoryRepository(), nil
	}

	if cfg.AutoMigrate {
		if err := database.RunMigrations(cfg.URL, cfg.MigrationsDir, c.Logger); err != nil {
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	db, err := database.NewPostgresConnection(ctx, cfg.URL, database.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	c.DB = db
	c.Repository = repository.NewRepository(db)
	c.Logger.Info("connected to the database")

	repo := workorders.NewPostgresRepository(c.Repository)
	if c.Config.WorkOrder.Seed {
		n, err := workorders.SeedRepository(ctx, repo, workorders.SeedWorkOrders())
		if err != nil {
			return nil, nil, fmt.Errorf("seed work orders: %w", err)
		}
		if n > 0 {
			c.Logger.Info("seeded work orders", zap.Int("count", n))
		}
	}

	return repo, auditLogRepo.NewRepository(c.Repository), nil
}

func (c *Container) sessionStore(ctx context.Context) (session.Store, error) {
	cfg := c.Config.Redis
	if cfg.Addr == "" {
		c.Logger.Info("no redis configured, keeping sessions in memory")
		return session.NewMemoryStore(), nil
	}

	c.Redis = session.NewRedisClient(cfg)
	if err := c.Redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	c.Logger.Info("connected to redis", zap.String("addr", cfg.Addr))
	return session.NewRedisStore(c.Redis, cfg.TTL), nil
}

func (c *Container) blobStore(ctx context.Context) (attachments.BlobStore, error) {
	cfg := c.Config.MinIO
	if cfg.Endpoint == "" {
		c.Logger.Info("no object storage configured, keeping attachments in memory")
		return attachments.NewMemoryStore(), nil
	}

	store, err := attachments.NewMinIOStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.Logger.Info("connected to object storage", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
	return store, nil
}

// Close releases the backend connections and stops the limiter cleanup loops.
func (c *Container) Close() {
	if c.ProxyLimiter != nil {
		c.ProxyLimiter.Stop()
	}
	if c.CreateLimiter != nil {
		c.CreateLimiter.Stop()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("failed to close database", zap.Error(err))
		}
	}
}
