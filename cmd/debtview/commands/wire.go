package commands

import (
	"context"
	"fmt"
	"math"

	"github.com/wonny/debtview/internal/feed"
	"github.com/wonny/debtview/internal/reference"
	"github.com/wonny/debtview/pkg/config"
	"github.com/wonny/debtview/pkg/database"
	"github.com/wonny/debtview/pkg/httputil"
	"github.com/wonny/debtview/pkg/logger"
	"github.com/wonny/debtview/pkg/redis"
)

const redisPrefix = "debtview"

// app holds the shared infrastructure every command builds on.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	http   *httputil.Client
	redis  *redis.Client
	cache  *redis.Cache
	db     *database.DB
	source reference.Source
	cached *reference.CachedSource
}

// newApp connects the optional stores and builds the reference source named
// by the config.
func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	// Retries belong to the refresh loop; a retried handshake would reuse a
	// cycle's session.
	a.http = httputil.New(cfg, log).DisableRetry()

	rc, err := redis.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = rc
	a.cache = redis.NewCache(rc, redisPrefix)

	if rc.Enabled() {
		// one request budget across every process polling the exchange
		limit := redis.NSERateLimit
		if cfg.Feed.RateLimit > 0 {
			limit.Limit = int(math.Max(1, math.Round(cfg.Feed.RateLimit)))
		}
		a.http.WithLimiter(redis.NewRateLimiter(rc, redisPrefix).Bind(limit))
		log.WithField("limit", limit.Limit).Info("Using shared Redis rate limit for exchange requests")
	}

	if err := a.buildSource(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) buildSource(ctx context.Context) error {
	ref := a.cfg.Reference

	var src reference.Source
	switch ref.Source {
	case "file":
		src = &reference.FileSource{Path: ref.Path}
	case "url":
		// the master list host does not need the feed's session or limiter
		src = &reference.URLSource{URL: ref.URL, Client: httputil.New(a.cfg, a.log).WithRateLimit(0, 0)}
	case "postgres":
		db, err := a.database(ctx)
		if err != nil {
			return err
		}
		src = &reference.PostgresSource{DB: db.Pool, Table: ref.Table}
	default:
		return fmt.Errorf("unknown reference source %q", ref.Source)
	}

	if a.redis.Enabled() {
		a.cached = &reference.CachedSource{Inner: src, Cache: a.cache, TTL: ref.CacheTTL, Logger: a.log.Component("reference")}
		src = a.cached
	}
	a.source = src
	return nil
}

// database connects on first use.
func (a *app) database(ctx context.Context) (*database.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := database.New(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.EnsureDebtMaster(ctx, a.cfg.Reference.Table); err != nil {
		db.Close()
		return nil, err
	}
	a.db = db
	a.log.Info("Connected to database")
	return db, nil
}

func (a *app) provider() *reference.Provider {
	return reference.NewProvider(a.source, a.cfg.Location(), a.log)
}

func (a *app) feedClient() *feed.Client {
	return feed.NewClient(a.http, a.cfg.Feed, a.log)
}

// Close releases the stores.
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close redis")
		}
	}
}
