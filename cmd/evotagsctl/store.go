package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/evotags/evotags/internal/config"
	"github.com/evotags/evotags/internal/repository"
	"github.com/evotags/evotags/internal/repository/postgres"
	redisrepo "github.com/evotags/evotags/internal/repository/redis"
	"github.com/evotags/evotags/internal/service"
	"github.com/evotags/evotags/pkg/database"
	"github.com/evotags/evotags/pkg/logger"
)

// store holds the connections a maintenance command needs.
type store struct {
	cfg    *config.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
	rdb    *redis.Client
}

func openStore(ctx context.Context) (*store, error) {
	cfg, err := config.Parse()
	if err != nil {
		return nil, err
	}
	log := logger.NewWithWriter(config.ServiceName+"-ctl", cfg.LogLevel, os.Stderr)

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return &store{cfg: cfg, logger: log, pool: pool}, nil
}

// adminService builds the admin service. The feed cache is dropped after
// writes when Redis is reachable.
func (s *store) adminService(ctx context.Context) *service.AdminService {
	var cache repository.FeedCache
	if s.cfg.FeedCacheEnabled {
		rdb, err := database.NewRedisClient(ctx, s.cfg.Redis())
		if err != nil {
			s.logger.Warn("feed cache not invalidated, redis unreachable", slog.String("error", err.Error()))
		} else {
			s.rdb = rdb
			cache = redisrepo.NewFeedCache(rdb, s.cfg.FeedCacheTTL)
		}
	}

	accounts := postgres.NewAccountRepository(s.pool)
	reviews := postgres.NewReviewRepository(s.pool)
	feed := service.NewFeedService(reviews, cache, s.logger)
	return service.NewAdminService(accounts, reviews, feed, s.logger)
}

func (s *store) Close() {
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	s.pool.Close()
}
