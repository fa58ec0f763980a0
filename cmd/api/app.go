package main

import (
	"context"
	"fmt"

	"audit-ledger/config"
	"audit-ledger/internal/adapter/storage/memory"
	pgStorage "audit-ledger/internal/adapter/storage/postgres"
	redisStorage "audit-ledger/internal/adapter/storage/redis"
	"audit-ledger/internal/core/ports"
	"audit-ledger/internal/service"
	"audit-ledger/pkg/logger"

	"github.com/rs/zerolog"
)

// app is the wired object graph shared by every subcommand.
type app struct {
	auditSvc    *service.AuditServiceImpl
	credSvc     *service.CredentialServiceImpl
	tokenSvc    *service.JWTTokenService
	rateLimiter ports.RateLimiter
	checkers    []ports.HealthChecker
	closers     []func()
}

type repositories struct {
	events     ports.AuditEventRepository
	creds      ports.CredentialRepository
	history    ports.CredentialHistoryRepository
	transactor ports.DBTransactor
}

// buildApp connects storage and builds the services. Redis is only dialled
// when withRedis is set; a failed dial disables rate limiting.
func buildApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, withRedis bool) (*app, error) {
	a := &app{}

	repos, err := a.openStorage(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	if withRedis {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, logger.Component(log, "redis"))
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, rate limiting disabled")
		} else {
			a.closers = append(a.closers, func() { _ = rdb.Close() })
			a.rateLimiter = redisStorage.NewRateLimitStore(rdb)
			a.checkers = append(a.checkers, redisStorage.NewHealthCheck(rdb))
		}
	}

	loc, err := cfg.Audit.Location()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.auditSvc = service.NewAuditService(repos.events, service.AuditConfig{
		DefaultPageSize: cfg.Audit.DefaultPageSize,
		MaxPageSize:     cfg.Audit.MaxPageSize,
		ActorLimit:      cfg.Audit.ActorLimit,
		TopEntities:     cfg.Audit.TopEntities,
		Location:        loc,
	}, logger.Component(log, "audit"))

	hashSvc := service.NewCompositeHashService(service.NewArgon2HashService(), service.NewBcryptHashService(0))
	a.credSvc = service.NewCredentialService(
		repos.creds,
		repos.history,
		repos.transactor,
		hashSvc,
		a.auditSvc,
		cfg.Credential.HistoryLimit,
		logger.Component(log, "credential"),
	)
	a.tokenSvc = service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	return a, nil
}

func (a *app) openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		log.Warn().Msg("Using in-memory storage, data is lost on exit")
		store := memory.NewStore()
		return &repositories{
			events:     memory.NewAuditEventRepo(store),
			creds:      memory.NewCredentialRepo(store),
			history:    memory.NewCredentialHistoryRepo(store),
			transactor: memory.NewTransactor(store),
		}, nil

	case config.DriverPostgres:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, logger.Component(log, "postgres"))
		if err != nil {
			return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.checkers = append(a.checkers, pgStorage.NewHealthCheck(pool))
		return &repositories{
			events:     pgStorage.NewAuditEventRepo(pool),
			creds:      pgStorage.NewCredentialRepo(pool),
			history:    pgStorage.NewCredentialHistoryRepo(pool),
			transactor: pgStorage.NewTransactor(pool),
		}, nil
	}
	return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
