package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/billing"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/repository"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/memory"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/postgres"
	"github.com/Cristhianmcc/marketPOS-sub004/pkg/config"
)

// backend repositorios del pipeline sobre PostgreSQL o en memoria (DB_DRIVER).
type backend struct {
	docs   repository.DocumentRepository
	jobs   repository.JobRepository
	stores repository.StoreRepository
	audit  repository.AuditRepository
	tx     billing.SubmissionTxRunner
	ping   func(ctx context.Context) error

	mem   *memory.DB
	pool  *pgxpool.Pool
	close func()
}

func openBackend(ctx context.Context, cfg config.DBConfig) (*backend, error) {
	if cfg.Driver == "memory" {
		db := memory.NewDB()
		return &backend{
			docs: db.Documents(), jobs: db.Jobs(), stores: db.Stores(), audit: db.Audit(),
			tx: db, ping: db.Ping, mem: db, close: func() {},
		}, nil
	}
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
	}
	tx := postgres.NewTxRunner(pool)
	return &backend{
		docs:   postgres.NewDocumentRepository(pool),
		jobs:   postgres.NewJobRepository(pool),
		stores: postgres.NewStoreRepository(pool),
		audit:  postgres.NewAuditRepository(pool),
		tx:     tx,
		ping:   tx.Ping,
		pool:   pool,
		close:  pool.Close,
	}, nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
