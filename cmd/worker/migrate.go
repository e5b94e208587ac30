package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/postgres"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Crea las tablas e índices del pipeline de envío en PostgreSQL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			if cfg.DB.Driver != "postgres" {
				return fmt.Errorf("migrate requiere DB_DRIVER=postgres (actual %q)", cfg.DB.Driver)
			}
			ctx := context.Background()
			pool, err := postgres.NewPool(ctx, cfg.DB)
			if err != nil {
				return fmt.Errorf("conexión a PostgreSQL: %w", err)
			}
			defer pool.Close()

			if err := postgres.EnsureSchema(ctx, pool); err != nil {
				return err
			}
			log.Info().Msg("esquema del pipeline de envío actualizado")
			return nil
		},
	}
}
