// worker procesa la cola de envíos de comprobantes a SUNAT.
//
// Uso:
//
//	worker run                      loop de envíos (SIGINT/SIGTERM apagan con período de gracia)
//	worker migrate                  crea tablas e índices en PostgreSQL
//	worker import --store-id S a.xml b.xml [--enqueue]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Cristhianmcc/marketPOS-sub004/pkg/config"
	"github.com/Cristhianmcc/marketPOS-sub004/pkg/logger"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "worker",
		Short:         "Worker de envío de comprobantes electrónicos a SUNAT",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap carga configuración y logger comunes a todos los subcomandos.
func bootstrap() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("cargar configuración: %w", err)
	}
	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name + "-worker",
	})
	return cfg, log, nil
}
