package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/billing"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/worker"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain/entity"
	infraaudit "github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/audit"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/metrics"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/s3storage"
	infrasunat "github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/sunat"
	"github.com/Cristhianmcc/marketPOS-sub004/pkg/clock"
	pkgsunat "github.com/Cristhianmcc/marketPOS-sub004/pkg/sunat"
)

const demoStoreID = "demo-store"

func runCmd() *cobra.Command {
	var demoDir, demoRUC string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Inicia el loop de envíos",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			log.Info().
				Str("env", cfg.App.Env).
				Str("sunat_env", cfg.SUNAT.AppEnv).
				Str("db_driver", cfg.DB.Driver).
				Int("concurrency", cfg.Worker.Concurrency).
				Msg("iniciando worker de envíos SUNAT")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			be, err := openBackend(ctx, cfg.DB)
			if err != nil {
				return err
			}
			defer be.close()

			zl := log.Zerolog()
			codes, err := loadCodes(cfg.SUNAT.CodesPath)
			if err != nil {
				return err
			}

			submitter, err := infrasunat.NewSubmitter(cfg.SUNAT.AppEnv, cfg.SUNAT.Endpoint,
				infrasunat.WithTimeout(cfg.SUNAT.HTTPTimeout),
				infrasunat.WithLogger(log.Component("soap")),
			)
			if err != nil {
				return err
			}
			collector := metrics.NewCollector()
			submitter = collector.InstrumentSubmitter(submitter)

			rec := infraaudit.Multi{
				infraaudit.NewLogRecorder(log.Component("audit")),
				infraaudit.NewRepositoryRecorder(be.audit),
				collector,
			}

			var artifacts billing.ArtifactStore
			if cfg.S3.Enabled() {
				store, err := s3storage.New(cfg.S3)
				if err != nil {
					return err
				}
				if err := store.EnsureBucket(ctx); err != nil {
					return err
				}
				artifacts = store
				log.Info().Str("bucket", cfg.S3.Bucket).Msg("archivo de ZIP y CDR habilitado")
			}

			clk := clock.Real{}
			processor := billing.NewSubmissionProcessor(
				be.docs, be.stores, be.tx, submitter, rec, artifacts, codes, clk,
				billing.ProcessorConfig{
					HTTPTimeout:  cfg.SUNAT.HTTPTimeout,
					PollInterval: cfg.SUNAT.PollInterval,
					PollMaxWait:  cfg.SUNAT.PollMaxWait,
				},
				zl,
			)

			if be.mem != nil && demoDir != "" {
				if err := seedDemo(ctx, be, codes, rec, zl, demoDir, demoRUC); err != nil {
					return err
				}
			}

			w := worker.New(be.jobs, processor, pingFunc(be.ping), rec, clk, worker.Config{
				Concurrency:    cfg.Worker.Concurrency,
				PollInterval:   cfg.Worker.PollInterval,
				LeaseDuration:  cfg.Worker.LeaseDuration,
				GracePeriod:    cfg.Worker.GracePeriod,
				HealthInterval: cfg.Worker.HealthInterval,
				Retention:      cfg.Worker.Retention,
			}, zl, worker.WithHealthObserver(collector))

			if cfg.Worker.MetricsAddr != "" {
				srv, err := metrics.StartServer(cfg.Worker.MetricsAddr, collector, w.Healthy, log.Component("metrics"))
				if err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			if err := w.Run(ctx); err != nil {
				log.Error().Err(err).Msg("worker detenido con jobs en curso")
				return err
			}
			log.Info().Msg("worker detenido")
			return nil
		},
	}
	cmd.Flags().StringVar(&demoDir, "demo-dir", "", "con DB_DRIVER=memory: importa y encola los XML firmados del directorio")
	cmd.Flags().StringVar(&demoRUC, "demo-ruc", "20100066603", "RUC de la tienda de demostración")
	return cmd
}

// loadCodes tabla de códigos embebida o la del archivo indicado.
func loadCodes(path string) (*pkgsunat.CodeTable, error) {
	if path == "" {
		return pkgsunat.DefaultCodeTable(), nil
	}
	codes, err := pkgsunat.LoadCodeTable(path)
	if err != nil {
		return nil, fmt.Errorf("tabla de códigos SUNAT: %w", err)
	}
	return codes, nil
}

// seedDemo crea la tienda de demostración (usuario SOL de pruebas MODDATOS) e importa los
// XML firmados del directorio.
func seedDemo(ctx context.Context, be *backend, codes *pkgsunat.CodeTable, rec billing.AuditRecorder, zl zerolog.Logger, dir, ruc string) error {
	if err := pkgsunat.ValidateRUC(ruc); err != nil {
		return fmt.Errorf("demo-ruc: %w", err)
	}
	now := time.Now().UTC()
	be.mem.PutStore(&entity.Store{
		ID: demoStoreID, Name: "Tienda demo", RUC: ruc,
		SolUser: "MODDATOS", SolPassword: "moddatos", Status: "active",
		CreatedAt: now, UpdatedAt: now,
	})
	files, err := filepath.Glob(filepath.Join(dir, "*.xml"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("demo-dir %s no contiene archivos .xml", dir)
	}
	importer := billing.NewImportUseCase(be.docs, be.stores, clock.Real{}, zl)
	submissions := billing.NewSubmissionUseCase(be.docs, be.jobs, be.tx, rec, codes, clock.Real{}, zl)
	_, err = importFiles(ctx, importer, submissions, demoStoreID, files, true)
	return err
}
