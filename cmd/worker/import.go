package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/billing"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/dto"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/domain"
	infraaudit "github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/audit"
	"github.com/Cristhianmcc/marketPOS-sub004/pkg/clock"
)

func importCmd() *cobra.Command {
	var (
		storeID string
		enqueue bool
	)
	cmd := &cobra.Command{
		Use:   "import [xml...]",
		Short: "Registra comprobantes UBL ya firmados como SIGNED (y opcionalmente los encola)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			if cfg.DB.Driver == "memory" {
				return fmt.Errorf("import requiere DB_DRIVER=postgres; con memoria use run --demo-dir")
			}
			ctx := context.Background()
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
			rec := infraaudit.Multi{infraaudit.NewLogRecorder(zl), infraaudit.NewRepositoryRecorder(be.audit)}
			importer := billing.NewImportUseCase(be.docs, be.stores, clock.Real{}, zl)
			submissions := billing.NewSubmissionUseCase(be.docs, be.jobs, be.tx, rec, codes, clock.Real{}, zl)

			n, err := importFiles(ctx, importer, submissions, storeID, args, enqueue)
			log.Info().Int("importados", n).Int("archivos", len(args)).Msg("importación finalizada")
			return err
		},
	}
	cmd.Flags().StringVar(&storeID, "store-id", "", "tienda emisora (requerido)")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "encolar cada comprobante importado")
	_ = cmd.MarkFlagRequired("store-id")
	return cmd
}

// importFiles importa cada archivo; un duplicado no detiene el lote.
func importFiles(ctx context.Context, importer *billing.ImportUseCase, submissions *billing.SubmissionUseCase, storeID string, paths []string, enqueue bool) (int, error) {
	var errs []error
	imported := 0
	for _, path := range paths {
		body, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(path), err))
			continue
		}
		doc, err := importer.Import(ctx, storeID, body)
		if err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				continue
			}
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(path), err))
			continue
		}
		imported++
		if enqueue {
			if _, err := submissions.Enqueue(ctx, storeID, doc.ID, "cli-import", dto.EnqueueSubmissionRequest{}); err != nil {
				errs = append(errs, fmt.Errorf("%s: encolar: %w", filepath.Base(path), err))
			}
		}
	}
	return imported, errors.Join(errs...)
}
