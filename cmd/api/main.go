package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Cristhianmcc/marketPOS-sub004/internal/application/billing"
	infraaudit "github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/audit"
	"github.com/Cristhianmcc/marketPOS-sub004/internal/infrastructure/postgres"
	httpRouter "github.com/Cristhianmcc/marketPOS-sub004/internal/interfaces/http"
	"github.com/Cristhianmcc/marketPOS-sub004/pkg/clock"
	"github.com/Cristhianmcc/marketPOS-sub004/pkg/config"
	"github.com/Cristhianmcc/marketPOS-sub004/pkg/logger"
	pkgsunat "github.com/Cristhianmcc/marketPOS-sub004/pkg/sunat"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name + "-api",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	if cfg.DB.Driver != "postgres" {
		// La API y el worker son procesos distintos: solo comparten estado vía PostgreSQL.
		log.Fatal().Str("driver", cfg.DB.Driver).Msg("la API requiere DB_DRIVER=postgres")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	codes := pkgsunat.DefaultCodeTable()
	if cfg.SUNAT.CodesPath != "" {
		if codes, err = pkgsunat.LoadCodeTable(cfg.SUNAT.CodesPath); err != nil {
			log.Fatal().Err(err).Msg("tabla de códigos SUNAT")
		}
	}

	docRepo := postgres.NewDocumentRepository(pool)
	jobRepo := postgres.NewJobRepository(pool)
	storeRepo := postgres.NewStoreRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	recorder := infraaudit.Multi{
		infraaudit.NewLogRecorder(log.Component("audit")),
		infraaudit.NewRepositoryRecorder(auditRepo),
	}
	submissionUC := billing.NewSubmissionUseCase(
		docRepo, jobRepo, txRunner, recorder, codes, clock.Real{}, log.Zerolog(),
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "MarketPOS SUNAT API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := txRunner.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "service": cfg.App.Name})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		SubmissionUC: submissionUC,
		Stores:       storeRepo,
		JWTSecret:    cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
