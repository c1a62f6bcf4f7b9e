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
	"github.com/tu-usuario/mef-invoices/internal/application/invoices"
	"github.com/tu-usuario/mef-invoices/internal/infrastructure/postgres"
	"github.com/tu-usuario/mef-invoices/internal/infrastructure/whatsapp"
	httpRouter "github.com/tu-usuario/mef-invoices/internal/interfaces/http"
	"github.com/tu-usuario/mef-invoices/internal/scraping"
	"github.com/tu-usuario/mef-invoices/pkg/config"
	"github.com/tu-usuario/mef-invoices/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	invoiceRepo := postgres.NewInvoiceRepository(pool)
	pendingRepo := postgres.NewMefPendingRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Pipeline: fetch al portal MEF → extracción → normalización
	fetcher := scraping.NewFetcher(
		time.Duration(cfg.Scraping.TimeoutSeconds)*time.Second,
		cfg.Scraping.UserAgent,
		log,
	)
	scraper := scraping.NewService(fetcher, log)

	processInvoiceUC := invoices.NewProcessInvoiceUseCase(
		scraper, invoiceRepo, pendingRepo, txRunner,
		time.Duration(cfg.Scraping.TxTimeoutSeconds)*time.Second,
		log,
	)
	getInvoiceUC := invoices.NewGetInvoiceUseCase(invoiceRepo)

	waClient := whatsapp.NewClient(cfg.WhatsApp, log)

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
		Title:    "MEF Invoices API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		ProcessInvoice: processInvoiceUC,
		GetInvoice:     getInvoiceUC,
		Messenger:      waClient,
		JWTSecret:      cfg.JWT.Secret,
		Log:            log,
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
