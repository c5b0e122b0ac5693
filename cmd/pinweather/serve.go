package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/pinweather/internal/api/http"
	"github.com/i474232898/pinweather/internal/explorer"
	"github.com/i474232898/pinweather/internal/scheduler"
	"github.com/i474232898/pinweather/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the periodic weather refresh",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(commandContext(cmd))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(parent context.Context) error {
	c, err := build(cfg)
	if err != nil {
		return err
	}

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ex := explorer.New(explorer.Config{
		RadiusMiles:     cfg.ProximityRadiusMiles,
		RefreshInterval: cfg.RefreshInterval,
		SearchDebounce:  cfg.SearchDebounce,
	}, store.NewMarkerStore(), c.fetcher, c.places)

	ex.Subscribe(func(ev explorer.Event) {
		switch ev.Kind {
		case explorer.EventNotice:
			log.Info().Str("location_id", string(ev.LocationID)).Msg(ev.Message)
		case explorer.EventRefreshed:
			log.Debug().Interface("report", ev.Report).Msg("refresh report")
		}
	})

	explorerDone := make(chan struct{})
	go func() {
		defer close(explorerDone)
		if err := ex.Run(ctx); err != nil {
			log.Error().Err(err).Msg("explorer stopped")
		}
	}()

	// Job that periodically asks for a refresh; the explorer decides whether one is due.
	job := scheduler.NewJob(ex, cfg.RefreshCheckInterval)
	if err := job.Start(); err != nil {
		return err
	}
	defer job.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "pinweather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "pinweather",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, ex)

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("http server listening")
		if err := app.Listen(cfg.Addr()); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	<-explorerDone
	return nil
}
