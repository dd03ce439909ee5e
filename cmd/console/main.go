package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-kasir/internal/catalog"
	"github.com/noah-isme/toko-kasir/internal/config"
	"github.com/noah-isme/toko-kasir/internal/console"
	"github.com/noah-isme/toko-kasir/internal/events"
	"github.com/noah-isme/toko-kasir/internal/obs"
	"github.com/noah-isme/toko-kasir/internal/pricing"
	"github.com/noah-isme/toko-kasir/internal/settlement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLoggerTo(os.Stderr, "console").Level(levelOrWarn(cfg.LogLevel)).With().Str("env", cfg.AppEnv).Logger()

	store, err := catalog.LoadFiles(cfg.ProductsFile, cfg.PromotionsFile, cfg.Clock())
	if err != nil {
		logger.Fatal().Err(err).Msg("load catalog")
	}
	if err := store.Verify(); err != nil {
		logger.Warn().Err(err).Msg("catalog references unknown promotions")
	}

	engine, err := settlement.NewEngine(settlement.Config{
		Catalog: store,
		Pricing: &pricing.Calculator{MembershipRate: cfg.MembershipRate, MembershipCap: cfg.MembershipMaxAmount},
		Events:  &events.Bus{Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}}},
		Logger:  logger,
		Now:     cfg.Clock(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise settlement engine")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := console.New(engine, os.Stdin, os.Stdout, logger).Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("console stopped")
		os.Exit(1)
	}
}

// levelOrWarn keeps the interactive terminal quiet unless a level is set explicitly.
func levelOrWarn(level string) zerolog.Level {
	if _, set := os.LookupEnv("OBS_LOG_LEVEL"); !set {
		return zerolog.WarnLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.WarnLevel
	}
	return lvl
}
