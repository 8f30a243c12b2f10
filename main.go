package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/visual-measurement/config"
	"github.com/raine/visual-measurement/internal/bot"
	"github.com/raine/visual-measurement/internal/pipeline"
	"github.com/raine/visual-measurement/internal/server"
	"github.com/raine/visual-measurement/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const logFileName = "visual-measurement.log"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	config.LoadEnvFile()

	if missing := checkRequiredConfig(); len(missing) > 0 {
		if isInteractiveTerminal() {
			if !runSetupWizard() {
				waitOnWindows()
				os.Exit(1)
			}
		} else {
			fatalWithWait("missing required config: %s", strings.Join(missing, ", "))
		}
	}

	// JOURNAL_STREAM is set by systemd. journald keeps the logs there and the
	// working directory may be read-only.
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			fatalWithWait("failed to open log file: %v", err)
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))

		log.Info().Str("logFile", logFileName).Msg("logging to file")
	}

	cfg, err := config.Load()
	if err != nil {
		fatalWithWait("invalid config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fatalWithWait("invalid config: %v", err)
	}

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orchestrator, err := pipeline.NewFromConfig(ctx, cfg)
	if err != nil {
		fatalWithWait("failed to initialize pipeline: %v", err)
	}
	log.Info().
		Strs("models", cfg.Models).
		Int("maxImages", cfg.MaxImages).
		Dur("imageDelay", cfg.ImageDelay).
		Dur("productDelay", cfg.ProductDelay).
		Msg("pipeline initialized")

	g, ctx := errgroup.WithContext(ctx)

	srv := server.New(orchestrator, server.Options{
		MaxImages:        cfg.MaxImages,
		VisionConfigured: cfg.GeminiAPIKey != "",
	})
	g.Go(func() error {
		return srv.Run(ctx, cfg.HTTPAddr)
	})

	if cfg.BotToken != "" {
		tg, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			fatalWithWait("failed to initialize telegram bot: %v", err)
		}
		tg.Debug = false
		log.Info().Str("username", tg.Self.UserName).Msg("authorized on account")

		bot.RegisterCommands(tg)

		store, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			fatalWithWait("failed to initialize whitelist store: %v", err)
		}
		defer store.Close()
		log.Info().Str("dbPath", cfg.DBPath).Msg("whitelist store initialized")

		b := bot.NewBot(tg, store, orchestrator, cfg.AdminTelegramID)
		g.Go(func() error {
			return runBot(ctx, tg, b)
		})
	} else {
		log.Info().Msg("BOT_TOKEN not set, telegram bot disabled")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

func runBot(ctx context.Context, tg *tgbotapi.BotAPI, b *bot.Bot) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := tg.GetUpdatesChan(updateConfig)

	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping bot update loop")
			tg.StopReceivingUpdates()
			log.Info().Msg("waiting for active handlers to finish")
			wg.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				log.Warn().Msg("updates channel closed")
				wg.Wait()
				return nil
			}
			wg.Add(1)
			go func(u tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}
