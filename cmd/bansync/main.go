package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"bansync/internal/bot"
	"bansync/internal/config"
	"bansync/internal/crash"
	"bansync/internal/handler"
	"bansync/internal/logger"
	"bansync/internal/models"
	"bansync/internal/publisher"
	"bansync/internal/server"
	"bansync/internal/service"
	"bansync/internal/storage"
	"bansync/internal/synchronizer"
)

func main() {
	defer crash.RecoverWithStackAndExit("main")

	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging first
	if err := logger.Setup(cfg, "bansync"); err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	db, err := storage.Initialize(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer storage.Close(db)

	repo := storage.NewBanRepository(db)
	bans := service.NewBanService(repo)
	if err := bans.Bootstrap(); err != nil {
		log.Fatalf("Failed to bootstrap schema: %v", err)
	}

	strategy, err := synchronizer.ParseStrategy(cfg.Sync.Strategy)
	if err != nil {
		log.Fatalf("Invalid sync configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publishers := map[models.Platform]handler.Publisher{}
	rates := map[models.Platform]float64{}

	if cfg.Platforms.VK.Enabled {
		vk := cfg.Platforms.VK
		publishers[models.PlatformVK] = publisher.NewVK(nil, vk.APIURL, vk.Token, vk.APIVersion, vk.OwnerID)
		rates[models.PlatformVK] = vk.Rate
	}

	var botService *bot.BotService
	if cfg.Platforms.Telegram.Enabled {
		tg := cfg.Platforms.Telegram
		botService, err = bot.Initialize(ctx, tg)
		if err != nil {
			log.Fatalf("Failed to initialize bot: %v", err)
		}
		publishers[models.PlatformTelegram] = publisher.NewTelegram(botService.Bot, tg.ChannelID, tg.Moderation)
		rates[models.PlatformTelegram] = tg.Rate

		if botService.Handler != nil {
			if len(tg.Moderators) == 0 {
				logger.Warningf("Telegram moderation is enabled but no moderators are configured")
			}
			handler.NewModerationCallbacks(bans, tg.ChannelID, tg.Moderators).Register(botService.Handler)
			crash.SafeGoroutine("telegram-updates", botService.Start)
			defer botService.Stop()
		}
	}

	if len(publishers) == 0 {
		logger.Warningf("No platform is enabled, nothing to synchronize")
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, p := range models.Platforms {
		pub, ok := publishers[p]
		if !ok {
			continue
		}
		sync := synchronizer.New(repo, p, nil, synchronizer.Options{
			Strategy:     strategy,
			Interval:     cfg.Sync.Interval,
			QueryTimeout: cfg.Sync.QueryTimeout,
			Buffer:       cfg.Sync.Buffer,
		})
		consumer := handler.NewEventHandler(pub, bans, rates[p])
		events := sync.Events(gctx)
		g.Go(func() error {
			return consumer.Consume(gctx, events)
		})
	}

	var httpServer *server.Server
	if cfg.Metrics.Enabled {
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("Failed to get SQL DB: %v", err)
		}
		httpServer = server.New(cfg.Metrics.Listen, sqlDB)
		g.Go(httpServer.Start)
	}

	logger.Infof("bansync started with %d platform(s)", len(publishers))

	<-gctx.Done()
	logger.Infof("Shutting down...")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warningf("HTTP server shutdown error: %v", err)
		}
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("Stopped with error: %v", err)
		os.Exit(1)
	}
	logger.Infof("bansync gracefully stopped")
}
