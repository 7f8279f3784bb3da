package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sjsage522/pricetracker/config"
	"sjsage522/pricetracker/internal/extractor"
	"sjsage522/pricetracker/logger"
	"sjsage522/pricetracker/services/cache"
	"sjsage522/pricetracker/services/notifier"
	"sjsage522/pricetracker/services/publisher"
	"sjsage522/pricetracker/services/tracker"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before reading the environment")
	saveConfig := flag.String("save-config", "", "write the effective configuration to this dotenv file and exit")
	statusEvery := flag.Duration("status-every", 30*time.Second, "how often to print the status line, 0 disables")
	flag.Parse()

	// Load environment variables before the logger reads LOG_LEVEL
	envErr := godotenv.Load(*envFile)

	// Initialize logger first
	logger.Init()
	log := logger.Default

	if envErr != nil && !os.IsNotExist(envErr) {
		log.Warn().Err(envErr).Str("path", *envFile).Msg("Failed to load env file")
	}

	// Load and validate configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if *saveConfig != "" {
		if err := config.Save(cfg, *saveConfig); err != nil {
			log.Fatal().Err(err).Msg("Failed to save configuration")
		}
		log.Info().Str("path", *saveConfig).Msg("Configuration saved")
		return
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("url", cfg.ProductURL).
		Str("target", cfg.TargetPrice.String()).
		Dur("check_interval", cfg.CheckInterval).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	services := initializeServices(ctx, cfg)
	defer services.Cleanup()

	open := func(ctx context.Context) (extractor.Extractor, error) {
		return extractor.Open(ctx, cfg.ExtractorOptions(), services.Cache, logger.ForExtractor())
	}
	trackerLog := logger.ForTracker().WithFields(logger.Fields{"url": cfg.ProductURL})
	tr := tracker.New(open, services.Notifier, services.Publisher, trackerLog)
	if err := tr.Start(ctx, cfg.Settings()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start tracker")
	}

	// Set up signal handling: the first signal stops the run, the second
	// abandons it
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var status <-chan time.Time
	if *statusEvery > 0 {
		ticker := time.NewTicker(*statusEvery)
		defer ticker.Stop()
		status = ticker.C
	}

	signals := 0
wait:
	for {
		select {
		case sig := <-sigChan:
			signals++
			log.Info().
				Str("signal", sig.String()).
				Msg("Received shutdown signal")
			if signals == 1 {
				tr.Stop()
			} else {
				cancel()
			}
		case <-status:
			log.Info().Msg(tr.Snapshot().StatusLine)
		case <-tr.Done():
			break wait
		}
	}

	final := tr.Snapshot()
	log.Info().
		Str("status", final.Status.String()).
		Str("reason", final.Reason).
		Msg(final.StatusLine)

	if final.Status == tracker.FailedStopped {
		services.Cleanup()
		os.Exit(1)
	}
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	memcache  *cache.MemcacheService
	Notifier  notifier.Notifier
	closed    bool
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.closed {
		return
	}
	s.closed = true
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			logger.LogError("publisher", err, "Failed to close publisher")
		}
	}
	if s.memcache != nil {
		if err := s.memcache.Close(); err != nil {
			logger.LogError("cache", err, "Failed to close memcache client")
		}
	}
}

// initializeServices initializes the optional services. A backend that is
// configured but unreachable is logged and skipped; the tracker runs without
// it.
func initializeServices(ctx context.Context, cfg *config.Config) *Services {
	services := &Services{Publisher: publisher.NoopPublisher{}}

	// Initialize cache service
	if cfg.MemcacheAddr != "" {
		cacheService := cache.NewMemcacheService(cfg.MemcacheAddr, 500*time.Millisecond)
		services.memcache = cacheService
		if err := cacheService.Ping(); err != nil {
			logger.LogError("cache", err, "Memcache at %s unavailable, rate limit blocking disabled", cfg.MemcacheAddr)
		} else {
			services.Cache = cacheService
			logger.ForCache().Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")
		}
	}

	// Initialize publisher
	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamMaxLength,
		)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := redisPublisher.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.LogError("publisher", err, "Redis at %s unavailable, events disabled", cfg.RedisAddr)
			if closeErr := redisPublisher.Close(); closeErr != nil {
				logger.ForPublisher().WithError(closeErr).Debug().Msg("Failed to close Redis client")
			}
		} else {
			services.Publisher = redisPublisher
			logger.ForPublisher().Info().
				Str("addr", cfg.RedisAddr).
				Int("db", cfg.RedisDB).
				Str("stream", cfg.RedisStream).
				Msg("Connected to Redis")
		}
	}

	// Initialize notifier
	if cfg.TelegramToken != "" {
		telegram, err := notifier.NewTelegramNotifier(cfg.Telegram(), logger.ForNotifier())
		if err != nil {
			logger.Default.Fatal().Err(err).Msg("Invalid Telegram configuration")
		}
		services.Notifier = telegram
	} else {
		logger.Warn("TELEGRAM_TOKEN not set, alerts will only be logged")
		services.Notifier = notifier.NewLogNotifier(logger.ForNotifier())
	}

	return services
}
