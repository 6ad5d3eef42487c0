package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"agenda/internal/api"
	"agenda/internal/booking"
	"agenda/internal/cache"
	"agenda/internal/config"
	"agenda/internal/db"
	"agenda/internal/events"
	"agenda/internal/metrics"
	"agenda/internal/notify"
	"agenda/internal/service"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("AGENDA_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	database, err := db.New(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	var rdb *redis.Client
	var slotCache *cache.Cache
	if cfg.Redis.Address != "" && cfg.Redis.CacheTTLSeconds > 0 {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB,
		})
		slotCache = cache.New(rdb, time.Duration(cfg.Redis.CacheTTLSeconds)*time.Second, &logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus()
	availability := service.NewAvailability(database, slotCache, &logger)
	availability.SubscribeInvalidation(bus)

	// Initial load + hot reload of the studios configuration.
	if err := config.WatchStudios(ctx, cfg.StudiosConfigPath, 30*time.Second, func(updated *config.StudiosConfig) {
		if updated == nil {
			return
		}
		if err := database.SyncStudiosFromConfig(ctx, updated); err != nil {
			logger.Error().Err(err).Msg("failed to apply studios config")
			return
		}
		for _, studio := range updated.Studios {
			if err := database.EnsureWeekSchedule(ctx, studio.ID); err != nil {
				logger.Error().Err(err).Str("studio", studio.ID).Msg("failed to ensure schedule")
			}
			bus.Publish(events.Event{
				Type:     events.TypeSettingsUpdated,
				StudioID: studio.ID,
				Payload:  events.SettingsChange{StudioID: studio.ID},
			})
		}
		logger.Info().Time("reloaded_at", time.Now()).Msg("studios config applied")
	}); err != nil {
		logger.Error().Err(err).Msg("studios watch failed")
	}

	bookings := service.NewBookings(database, availability, bus, slotCache, service.Rules{
		MinAdvance: cfg.BookingMinAdvance(),
		MaxAdvance: cfg.BookingMaxAdvance(),
	}, &logger)
	flow := booking.NewFlow(availability, bookings, cfg.SessionTimeout())
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := flow.Sessions().Cleanup(); n > 0 {
					logger.Debug().Int("removed", n).Msg("expired booking sessions cleaned")
				}
			}
		}
	}()

	if cfg.Notifications.Enabled {
		dispatcher := notify.NewDispatcher(database, notify.Config{
			RatePerSecond: cfg.Notifications.RatePerSecond,
			Burst:         cfg.Notifications.Burst,
			MaxRetries:    cfg.Notifications.MaxRetries,
			RetryDelays:   cfg.RetryDelays(),
		}, &logger,
			notify.NewLogNotifier(notify.ChannelEmail, &logger),
			notify.NewLogNotifier(notify.ChannelWhatsApp, &logger),
		)
		dispatcher.Subscribe(bus)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Backup.Enabled {
		go startBackupLoop(ctx, database, cfg, &logger)
	}

	server := api.NewHTTPServer(database, availability, bookings, flow, bus, cfg.Server.APIKey, &logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Int("port", cfg.Server.Port).Msg("agenda API started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("api server error")
	}
}

func startBackupLoop(ctx context.Context, database *db.DB, cfg *config.Config, logger *zerolog.Logger) {
	if cfg.Backup.Path == "" {
		cfg.Backup.Path = "backups"
	}
	if cfg.Backup.IntervalHours <= 0 {
		cfg.Backup.IntervalHours = 24
	}
	if cfg.Backup.RetentionDays <= 0 {
		cfg.Backup.RetentionDays = 14
	}

	if err := os.MkdirAll(cfg.Backup.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("failed to create backup directory")
		return
	}

	interval := time.Duration(cfg.Backup.IntervalHours) * time.Hour
	retention := time.Duration(cfg.Backup.RetentionDays) * 24 * time.Hour

	// Run first backup after a short delay
	select {
	case <-time.After(1 * time.Minute):
		runBackupTask(database, cfg, retention, logger)
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runBackupTask(database, cfg, retention, logger)
		case <-ctx.Done():
			return
		}
	}
}

func runBackupTask(database *db.DB, cfg *config.Config, retention time.Duration, logger *zerolog.Logger) {
	timestamp := time.Now().Format("20060102_150405")
	dest := filepath.Join(cfg.Backup.Path, fmt.Sprintf("agenda_%s.db", timestamp))

	logger.Info().Str("path", dest).Msg("starting database backup")
	if err := database.Backup(dest); err != nil {
		logger.Error().Err(err).Msg("backup failed")
	} else {
		logger.Info().Msg("backup completed successfully")
	}

	database.CleanupOldBackups(cfg.Backup.Path, retention)
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
