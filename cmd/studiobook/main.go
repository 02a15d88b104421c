package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"studiobook/internal/api"
	"studiobook/internal/booking"
	"studiobook/internal/config"
	"studiobook/internal/database"
	"studiobook/internal/events"
	"studiobook/internal/manager"
	"studiobook/internal/metrics"
	"studiobook/internal/notify"
	"studiobook/internal/reminders"
	"studiobook/internal/repository"
	"studiobook/internal/settings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load(os.Getenv("STUDIO_CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	backup := database.NewBackupService(db, database.BackupConfig{
		Enabled:       cfg.Backup.Enabled,
		Interval:      cfg.BackupInterval(),
		StoragePath:   cfg.Backup.Path,
		RetentionDays: cfg.Backup.RetentionDays,
	}, &logger)
	go backup.Start(ctx)

	var (
		store repository.Store = repository.NewSQLiteStore(db)
		rdb   *redis.Client
	)
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		failover := repository.NewFailoverStore(repository.NewRedisStore(rdb, "studiobook:"), store, &logger)
		go watchDegraded(ctx, failover)
		store = failover
	}
	if p, ok := store.(repository.Purger); ok {
		go repository.RunPurger(ctx, p, 10*time.Minute, &logger)
	}

	studio := settings.NewService(store, nil, logger)
	if err := config.WatchStudio(ctx, cfg.Studio.Path, cfg.StudioWatchInterval(), &logger, studio.SetSeed); err != nil {
		logger.Warn().Err(err).Str("path", cfg.Studio.Path).Msg("Studio config unavailable, using built-in defaults")
	}

	bus := events.NewEventBus(&logger)
	dispatcher := newDispatcher(cfg, logger)
	dispatcher.Subscribe(bus)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	bookings := booking.NewService(store, studio, db, bus, booking.Options{
		DraftTTL:       cfg.DraftTTL(),
		MaxAdvanceDays: cfg.BookingMaxAdvanceDays(),
	}, logger)
	admin := manager.NewService(db, bus, logger)

	if cfg.Reminders.Enabled {
		rem := reminders.NewService(reminders.Config{
			CheckInterval: cfg.ReminderInterval(),
			HoursBefore:   cfg.Reminders.HoursBefore,
		}, db, store, dispatcher, logger)
		rem.Start(ctx)
		defer rem.Stop()
	}

	checks := map[string]api.Check{
		"db": func(ctx context.Context) error { return db.PingContext(ctx) },
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if cfg.Server.AdminKey == "" {
		logger.Warn().Msg("server.admin_key is empty, admin endpoints will reject every request")
	}
	perSecond, burst := cfg.RateLimit()
	apiServer := api.NewServer(api.Deps{
		Bookings: bookings,
		Manager:  admin,
		Settings: studio,
		Checks:   checks,
	}, api.Options{
		AdminKey:      cfg.Server.AdminKey,
		RatePerSecond: perSecond,
		RateBurst:     burst,
	}, logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Str("address", cfg.Server.Address).Msg("Studio booking API started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("api server error")
	}
	logger.Info().Msg("Studio booking API stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.Logging.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func newDispatcher(cfg *config.Config, logger zerolog.Logger) *notify.Dispatcher {
	perSecond, burst := cfg.NotifyRate()
	d := notify.NewDispatcher(notify.Config{
		RatePerSecond: perSecond,
		Burst:         burst,
		QueueSize:     cfg.NotifyQueueSize(),
		Retry:         notify.DefaultRetryConfig(),
		AdminChatID:   cfg.Telegram.AdminChatID,
	}, logger)

	logSender := notify.NewLogSender(logger)
	d.Register(notify.ChannelEmail, logSender)
	d.Register(notify.ChannelSMS, logSender)
	d.Register(notify.ChannelTelegram, logSender)

	if cfg.Email.Enabled {
		email, err := notify.NewEmailSender(notify.EmailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			SSL:      cfg.Email.SSL,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Email sender disabled")
		} else {
			d.Register(notify.ChannelEmail, email)
		}
	}

	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegramSender(cfg.Telegram.BotToken)
		if err != nil {
			logger.Error().Err(err).Msg("Telegram sender disabled")
		} else {
			d.Register(notify.ChannelTelegram, tg)
			logger.Info().Str("admin_chat", strconv.FormatInt(cfg.Telegram.AdminChatID, 10)).Msg("Telegram admin alerts enabled")
		}
	}
	return d
}

func watchDegraded(ctx context.Context, store *repository.FailoverStore) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetStoreDegraded(store.Degraded())
		}
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
