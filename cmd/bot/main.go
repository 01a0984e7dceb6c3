package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"spawn_warning_bot/internal/app"
	"spawn_warning_bot/internal/domain/notification"
	"spawn_warning_bot/internal/domain/spawn"
	"spawn_warning_bot/internal/infra/cache"
	"spawn_warning_bot/internal/infra/config"
	idb "spawn_warning_bot/internal/infra/database"
	"spawn_warning_bot/internal/infra/logger"
	"spawn_warning_bot/internal/infra/memstore"
	"spawn_warning_bot/internal/infra/scheduler"
	"spawn_warning_bot/internal/infra/telegram"
	"spawn_warning_bot/internal/infra/webhook"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.WithInstance(cfg.InstanceID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := spawn.NewZoneClock(cfg.Location)

	schedule, err := config.LoadSchedule(cfg.ScheduleFile, cfg.Location)
	if schedule == nil {
		mainLogger.WithError(err).Fatal("Could not load schedule file")
	}
	if err != nil {
		// malformed records are rejected; the valid ones still load
		mainLogger.WithError(err).Error("Schedule file contains rejected records")
	}
	mainLogger.WithFields(logrus.Fields{
		"timers": len(schedule.Timers),
		"weekly": len(schedule.Weekly),
	}).Info("Schedule loaded")

	// Initialize Repositories
	var (
		timerRepo  spawn.TimerRepository
		ledgerRepo notification.LedgerRepository
		leaseRepo  notification.LeaseRepository
	)
	if cfg.DatabaseURL != "" {
		db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to database")
		}
		defer db.Close()
		if err := idb.EnsureSchema(ctx, db); err != nil {
			mainLogger.WithError(err).Fatal("Could not prepare database schema")
		}
		timerRepo = idb.NewPostgresTimerRepository(db)
		ledgerRepo = idb.NewPostgresLedgerRepository(db)
		leaseRepo = idb.NewPostgresLeaseRepository(db)
		mainLogger.Info("PostgreSQL repositories initialized")
	} else {
		timerRepo = memstore.NewTimerRepository()
		ledgerRepo = memstore.NewLedgerRepository()
		leaseRepo = memstore.NewLeaseRepository()
		mainLogger.Warn("DATABASE_URL is not set, using in-memory store: state is lost on restart and not shared between instances")
	}
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to Redis")
		}
		defer client.Close()
		leaseRepo = cache.NewRedisLeaseRepository(client)
		mainLogger.Info("Sender lease stored in Redis")
	}

	// Telegram bot is optional unless it is the warning transport
	var bot *telebot.Bot
	if cfg.TelegramToken != "" {
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			Client: &http.Client{Timeout: cfg.DispatchTimeout + 15*time.Second},
			OnError: func(err error, c telebot.Context) {
				entry := mainLogger.WithError(err)
				if c != nil && c.Sender() != nil {
					entry = entry.WithField("sender_id", c.Sender().ID)
				}
				entry.Error("Telegram handler error")
			},
		})
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
	}

	var transport notification.Transport
	switch cfg.NotifyTransport {
	case config.TransportTelegram:
		transport = telegram.NewTransport(telegram.NewTelebotAdapter(bot), cfg.WarningChatID)
	default:
		transport = webhook.New(cfg.WebhookURL, cfg.WebhookRatePerSec, cfg.DispatchTimeout, mainLogger)
	}
	mainLogger.WithField("transport", cfg.NotifyTransport).Info("Warning transport initialized")

	// Initialize services
	ledgerService := app.NewLedgerService(ledgerRepo, mainLogger)
	timerService := app.NewTimerService(timerRepo, ledgerService, schedule.Weekly, cfg.Location, mainLogger)
	leaseService := app.NewSenderLease(leaseRepo, mainLogger)
	warningService := app.NewWarningService(timerService, ledgerService, transport, app.WarningConfig{
		Window:          cfg.WarningWindow,
		DispatchTimeout: cfg.DispatchTimeout,
		MaxRetryWait:    cfg.RateLimitMaxWait,
	}, mainLogger)
	adminService := app.NewAdminService(timerService, clock, cfg.AdminTelegramID)

	seeded, err := timerService.Seed(ctx, schedule.Timers)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not seed timers")
	}
	mainLogger.WithField("seeded", seeded).Info("Timers seeded")

	poller := app.NewPoller(clock, timerService, leaseService, warningService, ledgerService, app.PollConfig{
		InstanceID:    cfg.InstanceID,
		LeaseTTL:      cfg.LeaseTTL,
		LedgerMaxSize: cfg.LedgerMaxSize,
	}, mainLogger)

	pollScheduler := scheduler.NewPollScheduler(poller, mainLogger, cfg.PollInterval, cfg.Location)
	if err := pollScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start poll scheduler")
	}

	if bot != nil {
		handlerLogger := mainLogger.WithField("component", "telegram")
		telegram.RegisterBotCommands(ctx, bot, timerService, adminService, handlerLogger)
		telegram.RegisterAdminHandlers(ctx, bot, adminService, handlerLogger)
		telegram.RegisterKillButton(ctx, bot, adminService, handlerLogger)
		go bot.Start()
		mainLogger.Info("Telegram bot started")
	}

	mainLogger.Info("Application setup complete")
	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	pollScheduler.Stop()
	if bot != nil {
		bot.Stop()
	}
	mainLogger.Info("Application shut down gracefully.")
}
