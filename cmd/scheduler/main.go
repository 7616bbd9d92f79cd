package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach_backend/internal/enrichment"
	"outreach_backend/internal/generation"
	leadsrepo "outreach_backend/internal/leads/repository"
	"outreach_backend/internal/mail"
	"outreach_backend/internal/notify"
	"outreach_backend/internal/outreach"
	"outreach_backend/internal/outreach/quota"
	"outreach_backend/internal/outreach/window"
	"outreach_backend/internal/scheduler"
	"outreach_backend/platform/config"
	"outreach_backend/platform/db"
	"outreach_backend/platform/events"
	"outreach_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	notifier := notify.NewWebhookNotifier(cfg.GetWebhookURL(), cfg.GetWebhookSecret(), log)
	notifier.Register(eventBus)

	// ========================================================================
	// Send pipeline wiring
	// ========================================================================

	leadsRepo := leadsrepo.New(pool)
	ledger := quota.NewPostgresLedger(pool, cfg.GetQuotaCeiling())

	win, err := window.New(cfg.GetWindowDays(), cfg.GetWindowStartHour(), cfg.GetWindowEndHour())
	if err != nil {
		log.Error("failed to initialize send window", "error", err)
		panic("failed to initialize send window: " + err.Error())
	}

	enricher := enrichment.New(newRedisClient(cfg, log), cfg.GetEnrichmentCacheTTL(), log)

	if !cfg.IsGenerationEnabled() {
		log.Error("GEMINI_API_KEY not configured; scheduler cannot compose emails")
		panic("GEMINI_API_KEY is required for the scheduler")
	}
	composer, err := generation.NewComposer(ctx, generation.Config{
		APIKey:   cfg.GetGeminiAPIKey(),
		Model:    cfg.GetGeminiModel(),
		FromName: cfg.GetEmailFromName(),
	})
	if err != nil {
		log.Error("failed to initialize composer", "error", err)
		panic("failed to initialize composer: " + err.Error())
	}

	var sender outreach.MailSender
	if cfg.GetEmailEnabled() {
		sender = mail.NewSMTPSender(
			cfg.GetSMTPHost(), cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(), cfg.GetEmailFromName(),
		)
	} else {
		log.Warn("email delivery disabled; outbound messages will only be logged")
		sender = mail.NewLogSender(log)
	}

	svc := outreach.NewService(leadsRepo, ledger, win, enricher, composer, sender, eventBus, cfg, log)

	// ========================================================================
	// Queue, dispatch loops, worker
	// ========================================================================

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	dispatcher := scheduler.NewOutreachDispatcher(cfg, client, leadsRepo, ledger, win, log)
	go dispatcher.Run(ctx)

	retrySweep := scheduler.NewRetrySweep(cfg, cfg, client, leadsRepo, log)
	go retrySweep.Run(ctx)

	if cfg.IsIMAPEnabled() {
		poller := mail.NewIMAPPoller(
			cfg.GetIMAPHost(), cfg.GetIMAPPort(),
			cfg.GetIMAPUsername(), cfg.GetIMAPPassword(),
			cfg.GetIMAPMailbox(),
		)
		replyCheck := outreach.NewReplyCheck(leadsRepo, poller, svc.Registrar, log)
		replyPoller := scheduler.NewReplyPoller(cfg, replyCheck, log)
		go replyPoller.Run(ctx)
	} else {
		log.Warn("IMAP not configured; reply detection disabled")
	}

	quotaRetention := scheduler.NewQuotaRetention(ledger, log, cfg.GetQuotaRetention())
	go quotaRetention.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, svc, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func newRedisClient(cfg config.SchedulerConfig, log *logger.Logger) *redis.Client {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		log.Warn("REDIS_URL not configured; enrichment cache disabled")
		return nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn("invalid REDIS_URL; enrichment cache disabled", "error", err)
		return nil
	}
	return redis.NewClient(opt)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
