package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach_backend/internal/auth"
	apphttp "outreach_backend/internal/http"
	"outreach_backend/internal/http/router"
	"outreach_backend/internal/leads"
	"outreach_backend/internal/leadsource"
	"outreach_backend/internal/mail"
	"outreach_backend/internal/notify"
	"outreach_backend/internal/outreach"
	"outreach_backend/internal/outreach/quota"
	"outreach_backend/platform/config"
	"outreach_backend/platform/db"
	"outreach_backend/platform/events"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	var sourceClient *leadsource.Client
	if cfg.IsLeadSourceEnabled() {
		sourceClient = leadsource.New(cfg.GetLeadSourceURL(), cfg.GetLeadSourceAPIKey())
	} else {
		log.Warn("lead source not configured; imports disabled")
	}

	// Webhook notifier subscribes to lifecycle events (not HTTP-facing)
	notifier := notify.NewWebhookNotifier(cfg.GetWebhookURL(), cfg.GetWebhookSecret(), log)
	notifier.Register(eventBus)

	authModule := auth.NewModule(cfg, val, log)
	leadsModule := leads.NewModule(pool, sourceClient, eventBus, val, log)

	// Manual reply check needs the mailbox; without IMAP the route reports
	// unavailable and reply detection is the scheduler's concern alone.
	var replyCheck *outreach.ReplyCheck
	if cfg.IsIMAPEnabled() {
		poller := mail.NewIMAPPoller(
			cfg.GetIMAPHost(), cfg.GetIMAPPort(),
			cfg.GetIMAPUsername(), cfg.GetIMAPPassword(),
			cfg.GetIMAPMailbox(),
		)
		registrar := outreach.NewRegistrar(leadsModule.Repository(), eventBus, log)
		replyCheck = outreach.NewReplyCheck(leadsModule.Repository(), poller, registrar, log)
	}

	ledger := quota.NewPostgresLedger(pool, cfg.GetQuotaCeiling())
	outreachModule := outreach.NewModule(ledger, cfg.GetQuotaCeiling(), replyCheck)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			authModule,
			leadsModule,
			outreachModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
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
