package apiapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/nikah/backend/internal/config"
	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
	amqpinfra "github.com/ivankudzin/nikah/backend/internal/infra/amqp"
	stripeinfra "github.com/ivankudzin/nikah/backend/internal/infra/stripe"
	"github.com/ivankudzin/nikah/backend/internal/infra/telegram"
	"github.com/ivankudzin/nikah/backend/internal/metrics"
	pgrepo "github.com/ivankudzin/nikah/backend/internal/repo/postgres"
	redrepo "github.com/ivankudzin/nikah/backend/internal/repo/redis"
	authsvc "github.com/ivankudzin/nikah/backend/internal/services/auth"
	entsvc "github.com/ivankudzin/nikah/backend/internal/services/entitlements"
	interestsvc "github.com/ivankudzin/nikah/backend/internal/services/interests"
	notifysvc "github.com/ivankudzin/nikah/backend/internal/services/notify"
	paymentsvc "github.com/ivankudzin/nikah/backend/internal/services/payments"
	ratesvc "github.com/ivankudzin/nikah/backend/internal/services/rate"
	"github.com/ivankudzin/nikah/backend/internal/transport/http/handlers"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	dispatcher *notifysvc.Dispatcher
	closers    []io.Closer
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, pgrepo.PoolConfig{
		DSN:               cfg.Postgres.DSN,
		MaxConns:          cfg.Postgres.MaxConns,
		HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
	}); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	profileRepo := pgrepo.NewProfileRepo(pool)
	identities := redrepo.NewIdentityCache(redisClient, profileRepo, cfg.Redis.IdentityTTL)
	interestRepo := pgrepo.NewInterestRepo(pool)
	quotaRepo := pgrepo.NewQuotaRepo(pool)
	entitlementRepo := pgrepo.NewEntitlementRepo(pool)
	transactor := pgrepo.NewTransactor(pool)

	notifier, closer, err := newNotifier(cfg.Notify, log)
	if err != nil {
		return nil, err
	}
	var closers []io.Closer
	if closer != nil {
		closers = append(closers, closer)
	}
	dispatcher := notifysvc.NewDispatcher(notifier, notifysvc.Config{
		Workers:     cfg.Notify.Workers,
		QueueSize:   cfg.Notify.QueueSize,
		SendTimeout: cfg.Notify.SendTimeout,
	}, log.Named("notify"))
	dispatcher.AttachRecorder(collector)
	dispatcher.Start(ctx)

	rateLimiter := ratesvc.NewLimiter(
		redrepo.NewRateRepo(redisClient),
		cfg.Limits.BurstPerMinute,
		cfg.Limits.BurstPer10Second,
	)
	interestService := interestsvc.NewService(interestsvc.Dependencies{
		Tx:            transactor,
		Edges:         interestRepo,
		Quotas:        quotaRepo,
		Identities:    identities,
		Entitlements:  entitlementRepo,
		Notifications: dispatcher,
		RateLimiter:   rateLimiter,
		Recorder:      collector,
		Logger:        log.Named("interests"),
	}, interestsvc.Config{
		DailyLimit: cfg.Limits.DailyInterests,
		Window:     cfg.Limits.QuotaWindow,
		ListLimit:  cfg.Limits.ListLimit,
	})

	entDeps := entsvc.Dependencies{
		Tx:            transactor,
		Store:         entitlementRepo,
		Identities:    identities,
		Notifications: dispatcher,
		Recorder:      collector,
		Logger:        log.Named("entitlements"),
	}
	paymentDeps := paymentsvc.Dependencies{Logger: log.Named("payments")}
	if stripeClient, err := stripeinfra.New(stripeinfra.Config{
		SecretKey:        cfg.Billing.StripeSecretKey,
		WebhookSecret:    cfg.Billing.WebhookSecret,
		Prices:           tierPrices(cfg.Billing.Prices, log),
		FailureThreshold: cfg.Billing.BreakerFailures,
		BreakerTimeout:   cfg.Billing.BreakerTimeout,
	}, collector, log.Named("stripe")); err != nil {
		log.Warn("stripe init failed, billing endpoints disabled", zap.Error(err))
	} else {
		entDeps.Provider = stripeClient
		paymentDeps.Parser = stripeClient
	}
	entitlementService := entsvc.NewService(entDeps, entsvc.Config{
		DefaultSuccessURL: cfg.Billing.SuccessURL,
		DefaultCancelURL:  cfg.Billing.CancelURL,
		CheckoutKeyBucket: cfg.Billing.CheckoutKeyBucket,
	})
	paymentDeps.Reconciler = entitlementService
	paymentService := paymentsvc.NewService(paymentDeps)

	RegisterRoutes(r, Dependencies{
		Interests:    interestService,
		Entitlements: entitlementService,
		Webhooks:     paymentService,
		Verifier:     authsvc.NewVerifier(cfg.Auth.JWTSecret, redrepo.NewSessionRepo(redisClient)),
		HealthChecks: map[string]handlers.Pinger{
			"postgres": postgresPinger(pool),
			"redis": func(ctx context.Context) error {
				return redrepo.Ping(ctx, redisClient)
			},
		},
		Metrics: metrics.Handler(registry),
		Logger:  log,
		Config:  cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		dispatcher: dispatcher,
		closers:    closers,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.dispatcher != nil {
		a.dispatcher.Stop()
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}

func newNotifier(cfg config.NotifyConfig, log *zap.Logger) (notifysvc.Notifier, io.Closer, error) {
	switch cfg.Driver {
	case config.NotifyDriverTelegram:
		n, err := telegram.NewNotifier(cfg.TelegramToken)
		if err != nil {
			return nil, nil, fmt.Errorf("init telegram notifier: %w", err)
		}
		return n, nil, nil
	case config.NotifyDriverAMQP:
		p, err := amqpinfra.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log.Named("amqp"))
		if err != nil {
			return nil, nil, fmt.Errorf("init amqp notifier: %w", err)
		}
		return p, p, nil
	default:
		return notifysvc.NewLogNotifier(log.Named("notify")), nil, nil
	}
}

func tierPrices(raw map[string]string, log *zap.Logger) map[enums.Tier]string {
	prices := make(map[enums.Tier]string, len(raw))
	for name, price := range raw {
		tier, ok := enums.ParseTier(name)
		if !ok || !tier.Purchasable() {
			log.Warn("ignoring price for unknown tier", zap.String("tier", name))
			continue
		}
		prices[tier] = price
	}
	return prices
}

func postgresPinger(pool *pgxpool.Pool) handlers.Pinger {
	return func(ctx context.Context) error {
		if pool == nil {
			return fmt.Errorf("postgres pool is not initialized")
		}
		return pool.Ping(ctx)
	}
}
