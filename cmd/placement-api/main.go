// cmd/placement-api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"internship-portal/internal/api"
	"internship-portal/internal/api/handlers"
	httpmw "internship-portal/internal/api/middleware"
	"internship-portal/internal/common/auth"
	awsclients "internship-portal/internal/common/aws"
	"internship-portal/internal/common/camunda"
	"internship-portal/internal/common/config"
	"internship-portal/internal/common/database"
	"internship-portal/internal/common/discord"
	"internship-portal/internal/common/logger"
	"internship-portal/internal/common/observability"
	"internship-portal/internal/common/validation"
	"internship-portal/internal/dashboard"
	"internship-portal/internal/documents"
	"internship-portal/internal/opportunities"
	"internship-portal/internal/outbox"
	"internship-portal/internal/realtime"
	"internship-portal/internal/search"
	"internship-portal/internal/store"
	"internship-portal/internal/workflow"

	sn "internship-portal/internal/workers/application/send-notification"
	ip "internship-portal/internal/workers/search/index-payment"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{"service": cfg.App.Name})

	zapLog.Info("Starting placement API", zap.String("environment", cfg.App.Environment), zap.String("version", cfg.App.Version))

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	if cfg.Database.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, pg.DB); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
		zapLog.Info("Schema migrated")
	}

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	readiness := map[string]handlers.ReadinessCheck{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}

	// --- Init Elasticsearch (optional) ---
	var paymentIndex *search.PaymentIndex
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			if err := esClient.Ping(ctx); err != nil {
				return err
			}
			return esClient.EnsureIndex(ctx, cfg.Database.Elasticsearch.PaymentIndex, search.PaymentMapping)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		paymentIndex = search.NewPaymentIndex(esClient.Client, cfg.Database.Elasticsearch.PaymentIndex, log)
		readiness["elasticsearch"] = esClient.Ping
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Domain services ---
	st := store.NewPostgres(pg.DB)
	paymentSvc := workflow.NewPaymentService(st, workflow.PaymentConfig{
		Fee:           cfg.Payments.ApplicationFee,
		Tolerance:     cfg.Payments.AmountTolerance,
		RecencyWindow: time.Duration(cfg.Payments.RecencyWindowMinutes) * time.Minute,
	}, obs, log)
	applicationSvc := workflow.NewApplicationService(st, documents.NewValidator(cfg.Uploads.MaxBytes, cfg.Uploads.AllowedTypes), log)
	opportunitySvc := workflow.NewOpportunityService(st, log)
	dash := dashboard.NewService(paymentSvc, rdb.Client, config.GetDuration(cfg.Payments.StatsCacheTTL), log)
	hub := realtime.NewHub(log, cfg.Server.AllowedOrigins)

	// --- Notification channels ---
	channels := sn.Channels{Push: hub}
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		sesClient, snsClient, err := awsclients.NewClients(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("aws clients failed", zap.Error(err))
		}
		if cfg.Notifications.Email.Enabled {
			channels.Email = awsclients.NewMailer(sesClient, cfg.Notifications.Email.FromEmail)
		}
		if cfg.Notifications.SMS.Enabled {
			channels.SMS = awsclients.NewTexter(snsClient, cfg.Notifications.SMS.SenderID)
		}
	}
	if cfg.Notifications.Discord.Enabled {
		alerter, err := discord.Open(cfg.Notifications.Discord.BotToken, cfg.Notifications.Discord.ChannelID)
		if err != nil {
			zapLog.Error("discord alerts disabled", zap.Error(err))
		} else {
			channels.Alerts = alerter
			defer alerter.Close()
		}
	}

	notifier, err := sn.NewHandler(sn.LoadConfig(cfg), channels, log)
	if err != nil {
		zapLog.Fatal("failed to create send-notification handler", zap.Error(err))
	}
	var index ip.Indexer
	if paymentIndex != nil {
		index = paymentIndex
	}
	indexer := ip.NewHandler(st.Payments(), index, config.GetDuration(config.GetWorkerConfig(cfg, ip.TaskType).Timeout), log)

	// --- Event delivery: Zeebe process per event, or in-process dispatch ---
	dispatcher := outbox.NewDispatcher()
	dispatcher.OnAll(dash.Invalidate)

	var workers []*camunda.CamundaWorker
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		zapLog.Info("Zeebe client connected successfully")

		if cfg.Camunda.DeployResources {
			deployed, err := zeebe.DeployDirectory(ctx, cfg.Camunda.ResourceDirectory)
			if err != nil {
				zapLog.Fatal("bpmn deployment failed", zap.Error(err))
			}
			zapLog.Info("BPMN resources deployed", zap.Strings("resources", deployed))
		}

		if config.IsWorkerEnabled(cfg, sn.TaskType) {
			workers = append(workers, startWorker(zeebe, sn.TaskType, cfg, notifier, log))
		}
		// the process always runs index-payment, so its worker is needed
		// even when search is disabled
		workers = append(workers, startWorker(zeebe, ip.TaskType, cfg, indexer, log))
		dispatcher.OnAll(camunda.NewPublisher(zeebe, cfg.Camunda.NotificationProc, log).Publish)
		readiness["zeebe"] = zeebe.HealthCheck
	} else {
		if config.IsWorkerEnabled(cfg, sn.TaskType) {
			dispatcher.OnAll(notifier.Publish)
		}
		if index != nil && config.IsWorkerEnabled(cfg, ip.TaskType) {
			dispatcher.OnAll(indexer.Publish)
		}
		zapLog.Info("Camunda disabled, dispatching events in-process")
	}

	var background sync.WaitGroup
	relay := outbox.NewRelay(pg.DB, dispatcher, outbox.RelayConfig{
		PollInterval: config.GetDuration(cfg.Outbox.PollInterval),
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		BaseBackoff:  config.GetDuration(cfg.Outbox.BaseBackoff),
	}, log)
	closer := opportunities.NewCloser(opportunities.NewRepository(pg.DB), rdb.Client,
		config.GetDuration(cfg.Opportunities.SweepInterval), config.GetDuration(cfg.Opportunities.LockTTL), log)
	background.Add(2)
	go func() { defer background.Done(); relay.Run(ctx) }()
	go func() { defer background.Done(); closer.Run(ctx) }()

	// --- HTTP API ---
	validator, err := validation.NewValidator()
	if err != nil {
		zapLog.Fatal("request schemas failed to compile", zap.Error(err))
	}
	keycloak := auth.NewKeycloakClient(
		cfg.Auth.Keycloak.URL,
		cfg.Auth.Keycloak.Realm,
		cfg.Auth.Keycloak.ClientID,
		cfg.Auth.Keycloak.ClientSecret,
		rdb.Client,
		config.GetDuration(cfg.Auth.Keycloak.CacheTTL),
	)
	var searcher handlers.PaymentSearcher
	if paymentIndex != nil {
		searcher = paymentIndex
	}

	router := api.NewRouter(api.RouterDependencies{
		PaymentHandler:     handlers.NewPaymentHandler(paymentSvc, validator),
		ApplicationHandler: handlers.NewApplicationHandler(applicationSvc, validator),
		OpportunityHandler: handlers.NewOpportunityHandler(opportunitySvc, validator),
		AdminHandler:       handlers.NewAdminHandler(dash, searcher),
		SystemHandler:      handlers.NewSystemHandler(cfg.App.Version, readiness),
		RealtimeHandler:    handlers.NewRealtimeHandler(hub),
		MetricsHandler:     promhttp.Handler(),
		AuthMiddleware:     httpmw.NewAuthMiddleware(keycloak),
		Limiter:            httpmw.NewRedisLimiter(rdb.Client, log),
		SubmitLimit:        cfg.Payments.RateLimitPerMinute,
		RequestTimeout:     config.GetDuration(cfg.Server.RequestTimeout),
		Logger:             log,
	})

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}
	serverErr := make(chan error, 1)
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// --- Graceful Shutdown ---
	select {
	case <-ctx.Done():
		zapLog.Info("Shutdown signal received")
	case err := <-serverErr:
		zapLog.Error("HTTP server failed", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop()
	}
	background.Wait()

	zapLog.Info("Placement API stopped")
}

func startWorker(client *camunda.Client, taskType string, cfg *config.Config, handler camunda.JobHandler, log logger.Logger) *camunda.CamundaWorker {
	wcfg := config.GetWorkerConfig(cfg, taskType)
	return camunda.NewWorker(client.GetClient(), taskType, wcfg.MaxJobsActive, config.GetDuration(wcfg.Timeout), handler, log)
}
