package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/richardliu001/onboarding-service/internal/config"
	"github.com/richardliu001/onboarding-service/internal/logger"
	"github.com/richardliu001/onboarding-service/internal/metrics"
	"github.com/richardliu001/onboarding-service/internal/notify"
	"github.com/richardliu001/onboarding-service/internal/process"
	"github.com/richardliu001/onboarding-service/internal/provider"
	"github.com/richardliu001/onboarding-service/internal/repo"
	"github.com/richardliu001/onboarding-service/internal/service"
	"github.com/richardliu001/onboarding-service/internal/steps"
	"github.com/richardliu001/onboarding-service/internal/storage"
	httptransport "github.com/richardliu001/onboarding-service/internal/transport/http"
	"github.com/richardliu001/onboarding-service/internal/workflow"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true, TranslateError: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(repo.Models()...); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 5. kafka writer
	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	defer kw.Close()

	// 6. repo & metrics
	repository := repo.NewRepository(gdb, rdb, kw, log)
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 7. workflow definition
	def, err := workflow.Load(cfg.Workflow.DefinitionPath)
	if err != nil {
		log.Fatalf("load workflow: %v", err)
	}
	resolver := workflow.NewResolver(def)

	// 8. providers, notification channels, document storage
	opening, _ := cfg.Account.Opening()
	src := provider.NewSource(cfg.Verification.Seed)
	docs, err := storage.NewStore(cfg.Storage.Dir, cfg.Storage.MaxUploadBytes)
	if err != nil {
		log.Fatalf("document storage: %v", err)
	}
	notifier := notify.NewNotifier(emailSender(cfg.Notification, log), smsSender(cfg.Notification, log), cfg.Notification.Timeout, log, m)

	handlers := steps.NewHandlers(steps.Deps{
		Store:     repository,
		Resolver:  resolver,
		Kyc:       provider.NewMockVerifier("kyc", cfg.Verification.KycSuccessRate, cfg.Verification.Latency, src),
		Address:   provider.NewMockVerifier("address", cfg.Verification.AddressSuccessRate, cfg.Verification.Latency, src),
		Accounts:  provider.NewMockAccountIssuer(cfg.Account.CountryCode, cfg.Account.BankCode, opening, src),
		Notifier:  notifier,
		Documents: docs,
		Outcomes:  m,
		Log:       log,
	})

	// 9. engine & service
	engine := process.NewEngine(repository, log, process.Options{
		Retries:      cfg.Workflow.StepRetries,
		RetryBackoff: cfg.Workflow.RetryBackoff,
		Observer:     m,
	}, handlers.Definition(resolver))
	svc := service.NewOnboardingService(repository, engine, docs, resolver, m, log)

	// 10. gin router
	router := httptransport.NewRouter(svc, cfg.RateLimit, reg, log)

	// 11. serve until signalled
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: router}
	go func() {
		log.Infof("onboarding-server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
