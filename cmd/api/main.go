package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/lifeflow-api/internal/config"
	"github.com/jwalitptl/lifeflow-api/internal/email"
	authhandler "github.com/jwalitptl/lifeflow-api/internal/handler/auth"
	certificatehandler "github.com/jwalitptl/lifeflow-api/internal/handler/certificate"
	donorhandler "github.com/jwalitptl/lifeflow-api/internal/handler/donor"
	healthhandler "github.com/jwalitptl/lifeflow-api/internal/handler/health"
	notificationhandler "github.com/jwalitptl/lifeflow-api/internal/handler/notification"
	requesthandler "github.com/jwalitptl/lifeflow-api/internal/handler/request"
	"github.com/jwalitptl/lifeflow-api/internal/middleware"
	"github.com/jwalitptl/lifeflow-api/internal/push"
	"github.com/jwalitptl/lifeflow-api/internal/repository/postgres"
	"github.com/jwalitptl/lifeflow-api/internal/router"
	assignmentservice "github.com/jwalitptl/lifeflow-api/internal/service/assignment"
	authservice "github.com/jwalitptl/lifeflow-api/internal/service/auth"
	certificateservice "github.com/jwalitptl/lifeflow-api/internal/service/certificate"
	donorservice "github.com/jwalitptl/lifeflow-api/internal/service/donor"
	notificationservice "github.com/jwalitptl/lifeflow-api/internal/service/notification"
	optinservice "github.com/jwalitptl/lifeflow-api/internal/service/optin"
	requestservice "github.com/jwalitptl/lifeflow-api/internal/service/request"
	"github.com/jwalitptl/lifeflow-api/internal/storage"
	"github.com/jwalitptl/lifeflow-api/pkg/auth"
	"github.com/jwalitptl/lifeflow-api/pkg/logger"
	redisbroker "github.com/jwalitptl/lifeflow-api/pkg/messaging/redis"
	"github.com/jwalitptl/lifeflow-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	if err := postgres.RunMigrations(db); err != nil {
		appLogger.Fatal(err, "failed to run migrations")
	}

	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		appLogger.Fatal(err, "invalid redis URL")
	}
	redisClient := goredis.NewClient(redisOpts)
	defer redisClient.Close()

	broker := redisbroker.NewRedisBrokerFromClient(redisClient, &log.Logger)

	photos, err := storage.NewDiskStore(cfg.PhotoStoreDir)
	if err != nil {
		appLogger.Fatal(err, "failed to initialize photo store")
	}

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	donorRepo := postgres.NewDonorRepository(db)
	requestRepo := postgres.NewBloodRequestRepository(db)
	optInRepo := postgres.NewOptInRepository(db)
	certRepo := postgres.NewCertificateRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Collaborators
	tokens := auth.NewManager(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	hasher := security.NewBcryptHasher(0)
	emailSvc := email.NewSMTPService(cfg.SMTP.ToEmailConfig())
	pushPub := push.NewPublisher(broker)

	// Services
	notificationSvc := notificationservice.NewService(notificationRepo, emailSvc, pushPub, appLogger)
	cooldown := cfg.Workflow.CooldownMonths
	cutoff := time.Duration(cfg.Workflow.ReassignCutoffHours) * time.Hour

	certSvc := certificateservice.NewService(certRepo, donorRepo, userRepo, notificationSvc, appLogger)
	requestSvc := requestservice.NewService(
		requestRepo, donorRepo, userRepo, outboxRepo, certSvc, notificationSvc, appLogger, cooldown)
	optInSvc := optinservice.NewService(
		optInRepo, requestRepo, donorRepo, userRepo, notificationSvc, appLogger, cooldown)
	assignmentSvc := assignmentservice.NewService(
		requestRepo, optInRepo, donorRepo, userRepo, notificationSvc, appLogger, cutoff)
	donorSvc := donorservice.NewService(donorRepo, optInRepo, appLogger, cooldown)
	authSvc := authservice.NewService(userRepo, donorRepo, hasher, tokens, appLogger)

	// HTTP layer
	authMw := middleware.NewAuthMiddleware(tokens)
	r := router.NewRouter(
		authMw,
		authhandler.NewHandler(authSvc),
		requesthandler.NewHandler(requestSvc, optInSvc, assignmentSvc, donorSvc, photos),
		donorhandler.NewHandler(donorSvc),
		certificatehandler.NewHandler(certSvc, donorSvc),
		notificationhandler.NewHandler(notificationSvc),
		healthhandler.NewHandler(db, redisClient),
		router.Config{
			RateLimit:  rate.Limit(cfg.RateLimit.RPS),
			RateBurst:  cfg.RateLimit.Burst,
			CORSConfig: middleware.DefaultCORSConfig(),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		appLogger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(err, "server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error(err, "forced shutdown")
	}
}
