package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gilang-arya/crew-dispatch-api/internal/gateway"
	"github.com/gilang-arya/crew-dispatch-api/internal/handler"
	internalMiddleware "github.com/gilang-arya/crew-dispatch-api/internal/middleware"
	"github.com/gilang-arya/crew-dispatch-api/internal/repository"
	"github.com/gilang-arya/crew-dispatch-api/internal/service"
	"github.com/gilang-arya/crew-dispatch-api/internal/worker"
	"github.com/gilang-arya/crew-dispatch-api/pkg/cache"
	"github.com/gilang-arya/crew-dispatch-api/pkg/config"
	"github.com/gilang-arya/crew-dispatch-api/pkg/database"
	"github.com/gilang-arya/crew-dispatch-api/pkg/jobs"
	"github.com/gilang-arya/crew-dispatch-api/pkg/logger"
	"github.com/gilang-arya/crew-dispatch-api/pkg/middleware/cors"
	"github.com/gilang-arya/crew-dispatch-api/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	cacheRepo := repository.NewCacheRepository(nil, log)
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, caching disabled", zap.Error(err))
			cfg.Cache.Enabled = false
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, log)
		}
	}
	defer func() { _ = cacheRepo.Close() }()

	validate := validator.New()
	metrics := service.NewMetricsService()

	employeeRepo := repository.NewEmployeeRepository(db)
	eventRepo := repository.NewWorkEventRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	rotationRepo := repository.NewRotationRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	proposalRepo := repository.NewProposalRepository(db)
	runRepo := repository.NewRunRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.Enabled, cfg.Cache.TTL, log)
	ruleSvc := service.NewRuleService(employeeRepo, availabilityRepo, assignmentRepo, proposalRepo, cfg.Engine.OverlapProximity, log)
	candidateSvc := service.NewCandidateService(employeeRepo, rotationRepo, assignmentRepo, proposalRepo, log)
	conflictSvc := service.NewConflictService(proposalRepo, eventRepo, db, log)
	engineSvc := service.NewEngineService(
		runRepo, eventRepo, proposalRepo, candidateSvc, ruleSvc, conflictSvc, metrics,
		cfg.Engine.MinAdvanceDays, cfg.Engine.MaxBumpsPerEvent, log,
	)

	submitter := gateway.NewClient(cfg.Submission.BaseURL, cfg.Submission.Timeout, log)
	proposalSvc := service.NewProposalService(
		proposalRepo, eventRepo, assignmentRepo, conflictSvc, ruleSvc,
		submitter, metrics, cacheSvc, db, validate, log,
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	retryQueue := jobs.NewQueue("submission-retry", proposalSvc.HandleRetryJob, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 5,
		RetryDelay: cfg.Submission.RetryInterval,
		Logger:     log,
	})
	retryQueue.Start(rootCtx)
	defer retryQueue.Stop()
	proposalSvc.SetRetryQueue(retryQueue)

	scheduler := worker.NewScheduler(engineSvc, proposalSvc, log)
	if cfg.Engine.ScheduledRuns {
		if err := scheduler.RegisterRun(cfg.Engine.RunSchedule); err != nil {
			log.Fatal("invalid run schedule", zap.Error(err))
		}
	}
	if cfg.Submission.RetrySweep {
		if err := scheduler.RegisterResubmitSweep("@every 15m"); err != nil {
			log.Fatal("invalid resubmit schedule", zap.Error(err))
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.Middleware())
	router.Use(cors.New(cfg.CORS.AllowedOrigins))
	router.Use(logger.GinMiddleware(log))
	router.Use(internalMiddleware.Metrics(metrics))

	handler.NewMetricsHandler(metrics.Registry()).Register(router)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group(cfg.APIPrefix)
	handler.NewRunHandler(engineSvc, validate, log).Register(api)
	handler.NewProposalHandler(proposalSvc, log).Register(api)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.Int("port", cfg.Port), zap.String("prefix", cfg.APIPrefix))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
