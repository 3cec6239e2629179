package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/sentinel-health/copd-monitor/pkg/common/config"
	"github.com/sentinel-health/copd-monitor/pkg/common/database"
	"github.com/sentinel-health/copd-monitor/pkg/common/kafka"
	"github.com/sentinel-health/copd-monitor/pkg/common/logger"
	"github.com/sentinel-health/copd-monitor/pkg/common/models"
	"github.com/sentinel-health/copd-monitor/pkg/dashboard"
	"github.com/sentinel-health/copd-monitor/pkg/events"
	"github.com/sentinel-health/copd-monitor/pkg/gateway/auth"
	"github.com/sentinel-health/copd-monitor/pkg/gateway/middleware"
	"github.com/sentinel-health/copd-monitor/pkg/gateway/routes"
	"github.com/sentinel-health/copd-monitor/pkg/gateway/stream"
	"github.com/sentinel-health/copd-monitor/pkg/narrative"
	"github.com/sentinel-health/copd-monitor/pkg/patient"
	"github.com/sentinel-health/copd-monitor/pkg/prediction"
	"github.com/sentinel-health/copd-monitor/pkg/risk"
	"github.com/sentinel-health/copd-monitor/pkg/weather"
)

func main() {
	logger.Init("copd-monitor")
	cfg := config.Load()
	locale := models.ParseLocale(cfg.DefaultLocale)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := openRepository(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to open patient repository")
	}

	analyzer, closeAnalyzer, err := narrative.NewFromConfig(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialise narrative enrichment")
	}
	defer closeAnalyzer()

	weatherSvc := weather.NewService(cfg, weather.NewRedisCache(database.GetRedis()))
	defer database.CloseRedis()

	scorer := risk.NewScorer()
	patients := patient.NewService(repo, scorer)
	coordinator := prediction.NewCoordinator(repo, scorer, analyzer,
		prediction.WithWeather(weatherSvc),
		prediction.WithFallback(narrative.Fallback),
		prediction.WithEnrichmentTimeout(cfg.EnrichmentTimeout),
	)

	hub := stream.NewHub(coordinator.Latest)
	go hub.Run(ctx)
	coordinator.OnUpdate(hub.BroadcastPrediction)

	if cfg.KafkaEnabled {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.PredictionTopic)
		defer producer.Close()
		publisher := events.NewPublisher(producer, 64)
		coordinator.OnUpdate(publisher.Enqueue)
		go func() {
			if err := publisher.Run(ctx); err != nil && err != context.Canceled {
				logger.Log.WithError(err).Error("Prediction publisher stopped")
			}
		}()

		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.MeasurementTopic, cfg.KafkaGroupID)
		defer consumer.Close()
		ingestor := events.NewMeasurementIngestor(patients, coordinator)
		go func() {
			if err := consumer.Consume(ctx, ingestor.Handle); err != nil && err != context.Canceled {
				logger.Log.WithError(err).Error("Measurement consumer stopped")
			}
		}()
		logger.Log.WithField("brokers", cfg.KafkaBrokers).Info("Kafka event bridge enabled")
	}

	oidcAuth, err := auth.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret)
	if err != nil {
		logger.Log.WithError(err).Warn("OIDC authentication not configured, running without auth")
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)
	router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods("GET")
	router.HandleFunc("/metrics", routes.ServePrometheus).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.BodyLimit(cfg.MaxRequestBody))
	if oidcAuth != nil {
		apiRouter.Use(middleware.Authenticate(oidcAuth))
	}
	routes.NewPatientsHandler(patients, weatherSvc, analyzer, coordinator, locale).Register(apiRouter)
	routes.NewMonitoringHandler(coordinator, hub, locale).Register(apiRouter)
	routes.NewAlertsHandler(dashboard.NewService(patients, scorer)).Register(apiRouter)
	routes.NewMetricsHandler().Register(apiRouter)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":       cfg.ServerHost,
			"port":       cfg.ServerPort,
			"repository": cfg.RepositoryBackend,
			"locale":     locale,
		}).Info("COPD monitor started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down COPD monitor...")
	coordinator.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("COPD monitor stopped")
}

// openRepository returns the gorm repository for the postgres backend and an
// in-memory repository seeded from the YAML roster otherwise.
func openRepository(cfg *config.Config) (patient.Repository, error) {
	if cfg.RepositoryBackend == "postgres" {
		db, err := database.GetPostgres()
		if err != nil {
			return nil, err
		}
		repo := patient.NewGormRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("migrate patient schema: %w", err)
		}
		return repo, nil
	}

	roster, err := patient.LoadRoster(cfg.PatientFixtures, time.Now())
	if err != nil {
		if os.IsNotExist(err) {
			logger.Log.WithField("path", cfg.PatientFixtures).Warn("Patient roster not found, starting empty")
			return patient.NewMemoryRepository(), nil
		}
		return nil, fmt.Errorf("load patient roster: %w", err)
	}
	logger.Log.WithField("patients", len(roster)).Info("Loaded patient roster")
	return patient.NewMemoryRepository(roster...), nil
}
