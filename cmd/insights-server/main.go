package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/insights/insights/internal/config"
	"github.com/insights/insights/internal/domain/analytics"
	"github.com/insights/insights/internal/domain/prediction"
	"github.com/insights/insights/internal/ml/train"
	"github.com/insights/insights/internal/pipeline/etl"
	"github.com/insights/insights/internal/pipeline/generator"
	"github.com/insights/insights/internal/pipeline/warehouse"
	platformdb "github.com/insights/insights/internal/platform/db"
	"github.com/insights/insights/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "insights-server",
		Short: "Hospital analytics API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(pipelineCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the analytics API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func pipelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Generate data, build the warehouse and train the models",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd)
		},
	}
	cmd.Flags().Int("patients", 0, "Number of patients to generate (overrides PATIENT_COUNT)")
	cmd.Flags().Int("visits", 0, "Number of visits to generate (overrides VISIT_COUNT)")
	cmd.Flags().Int64("seed", -1, "Generator seed (overrides SEED)")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report warehouse and model artifact status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			fmt.Printf("warehouse: %s\n", fileStatus(cfg.WarehousePath))
			for _, name := range []string{train.ClassifierFile, train.RegressorFile, train.MetricsFile} {
				path := filepath.Join(cfg.ModelDir, name)
				fmt.Printf("%s: %s\n", name, fileStatus(path))
			}
			return nil
		},
	}
}

func fileStatus(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "missing"
	}
	return fmt.Sprintf("present (%d bytes, modified %s)", info.Size(), info.ModTime().Format("2006-01-02 15:04:05"))
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// The server tolerates a missing warehouse. Every data endpoint then
	// answers 503 until the pipeline has been run.
	conn, err := platformdb.OpenReadOnly(cfg.WarehousePath)
	if err != nil {
		logger.Warn().Err(err).Msg("warehouse unavailable, serving degraded")
		conn = nil
	} else {
		defer conn.Close()
		logger.Info().Str("path", cfg.WarehousePath).Msg("warehouse opened read-only")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	// Analytics domain
	var analyticsRepo analytics.Repo
	if conn != nil {
		analyticsRepo = analytics.NewSQLiteRepo(conn)
	}
	analyticsSvc := analytics.NewService(analyticsRepo, logger)
	analyticsHandler := analytics.NewHandler(analyticsSvc)

	// Prediction domain
	var profileStore prediction.ProfileStore
	if conn != nil {
		profileStore = warehouse.NewStore(conn)
	}
	predictionSvc, err := prediction.NewService(profileStore, cfg.ModelDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load model artifacts")
	}

	apiGroup := e.Group("/api")

	// Aggregate endpoints are pure reads over an immutable warehouse, so
	// short-lived response caching is safe. Prediction routes stay uncached.
	aggGroup := apiGroup.Group("")
	cacheCtx, cancelCache := context.WithCancel(context.Background())
	defer cancelCache()
	if cfg.CacheTTLSeconds > 0 {
		store := middleware.NewMemoryStore()
		ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
		store.StartCleanup(cacheCtx, ttl)
		aggGroup.Use(middleware.ResponseCache(store, ttl))
	}

	analyticsHandler.RegisterRoutes(aggGroup)
	prediction.NewHandler(predictionSvc).RegisterRoutes(apiGroup)

	// Endpoint listing
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"service": "hospital-insights",
			"version": "0.1.0",
			"endpoints": []string{
				"/health",
				"/health/db",
				"/api/summary",
				"/api/department-stats",
				"/api/monthly-trends",
				"/api/patients/high-risk",
				"/api/patients/list",
				"/api/opd-analytics",
				"/api/inpatient-analytics",
				"/api/billing-summary",
				"/api/risk/:patient_id",
				"/api/predict-risk",
				"/api/wait-time-forecast",
				"/api/metrics",
			},
		})
	})

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		models := predictionSvc.Ready()
		healthy := analyticsSvc.Ready() && models["classifier"] && models["regressor"]
		status := http.StatusOK
		state := "healthy"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		return c.JSON(status, map[string]interface{}{
			"status":    state,
			"warehouse": analyticsSvc.Ready(),
			"models":    models,
		})
	})
	e.GET("/health/db", platformdb.HealthHandler(conn))

	// Static dashboard
	if _, err := os.Stat(cfg.StaticDir); err == nil {
		e.Static("/dashboard", cfg.StaticDir)
	} else {
		logger.Warn().Str("dir", cfg.StaticDir).Msg("static dashboard directory missing")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func runPipeline(cmd *cobra.Command) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if n, _ := cmd.Flags().GetInt("patients"); n > 0 {
		cfg.PatientCount = n
	}
	if n, _ := cmd.Flags().GetInt("visits"); n > 0 {
		cfg.VisitCount = n
	}
	if s, _ := cmd.Flags().GetInt64("seed"); s >= 0 {
		cfg.Seed = s
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	start := time.Now()

	logger.Info().
		Int("patients", cfg.PatientCount).
		Int("visits", cfg.VisitCount).
		Int64("seed", cfg.Seed).
		Msg("generating dataset")
	dataset := generator.New(cfg.Seed).Generate(cfg.PatientCount, cfg.VisitCount)

	result, report := etl.NewProcessor(logger).Process(dataset)
	logger.Info().
		Int("patients", len(result.Patients)).
		Int("visits", len(result.Visits)).
		Int("admissions", len(result.Admissions)).
		Int("dropped", report.DroppedTotal()).
		Msg("dataset cleaned")

	conn, err := platformdb.Open(cfg.WarehousePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open warehouse")
	}
	defer conn.Close()

	if err := warehouse.NewBuilder(conn, logger).Build(ctx, result); err != nil {
		logger.Fatal().Err(err).Msg("warehouse build failed")
	}

	metrics, err := train.New(warehouse.NewStore(conn), cfg.ModelDir, cfg.Seed, logger).Run(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("model training failed")
	}

	logger.Info().
		Str("model_type", metrics.Classifier.ModelType).
		Float64("roc_auc", metrics.Classifier.ROCAUC).
		Float64("rmse", metrics.Regressor.RMSE).
		Dur("elapsed", time.Since(start)).
		Msg("pipeline complete")
	return nil
}
