package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/creator-ledger/internal/api/handlers"
	"github.com/dvloznov/creator-ledger/internal/api/middleware"
	"github.com/dvloznov/creator-ledger/internal/audit"
	"github.com/dvloznov/creator-ledger/internal/engine"
	infraBQ "github.com/dvloznov/creator-ledger/internal/infra/bigquery"
	"github.com/dvloznov/creator-ledger/internal/jobs"
	"github.com/dvloznov/creator-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/creator-ledger/internal/logger"
	"github.com/dvloznov/creator-ledger/internal/reasoning"
	"github.com/dvloznov/creator-ledger/internal/runarchive"
)

func main() {
	// Parse command-line flags
	var (
		port   = flag.String("port", "8080", "HTTP server port")
		bucket = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for run reports (or set GCS_BUCKET env)")
		model  = flag.String("model", reasoning.DefaultModelName, "Gemini model for causal reasoning")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	// Initialize repositories
	ctx := context.Background()

	repo, err := infraBQ.NewBigQueryInsightRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create insight repository")
	}
	defer repo.Close()

	// Causal reasoning degrades gracefully without an API key; the engine
	// records anomaly events with no narrative in that case.
	var reasoner engine.CausalReasoner
	if os.Getenv("GEMINI_API_KEY") != "" {
		reasoner = reasoning.NewGeminiReasoner(*model)
	} else {
		log.Warn().Msg("No GEMINI_API_KEY configured - causal reasoning disabled")
	}

	eng := engine.New(engine.Config{
		Transactions: repo,
		Insights:     repo,
		Autopsies:    repo,
		Reasoner:     reasoner,
		Audit:        audit.New(log, repo),
		Logger:       log,
	})

	var archiver runarchive.Archiver
	if *bucket != "" {
		archiver = runarchive.NewGCSArchiver(*bucket)
	} else {
		log.Warn().Msg("No GCS bucket configured - run report archiving disabled")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job *jobs.EngineRunJob) error {
		log.Info().
			Str("job_id", job.JobID).
			Str("user_id", job.UserID).
			Str("mode", string(job.Mode)).
			Msg("Processing engine run job")

		switch job.Mode {
		case jobs.RunModeGenerateInsights:
			summary, err := eng.GenerateInsights(ctx, job.UserID)
			if err != nil {
				return err
			}
			job.InsightsGenerated = summary.InsightsGenerated
		case jobs.RunModeScanAnomalies:
			summary, err := eng.ScanWeeklyAnomalies(ctx, job.UserID)
			if err != nil {
				return err
			}
			job.EventsCreated = summary.EventsCreated
		default:
			return fmt.Errorf("unknown run mode: %s", job.Mode)
		}

		log.Info().
			Str("job_id", job.JobID).
			Str("user_id", job.UserID).
			Msg("Engine run job completed")

		return nil
	}

	// Start job consumer in background
	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	insightsHandler := handlers.NewInsightsHandler(eng, archiver, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, jobQueue, log)
	healthHandler := &handlers.HealthHandler{}

	// Create router
	mux := http.NewServeMux()

	// User-scoped engine endpoints
	mux.HandleFunc("/api/users/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		rest := strings.TrimPrefix(r.URL.Path, "/api/users/")
		switch {
		case strings.HasSuffix(rest, "/insights/run"):
			userID := strings.TrimSuffix(rest, "/insights/run")
			if userID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "User ID is required")
				return
			}
			insightsHandler.RunInsights(w, r, userID)
		case strings.HasSuffix(rest, "/anomalies/scan"):
			userID := strings.TrimSuffix(rest, "/anomalies/scan")
			if userID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "User ID is required")
				return
			}
			insightsHandler.ScanAnomalies(w, r, userID)
		default:
			middleware.WriteError(w, http.StatusNotFound, "Not found")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			jobsHandler.ListJobs(w, r)
		case http.MethodPost:
			jobsHandler.CreateJob(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", healthHandler.Health)

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
