package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/creator-ledger/internal/audit"
	"github.com/dvloznov/creator-ledger/internal/engine"
	infraBQ "github.com/dvloznov/creator-ledger/internal/infra/bigquery"
	"github.com/dvloznov/creator-ledger/internal/jobs"
	"github.com/dvloznov/creator-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/creator-ledger/internal/logger"
	"github.com/dvloznov/creator-ledger/internal/reasoning"
)

func main() {
	model := flag.String("model", reasoning.DefaultModelName, "Gemini model for causal reasoning")
	flag.Parse()

	// Initialize logger
	log := logger.New()

	// Initialize job store and queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	log.Info().Msg("Starting worker service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := infraBQ.NewBigQueryInsightRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create insight repository")
	}
	defer repo.Close()

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

	// Create job handler that runs the engine
	handler := func(ctx context.Context, job *jobs.EngineRunJob) error {
		log.Info().
			Str("job_id", job.JobID).
			Str("user_id", job.UserID).
			Str("mode", string(job.Mode)).
			Msg("Processing engine run job")

		switch job.Mode {
		case jobs.RunModeGenerateInsights:
			summary, err := eng.GenerateInsights(ctx, job.UserID)
			if err != nil {
				log.Error().
					Err(err).
					Str("job_id", job.JobID).
					Str("user_id", job.UserID).
					Msg("Insight generation failed")
				return err
			}
			job.InsightsGenerated = summary.InsightsGenerated
		case jobs.RunModeScanAnomalies:
			summary, err := eng.ScanWeeklyAnomalies(ctx, job.UserID)
			if err != nil {
				log.Error().
					Err(err).
					Str("job_id", job.JobID).
					Str("user_id", job.UserID).
					Msg("Anomaly scan failed")
				return err
			}
			job.EventsCreated = summary.EventsCreated
		default:
			return fmt.Errorf("unknown run mode: %s", job.Mode)
		}

		log.Info().
			Str("job_id", job.JobID).
			Str("user_id", job.UserID).
			Msg("Engine run job completed successfully")

		return nil
	}

	// Start consuming jobs
	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}
