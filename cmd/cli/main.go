package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/creator-ledger/internal/audit"
	"github.com/dvloznov/creator-ledger/internal/engine"
	infraBQ "github.com/dvloznov/creator-ledger/internal/infra/bigquery"
	"github.com/dvloznov/creator-ledger/internal/logger"
	"github.com/dvloznov/creator-ledger/internal/notionsync"
	"github.com/dvloznov/creator-ledger/internal/reasoning"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "generate":
		runGenerate(log)
	case "scan":
		runScan(log)
	case "export-notion":
		runExportNotion(log)
	case "inspect":
		runInspect(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Creator Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  generate       Generate revenue insights for a user")
	fmt.Println("  scan           Scan weekly revenue for anomalies")
	fmt.Println("  export-notion  Export a user's insights to a Notion database")
	fmt.Println("  inspect        Inspect a user's recent anomaly events")
	fmt.Println("  help           Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// newEngine wires the repository-backed engine shared by generate and scan.
func newEngine(ctx context.Context, log zerolog.Logger, model string) (*engine.Engine, *infraBQ.BigQueryInsightRepository, error) {
	repo, err := infraBQ.NewBigQueryInsightRepository(ctx)
	if err != nil {
		return nil, nil, err
	}

	var reasoner engine.CausalReasoner
	if os.Getenv("GEMINI_API_KEY") != "" {
		reasoner = reasoning.NewGeminiReasoner(model)
	}

	eng := engine.New(engine.Config{
		Transactions: repo,
		Insights:     repo,
		Autopsies:    repo,
		Reasoner:     reasoner,
		Audit:        audit.New(log, repo),
		Logger:       log,
	})
	return eng, repo, nil
}

func runGenerate(log zerolog.Logger) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	userID := fs.String("user-id", "", "User ID to generate insights for")
	model := fs.String("model", reasoning.DefaultModelName, "Gemini model for causal reasoning")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user-id is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	eng, repo, err := newEngine(ctx, log, *model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	summary, err := eng.GenerateInsights(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Insight generation failed")
	}

	fmt.Printf("Generated %d insights.\n", summary.InsightsGenerated)
	for i, ref := range summary.Insights {
		fmt.Printf("%d. [%s] %s\n", i+1, ref.Type, ref.Title)
	}
}

func runScan(log zerolog.Logger) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	userID := fs.String("user-id", "", "User ID to scan for anomalies")
	model := fs.String("model", reasoning.DefaultModelName, "Gemini model for causal reasoning")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user-id is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	eng, repo, err := newEngine(ctx, log, *model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	summary, err := eng.ScanWeeklyAnomalies(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Anomaly scan failed")
	}

	fmt.Printf("Scan complete. %d new anomaly events recorded.\n", summary.EventsCreated)
}

func runExportNotion(log zerolog.Logger) {
	fs := flag.NewFlagSet("export-notion", flag.ExitOnError)
	userID := fs.String("user-id", "", "User ID whose insights to export")
	databaseID := fs.String("database-id", os.Getenv("NOTION_DATABASE_ID"), "Notion database ID (or set NOTION_DATABASE_ID env)")
	sinceDays := fs.Int("since-days", 30, "Export insights created in the last N days")
	dryRun := fs.Bool("dry-run", false, "Log what would be created without touching Notion")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user-id is required")
	}
	if *databaseID == "" {
		log.Fatal().Msg("Error: --database-id is required (or set NOTION_DATABASE_ID)")
	}

	token := os.Getenv("NOTION_API_KEY")
	if token == "" {
		log.Fatal().Msg("Error: NOTION_API_KEY is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewBigQueryInsightRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	since := time.Now().UTC().AddDate(0, 0, -*sinceDays)
	notionClient := notionsync.NewNotionClient(token)

	if err := notionsync.SyncInsights(ctx, repo, notionClient, *databaseID, *userID, since, *dryRun); err != nil {
		log.Fatal().Err(err).Msg("Notion export failed")
	}

	fmt.Println("Notion export completed successfully.")
}

func runInspect(log zerolog.Logger) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	userID := fs.String("user-id", "", "User ID to inspect")
	sinceDays := fs.Int("since-days", 90, "Show events from the last N days")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user-id is required")
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewBigQueryInsightRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	since := time.Now().UTC().AddDate(0, 0, -*sinceDays)

	events, err := repo.QueryRecentAutopsyEvents(ctx, *userID, since)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query anomaly events")
	}

	fmt.Printf("\n=== Anomaly Events (%d) ===\n", len(events))
	for i, ev := range events {
		fmt.Printf("\n%d. %s on %s\n", i+1, ev.Type, ev.Platform)
		fmt.Printf("   Week:     %s\n", ev.WeekStart.Format("2006-01-02"))
		fmt.Printf("   Impact:   %.1f%% ($%.2f)\n", ev.ImpactPercentage, ev.ImpactAmount)
		fmt.Printf("   Severity: %s\n", ev.Severity)
		fmt.Printf("   Status:   %s\n", ev.Status)
		if ev.Causal != nil {
			fmt.Printf("   Platform behaviour:   %s\n", ev.Causal.PlatformBehaviour)
			fmt.Printf("   Creator behaviour:    %s\n", ev.Causal.CreatorBehaviour)
			fmt.Printf("   External timing:      %s\n", ev.Causal.ExternalTiming)
			fmt.Printf("   Historical analogues: %s\n", ev.Causal.HistoricalAnalogues)
		}
	}
	fmt.Println()
}
