// Package engine runs the revenue insight and anomaly detectors over one
// user's transaction history. Each invocation is a single short-lived batch
// computation over an in-memory snapshot: fetch once, detect, persist,
// summarize. Detectors are pure functions; all I/O goes through the ports in
// interfaces.go.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/creator-ledger/internal/domain"
)

const (
	// insightFetchLimit bounds the forecast window (roughly 12 months of
	// payouts for an active creator).
	insightFetchLimit = 500

	// scanFetchLimit bounds the weekly scanner's history window.
	scanFetchLimit = 1000

	// recentWindowDays is the trailing window the 30-day detectors use.
	recentWindowDays = 30

	// minScanTransactions is the strict lower bound of history required
	// before the weekly scanner runs at all.
	minScanTransactions = 10

	// reasoningTimeout caps each causal-reasoning call. The scan never
	// blocks longer than this per new event.
	reasoningTimeout = 30 * time.Second

	// reasoningSampleSize is how many recent transactions are handed to the
	// reasoning service as context.
	reasoningSampleSize = 20
)

// Engine wires the detectors to their collaborators.
type Engine struct {
	transactions TransactionSource
	insights     InsightStore
	autopsies    AutopsyStore
	reasoner     CausalReasoner
	audit        AuditLogger
	log          zerolog.Logger
	now          func() time.Time
}

// Config collects the engine's dependencies. Reasoner and Audit are
// optional; a nil reasoner records events without causal narratives.
type Config struct {
	Transactions TransactionSource
	Insights     InsightStore
	Autopsies    AutopsyStore
	Reasoner     CausalReasoner
	Audit        AuditLogger
	Logger       zerolog.Logger
	Now          func() time.Time
}

// New creates an engine from the given configuration.
func New(cfg Config) *Engine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		transactions: cfg.Transactions,
		insights:     cfg.Insights,
		autopsies:    cfg.Autopsies,
		reasoner:     cfg.Reasoner,
		audit:        cfg.Audit,
		log:          cfg.Logger,
		now:          now,
	}
}

// InsightRef identifies one generated insight in a run summary.
type InsightRef struct {
	Type  domain.InsightType `json:"type"`
	Title string             `json:"title"`
}

// InsightSummary is the caller-facing result of one insight-generation run.
type InsightSummary struct {
	Success           bool         `json:"success"`
	InsightsGenerated int          `json:"insightsGenerated"`
	Insights          []InsightRef `json:"insights"`
}

// ScanSummary is the caller-facing result of one weekly anomaly scan.
type ScanSummary struct {
	EventsCreated int `json:"eventsCreated"`
}

// GenerateInsights fetches one bounded window of the user's transactions,
// runs the four insight detectors over it, persists every insight they emit
// and returns the summary. A failed transaction fetch fails the whole run; a
// failed insert is logged, audited and skipped so the remaining insights
// still land.
func (e *Engine) GenerateInsights(ctx context.Context, userID string) (*InsightSummary, error) {
	start := e.now()
	since := start.AddDate(-1, 0, 0)

	txns, err := e.transactions.QueryTransactionsByUser(ctx, userID, since, start, insightFetchLimit)
	if err != nil {
		e.logAudit(ctx, AuditEntry{
			Action:  "generate_insights",
			ActorID: userID,
			Status:  "failure",
			Details: map[string]interface{}{"error": err.Error()},
		})
		return &InsightSummary{Insights: []InsightRef{}}, fmt.Errorf("GenerateInsights: fetch transactions: %w", err)
	}

	summary := &InsightSummary{Success: true, Insights: []InsightRef{}}
	if len(txns) == 0 {
		e.logAudit(ctx, AuditEntry{
			Action:  "generate_insights",
			ActorID: userID,
			Status:  "success",
			Details: map[string]interface{}{"transactions_analyzed": 0, "insights_generated": 0},
		})
		return summary, nil
	}

	sortByDate(txns)
	recent := filterSince(txns, start.AddDate(0, 0, -recentWindowDays))

	var generated []*domain.Insight
	if ins := ForecastPayouts(txns, start); ins != nil {
		generated = append(generated, ins)
	}
	generated = append(generated, DetectConcentrationRisk(recent)...)
	if ins := DetectOutliers(txns, recent); ins != nil {
		generated = append(generated, ins)
	}
	generated = append(generated, SuggestPricing(recent)...)

	persistFailures := 0
	for _, ins := range generated {
		ins.InsightID = uuid.New().String()
		ins.UserID = userID
		if err := e.insights.InsertInsight(ctx, ins); err != nil {
			persistFailures++
			e.log.Error().Err(err).
				Str("user_id", userID).
				Str("insight_type", string(ins.Type)).
				Msg("Failed to persist insight")
			continue
		}
		summary.InsightsGenerated++
		summary.Insights = append(summary.Insights, InsightRef{Type: ins.Type, Title: ins.Title})
	}

	e.logAudit(ctx, AuditEntry{
		Action:  "generate_insights",
		ActorID: userID,
		Status:  "success",
		Details: map[string]interface{}{
			"transactions_analyzed": len(txns),
			"insights_generated":    summary.InsightsGenerated,
			"persist_failures":      persistFailures,
			"duration_ms":           e.now().Sub(start).Milliseconds(),
		},
	})
	return summary, nil
}

// ScanWeeklyAnomalies buckets the user's history into per-platform weekly
// totals, flags week-over-week swings above the threshold and records an
// open autopsy event for every swing not already covered by a prior event.
// Prior events are fetched exactly once per invocation and indexed before
// the candidate loop. The causal-reasoning call is best-effort: on failure
// the event is still recorded without a reconstruction.
func (e *Engine) ScanWeeklyAnomalies(ctx context.Context, userID string) (*ScanSummary, error) {
	start := e.now()
	since := start.AddDate(-1, 0, 0)

	txns, err := e.transactions.QueryTransactionsByUser(ctx, userID, since, start, scanFetchLimit)
	if err != nil {
		e.logAudit(ctx, AuditEntry{
			Action:  "scan_weekly_anomalies",
			ActorID: userID,
			Status:  "failure",
			Details: map[string]interface{}{"error": err.Error()},
		})
		return nil, fmt.Errorf("ScanWeeklyAnomalies: fetch transactions: %w", err)
	}

	summary := &ScanSummary{}
	if len(txns) <= minScanTransactions {
		e.logAudit(ctx, AuditEntry{
			Action:  "scan_weekly_anomalies",
			ActorID: userID,
			Status:  "success",
			Details: map[string]interface{}{
				"transactions_analyzed": len(txns),
				"events_created":        0,
				"message":               "insufficient data",
			},
		})
		return summary, nil
	}

	sortByDate(txns)
	candidates := weeklyCandidates(txns)

	// One batched lookup covering every scanned week, never a per-candidate
	// fetch.
	existing, err := e.autopsies.QueryRecentAutopsyEvents(ctx, userID, weekStart(txns[0].Date))
	if err != nil {
		e.logAudit(ctx, AuditEntry{
			Action:  "scan_weekly_anomalies",
			ActorID: userID,
			Status:  "failure",
			Details: map[string]interface{}{"error": err.Error()},
		})
		return nil, fmt.Errorf("ScanWeeklyAnomalies: fetch prior events: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, ev := range existing {
		seen[eventKey(ev.Platform, ev.WeekStart)] = true
	}

	persistFailures := 0
	for _, c := range candidates {
		if seen[eventKey(c.Platform, c.WeekStart)] {
			continue
		}

		eventType := domain.EventRevenueDrop
		if c.ChangePercent > 0 {
			eventType = domain.EventRevenueSpike
		}
		event := &domain.AutopsyEvent{
			EventID:          uuid.New().String(),
			UserID:           userID,
			Type:             eventType,
			Severity:         severityFor(c.ChangePercent),
			DetectedAt:       e.now(),
			WeekStart:        c.WeekStart,
			Platform:         c.Platform,
			ImpactPercentage: c.ChangePercent,
			ImpactAmount:     c.CurrTotal - c.PrevTotal,
			Causal:           e.reconstructCause(ctx, userID, c, txns),
			Status:           domain.StatusOpen,
		}

		if err := e.autopsies.InsertAutopsyEvent(ctx, event); err != nil {
			persistFailures++
			e.log.Error().Err(err).
				Str("user_id", userID).
				Str("platform", c.Platform).
				Time("week_start", c.WeekStart).
				Msg("Failed to persist autopsy event")
			continue
		}
		summary.EventsCreated++
	}

	e.logAudit(ctx, AuditEntry{
		Action:  "scan_weekly_anomalies",
		ActorID: userID,
		Status:  "success",
		Details: map[string]interface{}{
			"transactions_analyzed": len(txns),
			"candidates":            len(candidates),
			"events_created":        summary.EventsCreated,
			"persist_failures":      persistFailures,
			"duration_ms":           e.now().Sub(start).Milliseconds(),
		},
	})
	return summary, nil
}

// reconstructCause asks the reasoning service to explain one swing. Any
// failure (including timeout) degrades to nil; the scan keeps going.
func (e *Engine) reconstructCause(ctx context.Context, userID string, c weeklyCandidate, txns []domain.Transaction) *domain.CausalReconstruction {
	if e.reasoner == nil {
		return nil
	}

	// Newest-first sample for the prompt.
	sample := make([]domain.Transaction, 0, reasoningSampleSize)
	for i := len(txns) - 1; i >= 0 && len(sample) < reasoningSampleSize; i-- {
		sample = append(sample, txns[i])
	}

	cctx, cancel := context.WithTimeout(ctx, reasoningTimeout)
	defer cancel()

	rec, err := e.reasoner.ReconstructCause(cctx, CausalRequest{
		UserID:             userID,
		Platform:           c.Platform,
		WeekStart:          c.WeekStart,
		PrevWeekTotal:      c.PrevTotal,
		CurrWeekTotal:      c.CurrTotal,
		ChangePercent:      c.ChangePercent,
		RecentTransactions: sample,
	})
	if err != nil {
		e.log.Warn().Err(err).
			Str("user_id", userID).
			Str("platform", c.Platform).
			Msg("Causal reasoning failed, recording event without reconstruction")
		return nil
	}
	return rec
}

func (e *Engine) logAudit(ctx context.Context, entry AuditEntry) {
	if e.audit == nil {
		return
	}
	e.audit.LogAudit(ctx, entry)
}
