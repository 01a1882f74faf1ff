package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/creator-ledger/internal/domain"
	"github.com/dvloznov/creator-ledger/internal/engine"
)

// MockTransactionSource implements engine.TransactionSource
type MockTransactionSource struct {
	QueryTransactionsByUserFunc func(ctx context.Context, userID string, since, until time.Time, limit int) ([]domain.Transaction, error)
}

func (m *MockTransactionSource) QueryTransactionsByUser(ctx context.Context, userID string, since, until time.Time, limit int) ([]domain.Transaction, error) {
	if m.QueryTransactionsByUserFunc != nil {
		return m.QueryTransactionsByUserFunc(ctx, userID, since, until, limit)
	}
	return nil, nil
}

// MockInsightStore implements engine.InsightStore
type MockInsightStore struct {
	InsertInsightFunc func(ctx context.Context, insight *domain.Insight) error
}

func (m *MockInsightStore) InsertInsight(ctx context.Context, insight *domain.Insight) error {
	if m.InsertInsightFunc != nil {
		return m.InsertInsightFunc(ctx, insight)
	}
	return nil
}

// MockAutopsyStore implements engine.AutopsyStore
type MockAutopsyStore struct {
	InsertAutopsyEventFunc       func(ctx context.Context, event *domain.AutopsyEvent) error
	QueryRecentAutopsyEventsFunc func(ctx context.Context, userID string, since time.Time) ([]domain.AutopsyEvent, error)
}

func (m *MockAutopsyStore) InsertAutopsyEvent(ctx context.Context, event *domain.AutopsyEvent) error {
	if m.InsertAutopsyEventFunc != nil {
		return m.InsertAutopsyEventFunc(ctx, event)
	}
	return nil
}

func (m *MockAutopsyStore) QueryRecentAutopsyEvents(ctx context.Context, userID string, since time.Time) ([]domain.AutopsyEvent, error) {
	if m.QueryRecentAutopsyEventsFunc != nil {
		return m.QueryRecentAutopsyEventsFunc(ctx, userID, since)
	}
	return nil, nil
}

// MockCausalReasoner implements engine.CausalReasoner
type MockCausalReasoner struct {
	ReconstructCauseFunc func(ctx context.Context, req engine.CausalRequest) (*domain.CausalReconstruction, error)
}

func (m *MockCausalReasoner) ReconstructCause(ctx context.Context, req engine.CausalRequest) (*domain.CausalReconstruction, error) {
	if m.ReconstructCauseFunc != nil {
		return m.ReconstructCauseFunc(ctx, req)
	}
	return nil, nil
}

// MockAuditLogger implements engine.AuditLogger
type MockAuditLogger struct {
	LogAuditFunc func(ctx context.Context, entry engine.AuditEntry)
}

func (m *MockAuditLogger) LogAudit(ctx context.Context, entry engine.AuditEntry) {
	if m.LogAuditFunc != nil {
		m.LogAuditFunc(ctx, entry)
	}
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
}

func newEngine(src *MockTransactionSource, ins *MockInsightStore, aut *MockAutopsyStore, reasoner engine.CausalReasoner, audit engine.AuditLogger) *engine.Engine {
	return engine.New(engine.Config{
		Transactions: src,
		Insights:     ins,
		Autopsies:    aut,
		Reasoner:     reasoner,
		Audit:        audit,
		Logger:       zerolog.Nop(),
		Now:          fixedNow,
	})
}

func tx(platform, category string, amount float64, date time.Time) domain.Transaction {
	return domain.Transaction{
		UserID:   "user-1",
		Platform: platform,
		Category: category,
		Amount:   amount,
		Date:     date,
	}
}

// insightFixture yields a window that triggers the forecaster (two platforms
// with 2+ payouts) and the concentration detector (youtube dominates).
func insightFixture() []domain.Transaction {
	d := func(m time.Month, day int) time.Time {
		return time.Date(2025, m, day, 0, 0, 0, 0, time.UTC)
	}
	return []domain.Transaction{
		tx("youtube", "ad_revenue", 900, d(4, 15)),
		tx("youtube", "ad_revenue", 950, d(5, 15)),
		tx("youtube", "ad_revenue", 920, d(6, 15)),
		tx("patreon", "membership", 100, d(5, 1)),
		tx("patreon", "membership", 110, d(6, 1)),
	}
}

func TestGenerateInsights(t *testing.T) {
	t.Run("persists generated insights", func(t *testing.T) {
		var inserted []*domain.Insight
		src := &MockTransactionSource{
			QueryTransactionsByUserFunc: func(ctx context.Context, userID string, since, until time.Time, limit int) ([]domain.Transaction, error) {
				return insightFixture(), nil
			},
		}
		ins := &MockInsightStore{
			InsertInsightFunc: func(ctx context.Context, insight *domain.Insight) error {
				inserted = append(inserted, insight)
				return nil
			},
		}

		eng := newEngine(src, ins, &MockAutopsyStore{}, nil, nil)
		summary, err := eng.GenerateInsights(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("GenerateInsights returned error: %v", err)
		}
		if !summary.Success {
			t.Error("expected success summary")
		}
		if summary.InsightsGenerated == 0 {
			t.Fatal("expected at least one insight")
		}
		if summary.InsightsGenerated != len(inserted) {
			t.Errorf("summary counts %d, store saw %d", summary.InsightsGenerated, len(inserted))
		}
		for _, i := range inserted {
			if i.InsightID == "" {
				t.Error("insight persisted without an ID")
			}
			if i.UserID != "user-1" {
				t.Errorf("insight persisted for wrong user %q", i.UserID)
			}
			if i.Confidence <= 0 || i.Confidence > 1 {
				t.Errorf("insight confidence %v out of range", i.Confidence)
			}
		}
	})

	t.Run("empty window is a silent success", func(t *testing.T) {
		src := &MockTransactionSource{
			QueryTransactionsByUserFunc: func(ctx context.Context, userID string, since, until time.Time, limit int) ([]domain.Transaction, error) {
				return nil, nil
			},
		}
		insertCalled := false
		ins := &MockInsightStore{
			InsertInsightFunc: func(ctx context.Context, insight *domain.Insight) error {
				insertCalled = true
				return nil
			},
		}

		eng := newEngine(src, ins, &MockAutopsyStore{}, nil, nil)
		summary, err := eng.GenerateInsights(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("expected silent success, got %v", err)
		}
		if !summary.Success || summary.InsightsGenerated != 0 {
			t.Errorf("unexpected summary %+v", summary)
		}
		if insertCalled {
			t.Error("insert called on empty window")
		}
	})

	t.Run("fetch failure fails the run and audits it", func(t *testing.T) {
		src := &MockTransactionSource{
			QueryTransactionsByUserFunc: func(ctx context.Context, userID string, since, until time.Time, limit int) ([]domain.Transaction, error) {
				return nil, errors.New("bigquery unavailable")
			},
		}
		var audited []engine.AuditEntry
		audit := &MockAuditLogger{
			LogAuditFunc: func(ctx context.Context, entry engine.AuditEntry) {
				audited = append(audited, entry)
			},
		}

		eng := newEngine(src, &MockInsightStore{}, &MockAutopsyStore{}, nil, audit)
		summary, err := eng.GenerateInsights(context.Background(), "user-1")
		if err == nil {
			t.Fatal("expected error on fetch failure")
		}
		if summary.Success {
			t.Error("expected Success=false on fetch failure")
		}
		if len(audited) != 1 || audited[0].Status != "failure" {
			t.Errorf("expected one failure audit entry, got %+v", audited)
		}
	})

	t.Run("persist failure skips the insight and keeps going", func(t *testing.T) {
		src := &MockTransactionSource{
			QueryTransactionsByUserFunc: func(ctx context.Context, userID string, since, until time.Time, limit int) ([]domain.Transaction, error) {
				return insightFixture(), nil
			},
		}
		calls := 0
		ins := &MockInsightStore{
			InsertInsightFunc: func(ctx context.Context, insight *domain.Insight) error {
				calls++
				if calls == 1 {
					return errors.New("streaming insert failed")
				}
				return nil
			},
		}

		eng := newEngine(src, ins, &MockAutopsyStore{}, nil, nil)
		summary, err := eng.GenerateInsights(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("persist failure must not fail the run: %v", err)
		}
		if summary.InsightsGenerated != calls-1 {
			t.Errorf("expected %d persisted insights, got %d", calls-1, summary.InsightsGenerated)
		}
	})
}

// scanFixture spreads five consecutive weeks of one platform's revenue over
// fifteen transactions so the scanner's minimum-history guard passes. Weekly
// totals 1000, 500, 200, 100, 10 give four above-threshold drops.
func scanFixture() []domain.Transaction {
	mondays := []time.Time{
		time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 5, 19, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 5, 26, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	}
	totals := []float64{1000, 500, 200, 100, 10}

	var txns []domain.Transaction
	for i, ws := range mondays {
		half := totals[i] / 2
		quarter := totals[i] / 4
		txns = append(txns,
			tx("youtube", "ad_revenue", half, ws),
			tx("youtube", "ad_revenue", quarter, ws.AddDate(0, 0, 2)),
			tx("youtube", "ad_revenue", quarter, ws.AddDate(0, 0, 4)),
		)
	}
	return txns
}

func TestScanWeeklyAnomalies(t *testing.T) {
	t.Run("records one event per new candidate", func(t *testing.T) {
		src := &MockTransactionSource{
			QueryTransactionsByUserFunc: func(ctx context.Context, userID string, since, until time.Time, limit int) ([]domain.Transaction, error) {
				return scanFixture(), nil
			},
		}
		var events []*domain.AutopsyEvent
		priorFetches := 0
		aut := &MockAutopsyStore{
			InsertAutopsyEventFunc: func(ctx context.Context, event *domain.AutopsyEvent) error {
				events = append(events, event)
				return nil
			},
			QueryRecentAutopsyEventsFunc: func(ctx context.Context, userID string, since time.Time) ([]domain.AutopsyEvent, error) {
				priorFetches++
				return nil, nil
			},
		}

		eng := newEngine(src, &MockInsightStore{}, aut, nil, nil)
		summary, err := eng.ScanWeeklyAnomalies(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("ScanWeeklyAnomalies returned error: %v", err)
		}
		if summary.EventsCreated != 4 {
			t.Errorf("expected 4 events, got %d", summary.EventsCreated)
		}
		if priorFetches != 1 {
			t.Errorf("expected exactly one prior-event fetch, got %d", priorFetches)
		}
		for _, ev := range events {
			if ev.Type != domain.EventRevenueDrop {
				t.Errorf("expected revenue_drop, got %s", ev.Type)
			}
			if ev.Status != domain.StatusOpen {
				t.Errorf("expected open status, got %s", ev.Status)
			}
			if ev.Severity != domain.SeverityCritical {
				t.Errorf("expected critical severity for %v%% drop, got %s", ev.ImpactPercentage, ev.Severity)
			}
			if ev.Causal != nil {
				t.Error("expected nil causal reconstruction without a reasoner")
			}
			if ev.EventID == "" || ev.UserID != "user-1" {
				t.Errorf("event identity not set: %+v", ev)
			}
		}
	})

	t.Run("rescanning the same weeks creates nothing", func(t *testing.T) {
		src := &MockTransactionSource{
			QueryTransactionsByUserFunc: func(ctx context.Context, userID string, since, until time.Time, limit int) ([]domain.Transaction, error) {
				return scanFixture(), nil
			},
		}

		// First pass records events; second pass sees them as prior events.
		var recorded []domain.AutopsyEvent
		aut := &MockAutopsyStore{
			InsertAutopsyEventFunc: func(ctx context.Context, event *domain.AutopsyEvent) error {
				recorded = append(recorded, *event)
				return nil
			},
			QueryRecentAutopsyEventsFunc: func(ctx context.Context, userID string, since time.Time) ([]domain.AutopsyEvent, error) {
				return recorded, nil
			},
		}

		eng := newEngine(src, &MockInsightStore{}, aut, nil, nil)
		first, err := eng.ScanWeeklyAnomalies(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("first scan failed: %v", err)
		}
		if first.EventsCreated != 4 {
			t.Fatalf("first scan expected 4 events, got %d", first.EventsCreated)
		}

		second, err := eng.ScanWeeklyAnomalies(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("second scan failed: %v", err)
		}
		if second.EventsCreated != 0 {
			t.Errorf("second scan expected 0 events, got %d", second.EventsCreated)
		}
	})

	t.Run("thin history is a silent no-op", func(t *testing.T) {
		src := &MockTransactionSource{
			QueryTransactionsByUserFunc: func(ctx context.Context, userID string, since, until time.Time, limit int) ([]domain.Transaction, error) {
				// Exactly the guard value of 10, still not enough.
				return scanFixture()[:10], nil
			},
		}
		priorFetches := 0
		aut := &MockAutopsyStore{
			QueryRecentAutopsyEventsFunc: func(ctx context.Context, userID string, since time.Time) ([]domain.AutopsyEvent, error) {
				priorFetches++
				return nil, nil
			},
		}

		eng := newEngine(src, &MockInsightStore{}, aut, nil, nil)
		summary, err := eng.ScanWeeklyAnomalies(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("expected silent no-op, got %v", err)
		}
		if summary.EventsCreated != 0 {
			t.Errorf("expected 0 events, got %d", summary.EventsCreated)
		}
		if priorFetches != 0 {
			t.Errorf("prior events fetched despite the history guard, %d times", priorFetches)
		}
	})

	t.Run("prior event fetch failure is fatal", func(t *testing.T) {
		src := &MockTransactionSource{
			QueryTransactionsByUserFunc: func(ctx context.Context, userID string, since, until time.Time, limit int) ([]domain.Transaction, error) {
				return scanFixture(), nil
			},
		}
		aut := &MockAutopsyStore{
			QueryRecentAutopsyEventsFunc: func(ctx context.Context, userID string, since time.Time) ([]domain.AutopsyEvent, error) {
				return nil, errors.New("bigquery unavailable")
			},
			InsertAutopsyEventFunc: func(ctx context.Context, event *domain.AutopsyEvent) error {
				t.Error("insert called after failed prior-event fetch")
				return nil
			},
		}

		eng := newEngine(src, &MockInsightStore{}, aut, nil, nil)
		if _, err := eng.ScanWeeklyAnomalies(context.Background(), "user-1"); err == nil {
			t.Fatal("expected error when the prior-event fetch fails")
		}
	})

	t.Run("persist failure skips the event and keeps going", func(t *testing.T) {
		src := &MockTransactionSource{
			QueryTransactionsByUserFunc: func(ctx context.Context, userID string, since, until time.Time, limit int) ([]domain.Transaction, error) {
				return scanFixture(), nil
			},
		}
		calls := 0
		aut := &MockAutopsyStore{
			InsertAutopsyEventFunc: func(ctx context.Context, event *domain.AutopsyEvent) error {
				calls++
				if calls == 1 {
					return errors.New("streaming insert failed")
				}
				return nil
			},
		}

		eng := newEngine(src, &MockInsightStore{}, aut, nil, nil)
		summary, err := eng.ScanWeeklyAnomalies(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("persist failure must not fail the scan: %v", err)
		}
		if summary.EventsCreated != 3 {
			t.Errorf("expected 3 events after one persist failure, got %d", summary.EventsCreated)
		}
	})

	t.Run("reasoner output lands on the event", func(t *testing.T) {
		src := &MockTransactionSource{
			QueryTransactionsByUserFunc: func(ctx context.Context, userID string, since, until time.Time, limit int) ([]domain.Transaction, error) {
				return scanFixture(), nil
			},
		}
		var events []*domain.AutopsyEvent
		aut := &MockAutopsyStore{
			InsertAutopsyEventFunc: func(ctx context.Context, event *domain.AutopsyEvent) error {
				events = append(events, event)
				return nil
			},
		}
		reasoner := &MockCausalReasoner{
			ReconstructCauseFunc: func(ctx context.Context, req engine.CausalRequest) (*domain.CausalReconstruction, error) {
				if req.Platform != "youtube" {
					t.Errorf("unexpected platform %q in causal request", req.Platform)
				}
				if len(req.RecentTransactions) == 0 {
					t.Error("causal request carries no transaction sample")
				}
				return &domain.CausalReconstruction{
					PlatformBehaviour: "algorithm change suspected",
				}, nil
			},
		}

		eng := newEngine(src, &MockInsightStore{}, aut, reasoner, nil)
		if _, err := eng.ScanWeeklyAnomalies(context.Background(), "user-1"); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		for _, ev := range events {
			if ev.Causal == nil || ev.Causal.PlatformBehaviour != "algorithm change suspected" {
				t.Errorf("causal reconstruction not attached: %+v", ev.Causal)
			}
		}
	})

	t.Run("reasoner failure degrades to nil causal", func(t *testing.T) {
		src := &MockTransactionSource{
			QueryTransactionsByUserFunc: func(ctx context.Context, userID string, since, until time.Time, limit int) ([]domain.Transaction, error) {
				return scanFixture(), nil
			},
		}
		var events []*domain.AutopsyEvent
		aut := &MockAutopsyStore{
			InsertAutopsyEventFunc: func(ctx context.Context, event *domain.AutopsyEvent) error {
				events = append(events, event)
				return nil
			},
		}
		reasoner := &MockCausalReasoner{
			ReconstructCauseFunc: func(ctx context.Context, req engine.CausalRequest) (*domain.CausalReconstruction, error) {
				return nil, errors.New("model overloaded")
			},
		}

		eng := newEngine(src, &MockInsightStore{}, aut, reasoner, nil)
		summary, err := eng.ScanWeeklyAnomalies(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("reasoner failure must not fail the scan: %v", err)
		}
		if summary.EventsCreated != 4 {
			t.Errorf("expected 4 events despite reasoner failures, got %d", summary.EventsCreated)
		}
		for _, ev := range events {
			if ev.Causal != nil {
				t.Errorf("expected nil causal after reasoner failure, got %+v", ev.Causal)
			}
		}
	})

	t.Run("spikes are typed as revenue_spike", func(t *testing.T) {
		// One platform rising 100 -> 1000 across two weeks, padded with a
		// steady platform for the history guard.
		var txns []domain.Transaction
		w1 := time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)
		w2 := time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC)
		txns = append(txns, tx("twitch", "subscription", 100, w1), tx("twitch", "subscription", 1000, w2))
		for i := 0; i < 10; i++ {
			txns = append(txns, tx("patreon", "membership", 50, w1.AddDate(0, 0, i)))
		}

		src := &MockTransactionSource{
			QueryTransactionsByUserFunc: func(ctx context.Context, userID string, since, until time.Time, limit int) ([]domain.Transaction, error) {
				return txns, nil
			},
		}
		var events []*domain.AutopsyEvent
		aut := &MockAutopsyStore{
			InsertAutopsyEventFunc: func(ctx context.Context, event *domain.AutopsyEvent) error {
				events = append(events, event)
				return nil
			},
		}

		eng := newEngine(src, &MockInsightStore{}, aut, nil, nil)
		if _, err := eng.ScanWeeklyAnomalies(context.Background(), "user-1"); err != nil {
			t.Fatalf("scan failed: %v", err)
		}

		var spikes int
		for _, ev := range events {
			if ev.Type == domain.EventRevenueSpike {
				spikes++
				if ev.Platform != "twitch" {
					t.Errorf("spike attributed to %s", ev.Platform)
				}
				if ev.ImpactAmount != 900 {
					t.Errorf("expected impact amount 900, got %v", ev.ImpactAmount)
				}
			}
		}
		if spikes != 1 {
			t.Errorf("expected exactly one spike event, got %d", spikes)
		}
	})
}
