package engine

import (
	"context"
	"time"

	"github.com/dvloznov/creator-ledger/internal/domain"
)

// TransactionSource provides read-only access to a user's revenue
// transactions. Implementations must never be mutated by the engine.
type TransactionSource interface {
	// QueryTransactionsByUser returns up to limit transactions for the user
	// within [since, until], ordered by transaction date. limit <= 0 means
	// no limit.
	QueryTransactionsByUser(ctx context.Context, userID string, since, until time.Time, limit int) ([]domain.Transaction, error)
}

// InsightStore persists generated insights. Create-only.
type InsightStore interface {
	InsertInsight(ctx context.Context, insight *domain.Insight) error
}

// AutopsyStore persists autopsy events and exposes the batched prior-event
// lookup the weekly scanner needs.
type AutopsyStore interface {
	InsertAutopsyEvent(ctx context.Context, event *domain.AutopsyEvent) error

	// QueryRecentAutopsyEvents returns the user's events with a week start
	// at or after since. The scanner calls this exactly once per run.
	QueryRecentAutopsyEvents(ctx context.Context, userID string, since time.Time) ([]domain.AutopsyEvent, error)
}

// CausalRequest carries the context the reasoning service needs to explain
// one week-over-week swing.
type CausalRequest struct {
	UserID        string
	Platform      string
	WeekStart     time.Time
	PrevWeekTotal float64
	CurrWeekTotal float64
	ChangePercent float64 // signed, e.g. -42.5
	// RecentTransactions is a small sample (newest first) for the prompt.
	RecentTransactions []domain.Transaction
}

// CausalReasoner is the external reasoning service used to populate the
// causal reconstruction on new autopsy events. Calls are best-effort: any
// error degrades the event to a nil reconstruction and must not stop the
// scan. Implementations are expected to bound their own network timeouts;
// the engine additionally wraps each call in a deadline.
type CausalReasoner interface {
	ReconstructCause(ctx context.Context, req CausalRequest) (*domain.CausalReconstruction, error)
}

// AuditEntry is one audit-log record for a scan or generation run.
type AuditEntry struct {
	Action  string
	ActorID string
	Status  string // "success" or "failure"
	Details map[string]interface{}
}

// AuditLogger records run outcomes. Implementations must not fail the run;
// audit sinks swallow their own errors.
type AuditLogger interface {
	LogAudit(ctx context.Context, entry AuditEntry)
}
