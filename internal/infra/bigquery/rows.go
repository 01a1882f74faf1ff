package bigquery

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/creator-ledger/internal/domain"
)

// RevenueTransactionRow represents one row of creator_ledger.revenue_transactions.
// Amounts are stored as FLOAT64: the engine aggregates gross revenue and does
// not need NUMERIC exactness.
type RevenueTransactionRow struct {
	TransactionID string `bigquery:"transaction_id" json:"transaction_id"`

	UserID   string `bigquery:"user_id" json:"user_id"`
	Platform string `bigquery:"platform" json:"platform"`
	Category string `bigquery:"category" json:"category"`

	Amount          float64    `bigquery:"amount" json:"amount"`
	TransactionDate civil.Date `bigquery:"transaction_date" json:"transaction_date"`

	Description bigquery.NullString `bigquery:"description" json:"description,omitempty"`

	CreatedTS time.Time `bigquery:"created_ts" json:"created_ts"`
}

// ToDomain maps a stored row onto the engine's transaction type.
func (r *RevenueTransactionRow) ToDomain() domain.Transaction {
	return domain.Transaction{
		UserID:      r.UserID,
		Platform:    r.Platform,
		Category:    r.Category,
		Amount:      r.Amount,
		Date:        r.TransactionDate.In(time.UTC),
		Description: r.Description.StringVal,
	}
}

// InsightRow represents one row of creator_ledger.insights.
type InsightRow struct {
	InsightID   string  `bigquery:"insight_id" json:"insight_id"`
	UserID      string  `bigquery:"user_id" json:"user_id"`
	InsightType string  `bigquery:"insight_type" json:"insight_type"`
	Title       string  `bigquery:"title" json:"title"`
	Description string  `bigquery:"description" json:"description"`
	Confidence  float64 `bigquery:"confidence" json:"confidence"`

	Data bigquery.NullJSON `bigquery:"data" json:"data,omitempty"`

	CreatedTS time.Time `bigquery:"created_ts" json:"created_ts"`
}

// NewInsightRow maps a generated insight onto its storage row.
func NewInsightRow(ins *domain.Insight, now time.Time) *InsightRow {
	row := &InsightRow{
		InsightID:   ins.InsightID,
		UserID:      ins.UserID,
		InsightType: string(ins.Type),
		Title:       ins.Title,
		Description: ins.Description,
		Confidence:  ins.Confidence,
		CreatedTS:   now,
	}
	if ins.Data != nil {
		if b, err := json.Marshal(ins.Data); err == nil {
			row.Data = bigquery.NullJSON{JSONVal: string(b), Valid: true}
		}
	}
	return row
}

// AutopsyEventRow represents one row of creator_ledger.autopsy_events.
type AutopsyEventRow struct {
	EventID   string `bigquery:"event_id" json:"event_id"`
	UserID    string `bigquery:"user_id" json:"user_id"`
	EventType string `bigquery:"event_type" json:"event_type"`
	Severity  string `bigquery:"severity" json:"severity"`

	DetectedAt time.Time  `bigquery:"detected_at" json:"detected_at"`
	WeekStart  civil.Date `bigquery:"week_start" json:"week_start"`
	Platform   string     `bigquery:"platform" json:"platform"`

	ImpactPercentage float64 `bigquery:"impact_percentage" json:"impact_percentage"`
	ImpactAmount     float64 `bigquery:"impact_amount" json:"impact_amount"`

	CausalReconstruction bigquery.NullJSON `bigquery:"causal_reconstruction" json:"causal_reconstruction,omitempty"`

	Status string `bigquery:"status" json:"status"`

	CreatedTS time.Time `bigquery:"created_ts" json:"created_ts"`
}

// NewAutopsyEventRow maps an autopsy event onto its storage row.
func NewAutopsyEventRow(ev *domain.AutopsyEvent, now time.Time) *AutopsyEventRow {
	row := &AutopsyEventRow{
		EventID:          ev.EventID,
		UserID:           ev.UserID,
		EventType:        string(ev.Type),
		Severity:         string(ev.Severity),
		DetectedAt:       ev.DetectedAt,
		WeekStart:        civil.DateOf(ev.WeekStart),
		Platform:         ev.Platform,
		ImpactPercentage: ev.ImpactPercentage,
		ImpactAmount:     ev.ImpactAmount,
		Status:           string(ev.Status),
		CreatedTS:        now,
	}
	if ev.Causal != nil {
		if b, err := json.Marshal(ev.Causal); err == nil {
			row.CausalReconstruction = bigquery.NullJSON{JSONVal: string(b), Valid: true}
		}
	}
	return row
}

// ToDomain maps a stored event row back onto the domain type. BigQuery hands
// JSON columns back as strings; a missing or malformed causal payload
// degrades to nil rather than failing the read.
func (r *AutopsyEventRow) ToDomain() domain.AutopsyEvent {
	ev := domain.AutopsyEvent{
		EventID:          r.EventID,
		UserID:           r.UserID,
		Type:             domain.AutopsyEventType(r.EventType),
		Severity:         domain.Severity(r.Severity),
		DetectedAt:       r.DetectedAt,
		WeekStart:        r.WeekStart.In(time.UTC),
		Platform:         r.Platform,
		ImpactPercentage: r.ImpactPercentage,
		ImpactAmount:     r.ImpactAmount,
		Status:           domain.AutopsyStatus(r.Status),
	}
	if r.CausalReconstruction.Valid {
		var causal domain.CausalReconstruction
		if err := json.Unmarshal([]byte(r.CausalReconstruction.JSONVal), &causal); err == nil {
			ev.Causal = &causal
		}
	}
	return ev
}

// AuditRow represents one row of creator_ledger.audit_log.
type AuditRow struct {
	AuditID string `bigquery:"audit_id" json:"audit_id"`
	Action  string `bigquery:"action" json:"action"`
	ActorID string `bigquery:"actor_id" json:"actor_id"`
	Status  string `bigquery:"status" json:"status"`

	Details bigquery.NullJSON `bigquery:"details" json:"details,omitempty"`

	CreatedTS time.Time `bigquery:"created_ts" json:"created_ts"`
}
