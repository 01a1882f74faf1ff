package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/creator-ledger/internal/domain"
)

// BigQueryInsightRepository is the concrete store behind the engine's
// TransactionSource, InsightStore and AutopsyStore ports. It holds one
// shared BigQuery client so a whole engine run reuses a single connection.
type BigQueryInsightRepository struct {
	client *bigquery.Client
}

// NewBigQueryInsightRepository creates a repository with a shared client.
func NewBigQueryInsightRepository(ctx context.Context) (*BigQueryInsightRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryInsightRepository: creating client: %w", err)
	}
	return &BigQueryInsightRepository{client: client}, nil
}

// Close releases the underlying client. Call when the repository is no
// longer needed.
func (r *BigQueryInsightRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// QueryTransactionsByUser delegates to the shared-client query function.
func (r *BigQueryInsightRepository) QueryTransactionsByUser(ctx context.Context, userID string, since, until time.Time, limit int) ([]domain.Transaction, error) {
	return QueryTransactionsByUserWithClient(ctx, r.client, userID, since, until, limit)
}

// InsertInsight delegates to the shared-client insert function.
func (r *BigQueryInsightRepository) InsertInsight(ctx context.Context, insight *domain.Insight) error {
	return InsertInsightWithClient(ctx, r.client, insight)
}

// InsertAutopsyEvent delegates to the shared-client insert function.
func (r *BigQueryInsightRepository) InsertAutopsyEvent(ctx context.Context, event *domain.AutopsyEvent) error {
	return InsertAutopsyEventWithClient(ctx, r.client, event)
}

// QueryRecentAutopsyEvents delegates to the shared-client query function.
func (r *BigQueryInsightRepository) QueryRecentAutopsyEvents(ctx context.Context, userID string, since time.Time) ([]domain.AutopsyEvent, error) {
	return QueryRecentAutopsyEventsWithClient(ctx, r.client, userID, since)
}

// QueryInsightsByUser delegates to the shared-client query function.
func (r *BigQueryInsightRepository) QueryInsightsByUser(ctx context.Context, userID string, since time.Time) ([]*InsightRow, error) {
	return QueryInsightsByUserWithClient(ctx, r.client, userID, since)
}

// InsertAuditEntry delegates to the shared-client insert function.
func (r *BigQueryInsightRepository) InsertAuditEntry(ctx context.Context, action, actorID, status string, details map[string]interface{}) error {
	return InsertAuditEntryWithClient(ctx, r.client, action, actorID, status, details)
}
