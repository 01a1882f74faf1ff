package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/creator-ledger/internal/domain"
)

const (
	projectID = "creator-ledger-prod"
	datasetID = "creator_ledger"

	transactionsTable  = "revenue_transactions"
	insightsTable      = "insights"
	autopsyEventsTable = "autopsy_events"
	auditLogTable      = "audit_log"
)

// QueryTransactionsByUser queries one user's revenue transactions within
// [since, until], newest first, capped at limit rows.
func QueryTransactionsByUser(ctx context.Context, userID string, since, until time.Time, limit int) ([]domain.Transaction, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByUser: bigquery client: %w", err)
	}
	defer client.Close()

	return QueryTransactionsByUserWithClient(ctx, client, userID, since, until, limit)
}

// QueryTransactionsByUserWithClient is QueryTransactionsByUser on a shared
// client.
func QueryTransactionsByUserWithClient(ctx context.Context, client *bigquery.Client, userID string, since, until time.Time, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 1000
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			user_id,
			platform,
			category,
			amount,
			transaction_date,
			description,
			created_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE user_id = @user_id
		  AND transaction_date BETWEEN @start_date AND @end_date
		ORDER BY transaction_date DESC
		LIMIT @row_limit
	`, projectID, datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "start_date", Value: civil.DateOf(since)},
		{Name: "end_date", Value: civil.DateOf(until)},
		{Name: "row_limit", Value: int64(limit)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByUser: running query: %w", err)
	}

	var txns []domain.Transaction
	for {
		var row RevenueTransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByUser: reading row: %w", err)
		}
		txns = append(txns, row.ToDomain())
	}

	return txns, nil
}
