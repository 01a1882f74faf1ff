package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/creator-ledger/internal/domain"
)

// InsertInsight inserts one generated insight into creator_ledger.insights.
func InsertInsight(ctx context.Context, insight *domain.Insight) error {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("InsertInsight: bigquery client: %w", err)
	}
	defer client.Close()

	return InsertInsightWithClient(ctx, client, insight)
}

// InsertInsightWithClient is InsertInsight on a shared client.
func InsertInsightWithClient(ctx context.Context, client *bigquery.Client, insight *domain.Insight) error {
	row := NewInsightRow(insight, time.Now().UTC())

	table := client.DatasetInProject(projectID, datasetID).Table(insightsTable)
	if err := table.Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("InsertInsight: inserting row: %w", err)
	}
	return nil
}

// QueryInsightsByUser returns one user's stored insights created at or after
// since, newest first. Used by the Notion exporter.
func QueryInsightsByUser(ctx context.Context, userID string, since time.Time) ([]*InsightRow, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("QueryInsightsByUser: bigquery client: %w", err)
	}
	defer client.Close()

	return QueryInsightsByUserWithClient(ctx, client, userID, since)
}

// QueryInsightsByUserWithClient is QueryInsightsByUser on a shared client.
func QueryInsightsByUserWithClient(ctx context.Context, client *bigquery.Client, userID string, since time.Time) ([]*InsightRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			insight_id,
			user_id,
			insight_type,
			title,
			description,
			confidence,
			data,
			created_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE user_id = @user_id
		  AND created_ts >= @since
		ORDER BY created_ts DESC
	`, projectID, datasetID, insightsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "since", Value: since},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryInsightsByUser: running query: %w", err)
	}

	var rows []*InsightRow
	for {
		var row InsightRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryInsightsByUser: reading row: %w", err)
		}
		rows = append(rows, &row)
	}

	return rows, nil
}
