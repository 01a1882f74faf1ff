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

// InsertAutopsyEvent inserts one autopsy event into
// creator_ledger.autopsy_events. Events are create-only; status transitions
// happen through the review UI, never here.
func InsertAutopsyEvent(ctx context.Context, event *domain.AutopsyEvent) error {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("InsertAutopsyEvent: bigquery client: %w", err)
	}
	defer client.Close()

	return InsertAutopsyEventWithClient(ctx, client, event)
}

// InsertAutopsyEventWithClient is InsertAutopsyEvent on a shared client.
func InsertAutopsyEventWithClient(ctx context.Context, client *bigquery.Client, event *domain.AutopsyEvent) error {
	row := NewAutopsyEventRow(event, time.Now().UTC())

	table := client.DatasetInProject(projectID, datasetID).Table(autopsyEventsTable)
	if err := table.Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("InsertAutopsyEvent: inserting row: %w", err)
	}
	return nil
}

// QueryRecentAutopsyEvents returns one user's events with a week start at or
// after since. The weekly scanner calls this once per run to build its
// dedup index.
func QueryRecentAutopsyEvents(ctx context.Context, userID string, since time.Time) ([]domain.AutopsyEvent, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("QueryRecentAutopsyEvents: bigquery client: %w", err)
	}
	defer client.Close()

	return QueryRecentAutopsyEventsWithClient(ctx, client, userID, since)
}

// QueryRecentAutopsyEventsWithClient is QueryRecentAutopsyEvents on a shared
// client.
func QueryRecentAutopsyEventsWithClient(ctx context.Context, client *bigquery.Client, userID string, since time.Time) ([]domain.AutopsyEvent, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			event_id,
			user_id,
			event_type,
			severity,
			detected_at,
			week_start,
			platform,
			impact_percentage,
			impact_amount,
			causal_reconstruction,
			status,
			created_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE user_id = @user_id
		  AND week_start >= @since
		ORDER BY week_start DESC
	`, projectID, datasetID, autopsyEventsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "since", Value: civil.DateOf(since)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryRecentAutopsyEvents: running query: %w", err)
	}

	var events []domain.AutopsyEvent
	for {
		var row AutopsyEventRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryRecentAutopsyEvents: reading row: %w", err)
		}
		events = append(events, row.ToDomain())
	}

	return events, nil
}
