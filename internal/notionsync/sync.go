// Package notionsync exports generated insights to a creator-facing Notion
// database. Insights are append-only on our side, so the sync only creates
// pages for insights Notion has not seen yet, keyed by insight ID.
package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/creator-ledger/internal/logger"
)

// SyncInsights exports one user's insights created at or after since into
// the Notion database. Already-exported insights are skipped; dryRun logs
// what would happen without touching Notion.
func SyncInsights(ctx context.Context, source InsightSource, notionClient NotionService, notionDBID, userID string, since time.Time, dryRun bool) error {
	log := logger.FromContext(ctx)

	log.Info().
		Str("user_id", userID).
		Time("since", since).
		Bool("dry_run", dryRun).
		Msg("Starting insight sync to Notion")

	insights, err := source.QueryInsightsByUser(ctx, userID, since)
	if err != nil {
		return fmt.Errorf("failed to query insights: %w", err)
	}

	log.Info().Int("insight_count", len(insights)).Msg("Retrieved insights from BigQuery")

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return fmt.Errorf("failed to query Notion pages: %w", err)
	}

	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	existingInsightIDs := make(map[string]bool)
	for _, page := range notionPages {
		if id := extractInsightID(page); id != "" {
			existingInsightIDs[id] = true
		}
	}

	var created, skipped int
	for _, row := range insights {
		if existingInsightIDs[row.InsightID] {
			skipped++
			continue
		}

		if dryRun {
			log.Info().
				Str("insight_id", row.InsightID).
				Str("insight_type", row.InsightType).
				Msg("[DRY RUN] Would create Notion page")
			created++
			continue
		}

		if _, err := notionClient.CreatePage(ctx, notionDBID, InsightToNotionProperties(row)); err != nil {
			log.Warn().
				Err(err).
				Str("insight_id", row.InsightID).
				Msg("Failed to create Notion page")
			continue
		}
		created++
	}

	log.Info().
		Int("created", created).
		Int("skipped", skipped).
		Msg("Insight sync to Notion complete")

	return nil
}

// queryAllNotionPages pages through the whole database 100 results at a time.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
