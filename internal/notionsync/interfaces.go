package notionsync

import (
	"context"
	"time"

	"github.com/jomei/notionapi"

	infra "github.com/dvloznov/creator-ledger/internal/infra/bigquery"
)

// NotionService defines the interface for interacting with Notion API.
// This interface enables mocking and testing of Notion operations.
type NotionService interface {
	// CreatePage creates a new page in a Notion database with the given properties.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)

	// UpdatePage updates an existing Notion page with the given properties.
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)

	// QueryDatabase queries a Notion database with the given filter.
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// InsightSource is the read side of the export; the BigQuery repository
// satisfies it.
type InsightSource interface {
	QueryInsightsByUser(ctx context.Context, userID string, since time.Time) ([]*infra.InsightRow, error)
}
