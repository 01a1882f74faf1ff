package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
)

// InsertAuditEntry inserts one audit record into creator_ledger.audit_log.
func InsertAuditEntry(ctx context.Context, action, actorID, status string, details map[string]interface{}) error {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("InsertAuditEntry: bigquery client: %w", err)
	}
	defer client.Close()

	return InsertAuditEntryWithClient(ctx, client, action, actorID, status, details)
}

// InsertAuditEntryWithClient is InsertAuditEntry on a shared client.
func InsertAuditEntryWithClient(ctx context.Context, client *bigquery.Client, action, actorID, status string, details map[string]interface{}) error {
	row := &AuditRow{
		AuditID:   uuid.New().String(),
		Action:    action,
		ActorID:   actorID,
		Status:    status,
		CreatedTS: time.Now().UTC(),
	}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			row.Details = bigquery.NullJSON{JSONVal: string(b), Valid: true}
		}
	}

	table := client.DatasetInProject(projectID, datasetID).Table(auditLogTable)
	if err := table.Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("InsertAuditEntry: inserting row: %w", err)
	}
	return nil
}
