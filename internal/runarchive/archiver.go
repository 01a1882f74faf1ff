// Package runarchive writes a JSON report of each engine run to Cloud
// Storage so finished runs can be inspected (and replayed into dashboards)
// without querying BigQuery.
package runarchive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/creator-ledger/internal/engine"
)

// RunReport is the archived summary of one engine invocation.
type RunReport struct {
	RunID  string `json:"run_id"`
	UserID string `json:"user_id"`
	Mode   string `json:"mode"` // "generate_insights" or "scan_anomalies"

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	InsightsGenerated int                 `json:"insights_generated"`
	EventsCreated     int                 `json:"events_created"`
	Insights          []engine.InsightRef `json:"insights,omitempty"`
}

// Archiver stores run reports. Implementations return the URI of the stored
// object.
type Archiver interface {
	ArchiveRunReport(ctx context.Context, report *RunReport) (string, error)
}

// GCSArchiver is the concrete Archiver writing to a GCS bucket. It assumes
// Application Default Credentials are configured.
type GCSArchiver struct {
	bucket string
}

// NewGCSArchiver creates an archiver targeting the given bucket.
func NewGCSArchiver(bucket string) *GCSArchiver {
	return &GCSArchiver{bucket: bucket}
}

// ArchiveRunReport marshals the report and uploads it under
// insight-runs/YYYY/MM/DD/<run-id>.json.
func (a *GCSArchiver) ArchiveRunReport(ctx context.Context, report *RunReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ArchiveRunReport: marshal report: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("ArchiveRunReport: create storage client: %w", err)
	}
	defer client.Close()

	objectName := reportObjectName(report)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := bytes.NewReader(data).WriteTo(w); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("ArchiveRunReport: write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("ArchiveRunReport: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", a.bucket, objectName), nil
}

// reportObjectName places reports under a date-partitioned prefix so bucket
// listings stay navigable.
func reportObjectName(report *RunReport) string {
	return fmt.Sprintf("insight-runs/%s/%s.json",
		report.StartedAt.UTC().Format("2006/01/02"), report.RunID)
}
