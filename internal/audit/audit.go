// Package audit records engine run outcomes. Every entry is mirrored to the
// structured log; entries are additionally persisted when a repository is
// attached. Audit sinks never fail a run: persistence errors are logged and
// swallowed.
package audit

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dvloznov/creator-ledger/internal/engine"
)

// Repository is the persistence half of the auditor, implemented by the
// BigQuery repository.
type Repository interface {
	InsertAuditEntry(ctx context.Context, action, actorID, status string, details map[string]interface{}) error
}

// Auditor implements engine.AuditLogger.
type Auditor struct {
	log  zerolog.Logger
	repo Repository
}

// New creates an auditor. repo may be nil for log-only auditing (tests, CLI
// dry runs).
func New(log zerolog.Logger, repo Repository) *Auditor {
	return &Auditor{log: log, repo: repo}
}

// LogAudit writes the entry to the log and, when configured, to the audit
// table.
func (a *Auditor) LogAudit(ctx context.Context, entry engine.AuditEntry) {
	evt := a.log.Info()
	if entry.Status == "failure" {
		evt = a.log.Error()
	}
	evt.
		Str("action", entry.Action).
		Str("actor_id", entry.ActorID).
		Str("status", entry.Status).
		Interface("details", entry.Details).
		Msg("Audit entry")

	if a.repo == nil {
		return
	}
	if err := a.repo.InsertAuditEntry(ctx, entry.Action, entry.ActorID, entry.Status, entry.Details); err != nil {
		a.log.Warn().Err(err).
			Str("action", entry.Action).
			Str("actor_id", entry.ActorID).
			Msg("Failed to persist audit entry")
	}
}
