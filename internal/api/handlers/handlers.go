package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/creator-ledger/internal/api/middleware"
	"github.com/dvloznov/creator-ledger/internal/engine"
	"github.com/dvloznov/creator-ledger/internal/jobs"
	"github.com/dvloznov/creator-ledger/internal/runarchive"
)

// InsightsHandler runs the engine synchronously for one user.
type InsightsHandler struct {
	engine   *engine.Engine
	archiver runarchive.Archiver // optional
	log      zerolog.Logger
}

// NewInsightsHandler creates a new insights handler. archiver may be nil to
// disable run-report archiving.
func NewInsightsHandler(eng *engine.Engine, archiver runarchive.Archiver, log zerolog.Logger) *InsightsHandler {
	return &InsightsHandler{
		engine:   eng,
		archiver: archiver,
		log:      log,
	}
}

// RunInsights handles POST /api/users/{userID}/insights/run
func (h *InsightsHandler) RunInsights(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	startedAt := time.Now().UTC()

	summary, err := h.engine.GenerateInsights(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Insight generation failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Insight generation failed")
		return
	}

	h.archive(r, &runarchive.RunReport{
		RunID:             uuid.New().String(),
		UserID:            userID,
		Mode:              string(jobs.RunModeGenerateInsights),
		StartedAt:         startedAt,
		FinishedAt:        time.Now().UTC(),
		InsightsGenerated: summary.InsightsGenerated,
		Insights:          summary.Insights,
	})

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// ScanAnomalies handles POST /api/users/{userID}/anomalies/scan
func (h *InsightsHandler) ScanAnomalies(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	startedAt := time.Now().UTC()

	summary, err := h.engine.ScanWeeklyAnomalies(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Anomaly scan failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Anomaly scan failed")
		return
	}

	h.archive(r, &runarchive.RunReport{
		RunID:         uuid.New().String(),
		UserID:        userID,
		Mode:          string(jobs.RunModeScanAnomalies),
		StartedAt:     startedAt,
		FinishedAt:    time.Now().UTC(),
		EventsCreated: summary.EventsCreated,
	})

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// archive stores the run report best-effort; archiving never fails a request.
func (h *InsightsHandler) archive(r *http.Request, report *runarchive.RunReport) {
	if h.archiver == nil {
		return
	}
	uri, err := h.archiver.ArchiveRunReport(r.Context(), report)
	if err != nil {
		h.log.Warn().Err(err).Str("run_id", report.RunID).Msg("Failed to archive run report")
		return
	}
	h.log.Info().Str("run_id", report.RunID).Str("uri", uri).Msg("Archived run report")
}

// JobsHandler exposes the async engine-run queue.
type JobsHandler struct {
	store     jobs.JobStore
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, publisher jobs.Publisher, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store:     store,
		publisher: publisher,
		log:       log,
	}
}

// CreateJob handles POST /api/jobs
func (h *JobsHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Mode   string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	mode := jobs.RunMode(req.Mode)
	if mode != jobs.RunModeGenerateInsights && mode != jobs.RunModeScanAnomalies {
		middleware.WriteError(w, http.StatusBadRequest, "mode must be generate_insights or scan_anomalies")
		return
	}

	job := &jobs.EngineRunJob{
		JobID:  uuid.New().String(),
		UserID: req.UserID,
		Mode:   mode,
	}
	if err := h.publisher.PublishEngineRun(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to enqueue engine run")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, job)
}

// GetJob handles GET /api/jobs/{jobID}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := jobs.JobFilter{
		UserID: r.URL.Query().Get("user_id"),
		Status: jobs.JobStatus(r.URL.Query().Get("status")),
		Limit:  50,
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// HealthHandler reports liveness.
type HealthHandler struct{}

// Health handles GET /healthz
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
