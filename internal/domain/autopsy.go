package domain

import (
	"time"
)

// AutopsyEventType classifies a recorded week-over-week revenue swing.
type AutopsyEventType string

const (
	EventRevenueDrop  AutopsyEventType = "revenue_drop"
	EventRevenueSpike AutopsyEventType = "revenue_spike"
)

// Severity buckets for autopsy events, monotonic in |percent change|.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AutopsyStatus is the review lifecycle of an event. The engine only ever
// creates events with StatusOpen; the terminal states are set by a human
// reviewer elsewhere.
type AutopsyStatus string

const (
	StatusOpen         AutopsyStatus = "open"
	StatusMitigated    AutopsyStatus = "mitigated"
	StatusIgnored      AutopsyStatus = "ignored"
	StatusAcceptedRisk AutopsyStatus = "accepted_risk"
)

// CausalReconstruction is the four-layer forensic narrative attached to an
// autopsy event when the reasoning service is available.
type CausalReconstruction struct {
	PlatformBehaviour   string `json:"platform_behaviour"`
	CreatorBehaviour    string `json:"creator_behaviour"`
	ExternalTiming      string `json:"external_timing"`
	HistoricalAnalogues string `json:"historical_analogues"`
}

// AutopsyEvent is a recorded, human-reviewable flag of a significant
// week-over-week revenue swing on one platform. Events are never deleted.
type AutopsyEvent struct {
	EventID          string
	UserID           string
	Type             AutopsyEventType
	Severity         Severity
	DetectedAt       time.Time
	WeekStart        time.Time // Monday of the ISO week the swing landed in
	Platform         string
	ImpactPercentage float64 // signed percent change week-over-week
	ImpactAmount     float64 // signed currency delta week-over-week
	// Causal is nil when the reasoning service was unavailable or failed;
	// the event is recorded either way.
	Causal *CausalReconstruction
	Status AutopsyStatus
}
