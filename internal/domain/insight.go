package domain

// InsightType identifies which detector produced an insight.
type InsightType string

const (
	InsightCashflowForecast  InsightType = "cashflow_forecast"
	InsightConcentrationRisk InsightType = "concentration_risk"
	InsightAnomalyDetection  InsightType = "anomaly_detection"
	InsightPricingSuggestion InsightType = "pricing_suggestion"
)

// Insight is one generated finding for a user. Insights are created once per
// engine run that detects the condition and are never mutated afterwards.
type Insight struct {
	InsightID string
	UserID    string
	Type      InsightType
	Title     string
	// Description is pre-rendered human-readable copy. Any platform- or
	// category-derived text in it is already HTML-escaped.
	Description string
	Confidence  float64 // in [0, 1]
	Data        map[string]interface{}
}

// PayoutPrediction is the per-platform element of a cashflow_forecast payload.
type PayoutPrediction struct {
	Platform           string  `json:"platform"`
	PredictedAmount    float64 `json:"predictedAmount"`
	ConfidenceInterval float64 `json:"confidenceInterval"` // 1.96 * stddev half-width
	PredictedDate      string  `json:"predictedDate"`      // YYYY-MM-DD
	Confidence         float64 `json:"confidence"`
}

// FlaggedTransaction is the per-transaction element of an anomaly_detection payload.
type FlaggedTransaction struct {
	Platform  string  `json:"platform"`
	Amount    float64 `json:"amount"`
	Date      string  `json:"date"`      // YYYY-MM-DD
	Deviation float64 `json:"deviation"` // percent relative to the global mean
}
