package models

// AnomalyMethod selects the statistical test the detector applies.
type AnomalyMethod string

// Anomaly detection methods.
const (
	AnomalyMethodZScore        AnomalyMethod = "zscore"
	AnomalyMethodIQR           AnomalyMethod = "iqr"
	AnomalyMethodMovingAverage AnomalyMethod = "moving_average"
)

// AnomalyCheckRequest asks whether value is anomalous against history.
// Method, sensitivity and window fall back to configured defaults when
// omitted.
type AnomalyCheckRequest struct {
	Value       float64   `json:"value"`
	History     []float64 `json:"history" binding:"required"`
	Method      string    `json:"method,omitempty"`
	Sensitivity float64   `json:"sensitivity,omitempty"`
	Window      int       `json:"window,omitempty"`
}

// AnomalyResult is the detector's decision plus its working.
type AnomalyResult struct {
	IsAnomaly   bool    `json:"is_anomaly"`
	Score       float64 `json:"score"`
	Confidence  float64 `json:"confidence"`
	Method      string  `json:"method"`
	Reason      string  `json:"reason,omitempty"`
	Baseline    float64 `json:"baseline"`
	Value       float64 `json:"value"`
	HistorySize int     `json:"history_size"`
}
