package rca

import (
	"fmt"
	"math"
	"sort"

	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
)

// Anomaly detection defaults.
const (
	// MinAnomalyHistory is the smallest sample a verdict is based on.
	MinAnomalyHistory = 10

	// fullConfidenceHistory is the sample size at which confidence
	// reaches 1.0.
	fullConfidenceHistory = 100

	// zeroStdDevEpsilon separates "equal to the mean" from "deviates"
	// when the history has no spread.
	zeroStdDevEpsilon = 1e-9

	defaultZScoreSensitivity    = 2.0
	defaultIQRSensitivity       = 1.5
	defaultMovingAvgSensitivity = 2.0
	defaultMovingAvgWindow      = 10
)

// AnomalyDetectorConfig tunes the anomaly detector. DefaultMethod is
// used when a request does not name one.
type AnomalyDetectorConfig struct {
	MinHistory    int
	Window        int
	DefaultMethod string
}

// DefaultAnomalyDetectorConfig returns the detection defaults.
func DefaultAnomalyDetectorConfig() AnomalyDetectorConfig {
	return AnomalyDetectorConfig{
		MinHistory:    MinAnomalyHistory,
		Window:        defaultMovingAvgWindow,
		DefaultMethod: string(models.AnomalyMethodZScore),
	}
}

func (c AnomalyDetectorConfig) withDefaults() AnomalyDetectorConfig {
	if c.MinHistory <= 0 {
		c.MinHistory = MinAnomalyHistory
	}
	if c.Window <= 0 {
		c.Window = defaultMovingAvgWindow
	}
	if c.DefaultMethod == "" {
		c.DefaultMethod = string(models.AnomalyMethodZScore)
	}
	return c
}

// AnomalyDetector decides whether a value is anomalous relative to a
// numeric history, using z-score, IQR fences, or a moving average.
type AnomalyDetector struct {
	cfg AnomalyDetectorConfig
	log logging.Logger
}

// NewAnomalyDetector builds an anomaly detector.
func NewAnomalyDetector(cfg AnomalyDetectorConfig, log logging.Logger) *AnomalyDetector {
	if log == nil {
		log = logging.NewNop()
	}
	return &AnomalyDetector{cfg: cfg.withDefaults(), log: log}
}

// Check evaluates one value against its history. Histories smaller
// than the minimum always yield a non-anomaly with zero confidence.
func (d *AnomalyDetector) Check(req models.AnomalyCheckRequest) (models.AnomalyResult, error) {
	method := models.AnomalyMethod(req.Method)
	if method == "" {
		method = models.AnomalyMethod(d.cfg.DefaultMethod)
	}

	result := models.AnomalyResult{
		Method:      string(method),
		Value:       req.Value,
		HistorySize: len(req.History),
	}

	if len(req.History) < d.cfg.MinHistory {
		result.Reason = "insufficient_data"
		return result, nil
	}
	result.Confidence = historyConfidence(len(req.History))

	switch method {
	case models.AnomalyMethodZScore:
		d.checkZScore(req, &result)
	case models.AnomalyMethodIQR:
		d.checkIQR(req, &result)
	case models.AnomalyMethodMovingAverage:
		d.checkMovingAverage(req, &result)
	default:
		return models.AnomalyResult{}, fmt.Errorf("unsupported anomaly method %q", req.Method)
	}

	return result, nil
}

// historyConfidence ramps linearly with sample size, reaching 1.0 at
// fullConfidenceHistory points.
func historyConfidence(n int) float64 {
	conf := float64(n) / float64(fullConfidenceHistory)
	if conf > 1 {
		conf = 1
	}
	return conf
}

func (d *AnomalyDetector) checkZScore(req models.AnomalyCheckRequest, result *models.AnomalyResult) {
	sensitivity := req.Sensitivity
	if sensitivity <= 0 {
		sensitivity = defaultZScoreSensitivity
	}

	mean, stddev := meanStdDev(req.History)
	result.Baseline = mean

	if stddev == 0 {
		if math.Abs(req.Value-mean) > zeroStdDevEpsilon {
			result.IsAnomaly = true
			result.Score = 1
			result.Reason = fmt.Sprintf("value %.4g deviates from a constant history of %.4g", req.Value, mean)
		} else {
			result.Reason = "value matches a constant history"
		}
		return
	}

	z := math.Abs(req.Value-mean) / stddev
	result.Score = math.Min(1, z/5)
	if z > sensitivity {
		result.IsAnomaly = true
		result.Reason = fmt.Sprintf("z-score %.2f exceeds sensitivity %.2f", z, sensitivity)
	} else {
		result.Reason = fmt.Sprintf("z-score %.2f within sensitivity %.2f", z, sensitivity)
	}
}

func (d *AnomalyDetector) checkIQR(req models.AnomalyCheckRequest, result *models.AnomalyResult) {
	sensitivity := req.Sensitivity
	if sensitivity <= 0 {
		sensitivity = defaultIQRSensitivity
	}

	sorted := append([]float64(nil), req.History...)
	sort.Float64s(sorted)
	n := len(sorted)

	q1 := sorted[n/4]
	q3 := sorted[3*n/4]
	iqr := q3 - q1
	result.Baseline = median(sorted)

	lower := q1 - sensitivity*iqr
	upper := q3 + sensitivity*iqr

	if req.Value >= lower && req.Value <= upper {
		result.Reason = fmt.Sprintf("value %.4g within [%.4g, %.4g]", req.Value, lower, upper)
		return
	}

	result.IsAnomaly = true
	dist := lower - req.Value
	if req.Value > upper {
		dist = req.Value - upper
	}
	if iqr == 0 {
		result.Score = 1
	} else {
		result.Score = math.Min(1, dist/(3*iqr))
	}
	result.Reason = fmt.Sprintf("value %.4g outside [%.4g, %.4g]", req.Value, lower, upper)
}

func (d *AnomalyDetector) checkMovingAverage(req models.AnomalyCheckRequest, result *models.AnomalyResult) {
	sensitivity := req.Sensitivity
	if sensitivity <= 0 {
		sensitivity = defaultMovingAvgSensitivity
	}
	window := req.Window
	if window <= 0 {
		window = d.cfg.Window
	}

	history := req.History
	if len(history) > window {
		history = history[len(history)-window:]
	}

	mean, stddev := meanStdDev(history)
	result.Baseline = mean

	if stddev == 0 {
		if math.Abs(req.Value-mean) > zeroStdDevEpsilon {
			result.IsAnomaly = true
			result.Score = 1
			result.Reason = fmt.Sprintf("value %.4g deviates from a flat moving average of %.4g", req.Value, mean)
		} else {
			result.Reason = "value matches a flat moving average"
		}
		return
	}

	z := math.Abs(req.Value-mean) / stddev
	result.Score = math.Min(1, z/5)
	if z > sensitivity {
		result.IsAnomaly = true
		result.Reason = fmt.Sprintf("deviation %.2f standard deviations from the %d-point moving average", z, len(history))
	} else {
		result.Reason = fmt.Sprintf("within %.2f standard deviations of the %d-point moving average", z, len(history))
	}
}

func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

// median of an already sorted slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
