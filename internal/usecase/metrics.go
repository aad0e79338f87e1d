package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/example/cancer-check/internal/decision"
)

// MetricsSummary represents aggregated analysis insights since process start.
type MetricsSummary struct {
	TotalRequests             int64   `json:"total_requests"`
	ClassifiedRequests        int64   `json:"classified_requests"`
	FailedRequests            int64   `json:"failed_requests"`
	PositiveFindings          int64   `json:"positive_findings"`
	SuccessRate               float64 `json:"success_rate"`
	PositiveRate              float64 `json:"positive_rate"`
	AverageTopScore           float64 `json:"average_top_score"`
	AverageInferenceLatencyMs float64 `json:"average_inference_latency_ms"`
}

type metricsRecorder struct {
	mu         sync.Mutex
	total      int64
	classified int64
	failed     int64
	positives  int64
	scored     int64
	scoreSum   float64
	latencySum time.Duration
}

func (m *metricsRecorder) observe(kind decision.Kind, failed bool, topScore *float32, inference time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	if failed {
		m.failed++
		return
	}
	m.classified++
	m.latencySum += inference
	if kind == decision.Positive {
		m.positives++
	}
	if topScore != nil {
		m.scored++
		m.scoreSum += float64(*topScore)
	}
}

// GetMetricsSummary aggregates the analyses handled by this process.
func (uc *AnalysisUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := uc.metrics
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := &MetricsSummary{
		TotalRequests:      m.total,
		ClassifiedRequests: m.classified,
		FailedRequests:     m.failed,
		PositiveFindings:   m.positives,
	}
	if m.total > 0 {
		summary.SuccessRate = float64(m.classified) / float64(m.total)
	}
	if m.classified > 0 {
		summary.PositiveRate = float64(m.positives) / float64(m.classified)
		summary.AverageInferenceLatencyMs = float64(m.latencySum) / float64(time.Millisecond) / float64(m.classified)
	}
	if m.scored > 0 {
		summary.AverageTopScore = m.scoreSum / float64(m.scored)
	}
	return summary, nil
}
