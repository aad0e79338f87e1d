package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/cancer-check/internal/classifier"
	"github.com/example/cancer-check/internal/decision"
	"github.com/example/cancer-check/internal/imageprocessor"
	"github.com/example/cancer-check/internal/logging"
)

// Classifier is the subset of classifier.Service the analysis flow needs.
type Classifier interface {
	Classify(ctx context.Context, src imageprocessor.Source) (*classifier.Result, error)
}

// AnalysisRequest carries one image to analyze.
type AnalysisRequest struct {
	CallerID  string
	ImageName string
	Image     []byte
}

// Analysis is the outcome of a completed request.
type Analysis struct {
	RequestID   string
	ImageDigest string
	Result      *classifier.Result
	Decision    decision.Decision
}

// AnalysisUseCase runs classification and applies the decision policy.
type AnalysisUseCase struct {
	classifier Classifier
	policy     decision.Policy
	stats      statsd.ClientInterface
	logger     *zap.Logger
	metrics    *metricsRecorder
}

// NewAnalysisUseCase constructs a new use case instance. A nil stats client
// disables StatsD emission.
func NewAnalysisUseCase(c Classifier, policy decision.Policy, stats statsd.ClientInterface, logger *zap.Logger) *AnalysisUseCase {
	if stats == nil {
		stats = &statsd.NoOpClient{}
	}
	return &AnalysisUseCase{
		classifier: c,
		policy:     policy,
		stats:      stats,
		logger:     logger.Named("analysis_usecase"),
		metrics:    &metricsRecorder{},
	}
}

// Analyze classifies the image and evaluates the top result. Classification
// failures are returned as errors wrapping classifier.ErrModelInitialization
// or *classifier.ImageProcessingError.
func (uc *AnalysisUseCase) Analyze(ctx context.Context, req AnalysisRequest) (*Analysis, error) {
	requestID := uuid.NewString()
	ctx = logging.ContextWithRequestID(ctx, requestID)
	opLogger := logging.WithOperation(uc.logger, "usecase.analyze", requestID)

	digest := sha1.Sum(req.Image)
	digestHex := hex.EncodeToString(digest[:])
	src := imageprocessor.BytesSource(req.ImageName, req.Image)

	started := time.Now()
	result, err := uc.classifier.Classify(ctx, src)
	outcome := uc.policy.Evaluate(result, err, src)
	uc.record(outcome, result, time.Since(started))

	if outcome.Err != nil {
		wrapped := logging.NewOperationError("usecase.classify", requestID, outcome.Err)
		opLogger.Error("classification failed",
			zap.String("caller_id", req.CallerID),
			zap.String("sha1", digestHex),
			zap.Error(wrapped))
		return nil, wrapped
	}

	fields := []zap.Field{
		zap.String("caller_id", req.CallerID),
		zap.String("sha1", digestHex),
		zap.Stringer("decision", outcome.Kind),
		zap.Duration("inference_time", result.InferenceTime),
	}
	if outcome.Finding != nil {
		fields = append(fields, zap.Float32("score", outcome.Finding.Score))
	}
	opLogger.Info("image analyzed", fields...)

	return &Analysis{
		RequestID:   requestID,
		ImageDigest: digestHex,
		Result:      result,
		Decision:    outcome,
	}, nil
}

func (uc *AnalysisUseCase) record(outcome decision.Decision, result *classifier.Result, total time.Duration) {
	tags := []string{"decision:" + outcome.Kind.String()}
	if outcome.Err != nil {
		tags = append(tags, "error:"+errorKind(outcome.Err))
	}
	uc.emit(uc.stats.Incr("analysis.requests", tags, 1))
	uc.emit(uc.stats.Timing("analysis.latency", total, tags, 1))

	var top *float32
	var inference time.Duration
	if result != nil {
		inference = result.InferenceTime
		uc.emit(uc.stats.Timing("classifier.inference_time", inference, nil, 1))
		if len(result.Classifications) > 0 {
			top = &result.Classifications[0].Score
		}
	}
	uc.metrics.observe(outcome.Kind, outcome.Err != nil, top, inference)
}

func (uc *AnalysisUseCase) emit(err error) {
	if err != nil {
		uc.logger.Debug("statsd emission failed", zap.Error(err))
	}
}

func errorKind(err error) string {
	var procErr *classifier.ImageProcessingError
	switch {
	case errors.Is(err, classifier.ErrModelInitialization):
		return "model_initialization"
	case errors.As(err, &procErr):
		return "image_processing"
	default:
		return "unknown"
	}
}
