// Package classifier wraps a pre-trained image classification model and turns
// an image reference into a ranked, thresholded label list.
//
// A Service allows at most one classification in flight; concurrent callers
// are serialized.
package classifier

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/cancer-check/internal/imageprocessor"
	"github.com/example/cancer-check/internal/inference"
	"github.com/example/cancer-check/internal/logging"
)

// Config is fixed for the lifetime of a Service; build a new Service to change it.
type Config struct {
	ScoreThreshold float32
	MaxResults     int
	ModelName      string
	NumThreads     int
}

// DefaultConfig returns the general-purpose settings.
func DefaultConfig() Config {
	return Config{
		ScoreThreshold: 0.1,
		MaxResults:     3,
		ModelName:      "cancer_classification.tflite",
		NumThreads:     4,
	}
}

func (c Config) options() inference.Options {
	return inference.Options{
		ScoreThreshold: c.ScoreThreshold,
		MaxResults:     c.MaxResults,
		NumThreads:     c.NumThreads,
	}
}

// State tracks whether the model handle is usable.
type State int

const (
	// Uninitialized means loading failed once; the next Classify retries.
	Uninitialized State = iota
	// Ready means the model is loaded.
	Ready
	// FailedPermanently means the retry failed too; Classify fails fast.
	FailedPermanently
	closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case FailedPermanently:
		return "failed"
	default:
		return "closed"
	}
}

// Result is a successful classification.
type Result struct {
	Classifications []inference.Category
	// InferenceTime covers the forward pass only, not decoding or resizing.
	InferenceTime time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithLoader replaces the model loader.
func WithLoader(loader inference.Loader) Option {
	return func(s *Service) { s.loader = loader }
}

// WithClock replaces the clock used to time inference.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service owns one loaded model handle.
type Service struct {
	cfg       Config
	modelPath string
	loader    inference.Loader
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.Mutex
	state  State
	engine inference.Engine
}

// New builds a Service and tries to load the model from assetsDir. It always
// returns a usable Service. A non-nil error matches ErrModelInitialization
// and means loading failed; the Service then retries once on the next
// Classify call.
func New(cfg Config, assetsDir string, logger *zap.Logger, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:       cfg,
		modelPath: filepath.Join(assetsDir, cfg.ModelName),
		loader:    inference.Load,
		logger:    logger.Named("classifier"),
		now:       time.Now,
		state:     Uninitialized,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s, s.setup()
}

// setup loads the model. Callers hold s.mu.
func (s *Service) setup() error {
	engine, err := s.loader(s.modelPath, s.cfg.options())
	if err != nil {
		s.logger.Error("model initialization failed",
			zap.String("model", s.modelPath),
			zap.Stringer("state", s.state),
			zap.Error(err))
		return &initError{cause: err}
	}
	s.engine = engine
	s.state = Ready
	s.logger.Info("model loaded",
		zap.String("model", s.modelPath),
		zap.Float32("score_threshold", s.cfg.ScoreThreshold),
		zap.Int("max_results", s.cfg.MaxResults),
		zap.Int("threads", s.cfg.NumThreads))
	return nil
}

// State reports the current model state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Config returns the configuration the Service was built with.
func (s *Service) Config() Config { return s.cfg }

// Classify decodes src, resizes it to the model input, and runs one forward
// pass. It returns either a Result or an error, never both. Errors match
// ErrModelInitialization or are *ImageProcessingError.
func (s *Service) Classify(ctx context.Context, src imageprocessor.Source) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opLogger := logging.WithOperation(s.logger, "classifier.classify", logging.RequestIDFromContext(ctx))

	switch s.state {
	case Uninitialized:
		if err := s.setup(); err != nil {
			s.state = FailedPermanently
			return nil, err
		}
	case FailedPermanently:
		return nil, &initError{cause: fmt.Errorf("model %s unavailable after retry", s.modelPath)}
	case closed:
		return nil, &initError{cause: fmt.Errorf("classifier closed")}
	}

	img, err := imageprocessor.Preprocess(src)
	if err != nil {
		opLogger.Warn("image preprocessing failed", zap.Stringer("image", src), zap.Error(err))
		return nil, &ImageProcessingError{Err: err}
	}

	start := s.now()
	categories, err := s.engine.Classify(img)
	elapsed := s.now().Sub(start)
	if err != nil {
		opLogger.Error("inference failed", zap.Stringer("image", src), zap.Error(err))
		return nil, &ImageProcessingError{Err: err}
	}
	if elapsed < 0 {
		elapsed = 0
	}

	opLogger.Debug("image classified",
		zap.Stringer("image", src),
		zap.Int("categories", len(categories)),
		zap.Duration("inference_time", elapsed))
	return &Result{Classifications: categories, InferenceTime: elapsed}, nil
}

// Close releases the model handle. Subsequent Classify calls fail.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.engine != nil {
		err = s.engine.Close()
		s.engine = nil
	}
	s.state = closed
	return err
}
