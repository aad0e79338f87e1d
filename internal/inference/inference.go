// Package inference runs a pre-trained classification model artifact against a
// preprocessed image. The model itself is opaque: engines only feed pixels in
// and turn the raw output scores into a ranked label list.
package inference

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
)

var (
	// ErrEngineUnavailable is returned when the artifact needs an engine that
	// was not compiled into this binary.
	ErrEngineUnavailable = errors.New("inference engine not available in this build")
	// ErrUnsupportedArtifact is returned for artifact types no engine handles.
	ErrUnsupportedArtifact = errors.New("unsupported model artifact")
	// ErrInvalidArtifact is returned when an artifact exists but cannot be used.
	ErrInvalidArtifact = errors.New("invalid model artifact")
	// ErrInvalidOptions is returned for option combinations an engine rejects.
	ErrInvalidOptions = errors.New("invalid classifier options")
)

// Category is one labeled score produced by a forward pass.
type Category struct {
	Index int     `json:"index"`
	Label string  `json:"label"`
	Score float32 `json:"score"`
}

// Options configure how an engine is created and how its output is ranked.
type Options struct {
	ScoreThreshold float32
	MaxResults     int
	NumThreads     int
}

// Validate rejects option combinations no engine accepts.
func (o Options) Validate() error {
	switch {
	case o.ScoreThreshold < 0 || o.ScoreThreshold > 1:
		return fmt.Errorf("%w: score threshold %v outside [0,1]", ErrInvalidOptions, o.ScoreThreshold)
	case o.MaxResults <= 0:
		return fmt.Errorf("%w: max results must be positive, got %d", ErrInvalidOptions, o.MaxResults)
	case o.NumThreads <= 0:
		return fmt.Errorf("%w: thread count must be positive, got %d", ErrInvalidOptions, o.NumThreads)
	}
	return nil
}

// Engine executes a loaded model. Implementations are not safe for
// concurrent use.
type Engine interface {
	// Classify runs a single forward pass and returns categories ranked and
	// filtered according to the engine's Options.
	Classify(img *image.RGBA) ([]Category, error)
	Close() error
}

// Loader creates an Engine for the artifact at path.
type Loader func(path string, opts Options) (Engine, error)

// Load picks an engine by artifact extension and loads the model with it.
// Only TensorFlow Lite artifacts are supported.
func Load(path string, opts Options) (Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".tflite":
		return loadTFLite(path, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedArtifact, filepath.Base(path))
	}
}
