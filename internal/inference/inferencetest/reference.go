// Package inferencetest provides a deterministic stand-in model for tests of
// packages that drive an inference.Engine. It reads a small JSON artifact and
// is never selected by inference.Load.
package inferencetest

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	"github.com/example/cancer-check/internal/inference"
)

// Format identifies the artifact layout.
const Format = "linear-v1"

// Artifact is a single dense layer over per-cell channel means, followed by
// softmax. Grid splits the input into Grid×Grid cells; each cell contributes
// R, G and B means scaled to [0,1].
type Artifact struct {
	Format  string      `json:"format"`
	Grid    int         `json:"grid"`
	Labels  []string    `json:"labels"`
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

// WriteArtifact stores a as JSON at dir/name and returns the path.
func WriteArtifact(dir, name string, a Artifact) (string, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	return path, os.WriteFile(path, payload, 0o600)
}

type engine struct {
	artifact Artifact
	opts     inference.Options
}

// Load satisfies inference.Loader.
func Load(path string, opts inference.Options) (inference.Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var artifact Artifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, fmt.Errorf("%w: %v", inference.ErrInvalidArtifact, err)
	}
	if err := artifact.validate(); err != nil {
		return nil, err
	}
	return &engine{artifact: artifact, opts: opts}, nil
}

func (a *Artifact) validate() error {
	if a.Format != Format {
		return fmt.Errorf("%w: format %q, want %q", inference.ErrInvalidArtifact, a.Format, Format)
	}
	if a.Grid <= 0 {
		a.Grid = 1
	}
	if len(a.Labels) == 0 {
		return fmt.Errorf("%w: no labels", inference.ErrInvalidArtifact)
	}
	if len(a.Weights) != len(a.Labels) {
		return fmt.Errorf("%w: %d weight rows for %d labels", inference.ErrInvalidArtifact, len(a.Weights), len(a.Labels))
	}
	if len(a.Bias) != 0 && len(a.Bias) != len(a.Labels) {
		return fmt.Errorf("%w: %d bias terms for %d labels", inference.ErrInvalidArtifact, len(a.Bias), len(a.Labels))
	}
	features := a.Grid * a.Grid * 3
	for i, row := range a.Weights {
		if len(row) != features {
			return fmt.Errorf("%w: label %q has %d weights, want %d", inference.ErrInvalidArtifact, a.Labels[i], len(row), features)
		}
	}
	return nil
}

func (e *engine) Classify(img *image.RGBA) ([]inference.Category, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("classify: empty input")
	}
	features := poolChannels(img, e.artifact.Grid)

	logits := make([]float64, len(e.artifact.Labels))
	for i, row := range e.artifact.Weights {
		sum := 0.0
		if len(e.artifact.Bias) > 0 {
			sum = e.artifact.Bias[i]
		}
		for j, w := range row {
			sum += w * features[j]
		}
		logits[i] = sum
	}
	return inference.Rank(softmax(logits), e.artifact.Labels, e.opts), nil
}

func (e *engine) Close() error { return nil }

// poolChannels averages R, G and B over each cell of a grid×grid partition.
func poolChannels(img *image.RGBA, grid int) []float64 {
	b := img.Bounds()
	out := make([]float64, grid*grid*3)
	counts := make([]int, grid*grid)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		cy := (y - b.Min.Y) * grid / b.Dy()
		for x := b.Min.X; x < b.Max.X; x++ {
			cx := (x - b.Min.X) * grid / b.Dx()
			cell := cy*grid + cx
			px := img.RGBAAt(x, y)
			out[cell*3] += float64(px.R)
			out[cell*3+1] += float64(px.G)
			out[cell*3+2] += float64(px.B)
			counts[cell]++
		}
	}
	for cell, n := range counts {
		if n == 0 {
			continue
		}
		for c := 0; c < 3; c++ {
			out[cell*3+c] /= float64(n) * 255
		}
	}
	return out
}

func softmax(logits []float64) []float32 {
	maxLogit := math.Inf(-1)
	for _, l := range logits {
		maxLogit = math.Max(maxLogit, l)
	}
	sum := 0.0
	exps := make([]float64, len(logits))
	for i, l := range logits {
		exps[i] = math.Exp(l - maxLogit)
		sum += exps[i]
	}
	out := make([]float32, len(logits))
	for i, v := range exps {
		out[i] = float32(v / sum)
	}
	return out
}
