package inferencetest

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/cancer-check/internal/inference"
)

func solid(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 224, 224))
	for y := 0; y < 224; y++ {
		for x := 0; x < 224; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func redDetector() Artifact {
	return Artifact{
		Format:  Format,
		Grid:    1,
		Labels:  []string{"Cancer", "Non Cancer"},
		Weights: [][]float64{{6, 0, 0}, {0, 3, 3}},
		Bias:    []float64{-1, 0},
	}
}

func defaultOptions() inference.Options {
	return inference.Options{ScoreThreshold: 0.1, MaxResults: 3, NumThreads: 4}
}

func write(t *testing.T, a Artifact) string {
	t.Helper()
	path, err := WriteArtifact(t.TempDir(), "model.json", a)
	if err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestRanksRedAsCancer(t *testing.T) {
	engine, err := Load(write(t, redDetector()), defaultOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer engine.Close()

	got, err := engine.Classify(solid(color.RGBA{R: 255, A: 255}))
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(got) == 0 || got[0].Label != "Cancer" {
		t.Fatalf("expected Cancer first, got %+v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("scores not descending: %+v", got)
		}
	}
}

func TestIsDeterministic(t *testing.T) {
	engine, err := Load(write(t, redDetector()), defaultOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	img := solid(color.RGBA{R: 120, G: 80, B: 200, A: 255})

	first, _ := engine.Classify(img)
	second, _ := engine.Classify(img)
	if len(first) != len(second) {
		t.Fatalf("result lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("results differ at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestLoadMissingArtifact(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"), defaultOptions())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestArtifactValidation(t *testing.T) {
	bad := redDetector()
	bad.Weights = [][]float64{{1, 2}}
	if _, err := Load(write(t, bad), defaultOptions()); !errors.Is(err, inference.ErrInvalidArtifact) {
		t.Fatalf("expected ErrInvalidArtifact, got %v", err)
	}

	wrongFormat := redDetector()
	wrongFormat.Format = "tflite"
	if _, err := Load(write(t, wrongFormat), defaultOptions()); !errors.Is(err, inference.ErrInvalidArtifact) {
		t.Fatalf("expected ErrInvalidArtifact for wrong format, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "garbage.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path, defaultOptions()); !errors.Is(err, inference.ErrInvalidArtifact) {
		t.Fatalf("expected ErrInvalidArtifact for malformed json, got %v", err)
	}
}
