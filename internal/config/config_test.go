package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := cfg.ClassifierSettings()
	if c.ScoreThreshold != 0.5 || c.MaxResults != 1 || c.NumThreads != 4 || c.ModelName != "cancer_classification.tflite" {
		t.Fatalf("unexpected classifier settings %+v", c)
	}
	p := cfg.Policy()
	if p.TargetLabel != "cancer" || p.Threshold != 0.5 {
		t.Fatalf("unexpected policy %+v", p)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("CLASSIFIER_MAX_RESULTS", "3")
	t.Setenv("CLASSIFIER_SCORE_THRESHOLD", "0.1")
	t.Setenv("JWT_SECRET", "  s3cret ")
	t.Setenv("SERVER_ADDR", ":9090")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Classifier.MaxResults != 3 || cfg.Classifier.ScoreThreshold != 0.1 {
		t.Fatalf("env overrides not applied: %+v", cfg.Classifier)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Fatalf("expected trimmed secret, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
classifier:
  assets_dir: /srv/models
  model_name: reference.json
decision:
  target_label: Melanoma
  threshold: 0.8
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Classifier.AssetsDir != "/srv/models" || cfg.Classifier.ModelName != "reference.json" {
		t.Fatalf("file values not applied: %+v", cfg.Classifier)
	}
	if cfg.Decision.TargetLabel != "Melanoma" || cfg.Decision.Threshold != 0.8 {
		t.Fatalf("decision values not applied: %+v", cfg.Decision)
	}
	if cfg.LogOptions().Level != "debug" {
		t.Fatalf("unexpected log level %q", cfg.LogOptions().Level)
	}
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	t.Setenv("CLASSIFIER_SCORE_THRESHOLD", "1.5")
	t.Setenv("CLASSIFIER_MAX_RESULTS", "0")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"score_threshold", "max_results"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %v", want, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
