package classifier

import (
	"os"
	"path/filepath"
	"testing"
)

const referenceModel = `{
  "format": "linear-v1",
  "grid": 2,
  "labels": ["Cancer", "Non Cancer", "Unknown"],
  "weights": [
    [2, 0, 0, 2, 0, 0, 2, 0, 0, 2, 0, 0],
    [0, 1, 1, 0, 1, 1, 0, 1, 1, 0, 1, 1],
    [0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5]
  ],
  "bias": [0, 0, -1]
}`

func writeReferenceModel(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "reference.json"), []byte(referenceModel), 0o600); err != nil {
		t.Fatalf("write model: %v", err)
	}
}
