package inference

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// labelFiles lists where a label file may sit relative to a model artifact,
// in lookup order.
func labelFiles(modelPath string) []string {
	base := strings.TrimSuffix(modelPath, filepath.Ext(modelPath))
	return []string{
		base + ".labels",
		base + ".txt",
		filepath.Join(filepath.Dir(modelPath), "labels.txt"),
	}
}

// readLabels loads the label list that accompanies a model artifact, one label
// per line.
func readLabels(modelPath string) ([]string, error) {
	for _, candidate := range labelFiles(modelPath) {
		f, err := os.Open(candidate)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		labels, err := scanLabels(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read labels %s: %w", candidate, err)
		}
		if len(labels) == 0 {
			return nil, fmt.Errorf("%w: label file %s is empty", ErrInvalidArtifact, candidate)
		}
		return labels, nil
	}
	return nil, fmt.Errorf("%w: no label file next to %s", ErrInvalidArtifact, filepath.Base(modelPath))
}

func scanLabels(f *os.File) ([]string, error) {
	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	return labels, scanner.Err()
}
