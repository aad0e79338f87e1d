//go:build !tflite

package inference

import "fmt"

func loadTFLite(path string, _ Options) (Engine, error) {
	return nil, fmt.Errorf("%w: rebuild with -tags tflite to load %s", ErrEngineUnavailable, path)
}
