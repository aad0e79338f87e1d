//go:build tflite

package inference

import (
	"fmt"
	"image"
	"os"

	"github.com/mattn/go-tflite"
)

type tfliteEngine struct {
	model       *tflite.Model
	interpOpts  *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	labels      []string
	opts        Options
}

func loadTFLite(path string, opts Options) (Engine, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	labels, err := readLabels(path)
	if err != nil {
		return nil, err
	}

	model := tflite.NewModelFromFile(path)
	if model == nil {
		return nil, fmt.Errorf("%w: cannot parse %s", ErrInvalidArtifact, path)
	}
	interpOpts := tflite.NewInterpreterOptions()
	interpOpts.SetNumThread(opts.NumThreads)

	engine := &tfliteEngine{model: model, interpOpts: interpOpts, labels: labels, opts: opts}
	engine.interpreter = tflite.NewInterpreter(model, interpOpts)
	if engine.interpreter == nil {
		engine.Close()
		return nil, fmt.Errorf("%w: cannot create interpreter for %s", ErrInvalidArtifact, path)
	}
	if status := engine.interpreter.AllocateTensors(); status != tflite.OK {
		engine.Close()
		return nil, fmt.Errorf("%w: allocate tensors: status %v", ErrInvalidArtifact, status)
	}

	input := engine.interpreter.GetInputTensor(0)
	if input == nil || input.NumDims() != 4 || input.Dim(3) != 3 {
		engine.Close()
		return nil, fmt.Errorf("%w: expected a [1,h,w,3] input tensor", ErrInvalidArtifact)
	}
	return engine, nil
}

func (e *tfliteEngine) Classify(img *image.RGBA) ([]Category, error) {
	input := e.interpreter.GetInputTensor(0)
	h, w := input.Dim(1), input.Dim(2)
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		return nil, fmt.Errorf("classify: input is %dx%d, model expects %dx%d", b.Dx(), b.Dy(), w, h)
	}

	switch input.Type() {
	case tflite.UInt8:
		packUint8(input.UInt8s(), img)
	case tflite.Float32:
		packFloat32(input.Float32s(), img)
	default:
		return nil, fmt.Errorf("classify: unsupported input tensor type %v", input.Type())
	}

	if status := e.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("classify: invoke: status %v", status)
	}

	output := e.interpreter.GetOutputTensor(0)
	var scores []float32
	switch output.Type() {
	case tflite.UInt8:
		q := output.QuantizationParams()
		scores = dequantize(output.UInt8s(), q.Scale, q.ZeroPoint)
	case tflite.Float32:
		scores = append(scores, output.Float32s()...)
	default:
		return nil, fmt.Errorf("classify: unsupported output tensor type %v", output.Type())
	}
	return Rank(scores, e.labels, e.opts), nil
}

func (e *tfliteEngine) Close() error {
	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.interpOpts != nil {
		e.interpOpts.Delete()
		e.interpOpts = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
	return nil
}
