package classifier

import "errors"

// ErrModelInitialization reports that the model artifact could not be loaded
// or configured. The message is what end users see.
var ErrModelInitialization = errors.New("classifier failed to initialize")

// ImageProcessingError reports that the selected image could not be read,
// decoded or run through the model.
type ImageProcessingError struct {
	Err error
}

func (e *ImageProcessingError) Error() string {
	if e == nil || e.Err == nil {
		return "error processing the image"
	}
	return "error processing the image: " + e.Err.Error()
}

func (e *ImageProcessingError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// initError keeps ErrModelInitialization as the visible message while still
// exposing the underlying loader failure to errors.Is/As.
type initError struct {
	cause error
}

func (e *initError) Error() string { return ErrModelInitialization.Error() }

func (e *initError) Unwrap() []error { return []error{ErrModelInitialization, e.cause} }
