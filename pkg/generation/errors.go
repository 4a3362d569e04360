package generation

import "fmt"

// TimeoutError indicates a generation call exceeded its time budget or was
// cut off by the caller's deadline.
type TimeoutError struct {
	Provider string
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("generation timed out (backend %s): %v", e.Provider, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// BackendError indicates the generation backend failed to produce output.
type BackendError struct {
	Provider string
	Err      error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("generation backend %s failed: %v", e.Provider, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
