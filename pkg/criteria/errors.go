package criteria

import "fmt"

// NotFoundError indicates that the criteria document path does not resolve.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("acceptance criteria not found: %s", e.Path)
}

// ParseError indicates that a criteria document could not be parsed.
// It is fatal for the affected skill only.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("failed to parse acceptance criteria %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("failed to parse acceptance criteria %s", e.Path)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
