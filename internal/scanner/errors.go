package scanner

import "fmt"

// InvalidRootError is returned when the scan root is missing or is not a
// directory. Nothing has been read when it is returned.
type InvalidRootError struct {
	Root   string
	Reason string
	Err    error
}

func (e *InvalidRootError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid root %q: %s: %v", e.Root, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid root %q: %s", e.Root, e.Reason)
}

func (e *InvalidRootError) Unwrap() error {
	return e.Err
}

// EnumerationError is returned when a directory under the root cannot be
// listed. It aborts the scan since the file list would be incomplete.
type EnumerationError struct {
	Path string
	Err  error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("failed to list directory %s: %v", e.Path, e.Err)
}

func (e *EnumerationError) Unwrap() error {
	return e.Err
}
