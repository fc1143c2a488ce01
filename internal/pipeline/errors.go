package pipeline

import "fmt"

// ErrDatasetNotConfigured is returned before any routine runs when a selected
// routine needs a dataset key that has no location.
type ErrDatasetNotConfigured struct {
	Routine string
	Dataset string
}

func (e ErrDatasetNotConfigured) Error() string {
	return fmt.Sprintf("routine %s: dataset %s has no configured location", e.Routine, e.Dataset)
}

// ErrUnknownRoutine names a routine that is not registered.
type ErrUnknownRoutine struct {
	Name string
}

func (e ErrUnknownRoutine) Error() string {
	return fmt.Sprintf("unknown routine %q", e.Name)
}
