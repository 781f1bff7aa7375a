package incc

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means neither a fresh nor a cached series exists
	ErrUnavailable = errors.New("incc: no usable index series")

	// ErrNoSnapshot means the persisted series file does not exist
	ErrNoSnapshot = errors.New("incc: no persisted snapshot")
)

// ParseError is returned when markup yields no valid (year, month, value)
// triple. Callers decide whether that is fatal.
type ParseError struct {
	Years   int // "Ano: YYYY" headers seen
	Skipped int // data rows rejected
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("incc: no index points found in markup (%d year headers, %d rows skipped)", e.Years, e.Skipped)
}
