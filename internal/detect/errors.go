package detect

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned for a non-positive debounce count, window
// size or threshold.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgument}, args...)...)
}

func checkDebounce(debounce int) error {
	if debounce < 1 {
		return invalidf("debounce count must be > 0 (got %d)", debounce)
	}
	return nil
}
