package catalog

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable is transient: network failure, timeout, pool exhaustion.
	ErrSourceUnavailable = errors.New("catalog source unavailable")
	// ErrQueryRejected is returned when the request itself is unacceptable and
	// retrying it unchanged will not help.
	ErrQueryRejected = errors.New("catalog query rejected")

	ErrSuperseded = errors.New("catalog result superseded")
	ErrNotFound   = errors.New("product not found")
)

func rejected(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrQueryRejected, fmt.Sprintf(format, args...))
}

// classify maps an arbitrary source error onto the two failure kinds.
// Anything a source did not classify itself counts as unavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSourceUnavailable) || errors.Is(err, ErrQueryRejected) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
