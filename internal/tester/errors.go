package tester

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrProbeFailed  = errors.New("probe failed")
	ErrProbeTimeout = errors.New("probe timed out")
	ErrEngineStart  = errors.New("engine start failed")
)

// classify wraps err as a timeout when ctx expired, else as a plain failure.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrProbeTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrProbeFailed, err)
}
