package core

import (
	"context"
	"time"
)

// Delay blocks for d or until ctx is done. It stands in for the RTOS
// task delay: every timed wait in the tasks goes through here so a
// cancelled context stops them at the next suspension point.
func Delay(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
