package resource

import "context"

// AcquireIO blocks until the IO budget admits the given number of bytes, or
// ctx is canceled. A request larger than one second of budget can never be
// admitted and fails outright; callers split large writes into chunks below
// the budget.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	return c.ioLimiter.WaitN(ctx, bytes)
}
