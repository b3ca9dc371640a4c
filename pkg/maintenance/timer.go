package maintenance

import (
	"context"
	"github.com/icinga/icinga-go-library/periodic"
	"time"
)

// after runs callback once after delay unless ctx is done or Stop is called before.
func after(ctx context.Context, delay time.Duration, callback func()) periodic.Stopper {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		defer cancel()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
			callback()
		case <-ctx.Done():
		}
	}()

	return stopperFunc(cancel)
}

type stopperFunc func()

func (f stopperFunc) Stop() {
	f()
}
