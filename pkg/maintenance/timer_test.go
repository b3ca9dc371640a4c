package maintenance

import (
	"context"
	"github.com/stretchr/testify/require"
	"sync/atomic"
	"testing"
	"time"
)

func TestAfter(t *testing.T) {
	t.Run("Fires", func(t *testing.T) {
		fired := make(chan struct{})
		after(context.Background(), 5*time.Millisecond, func() { close(fired) })

		select {
		case <-fired:
		case <-time.After(time.Second):
			require.Fail(t, "callback not called")
		}
	})

	t.Run("Stopped", func(t *testing.T) {
		var fired atomic.Bool
		s := after(context.Background(), 20*time.Millisecond, func() { fired.Store(true) })
		s.Stop()
		s.Stop()

		time.Sleep(50 * time.Millisecond)
		require.False(t, fired.Load())
	})

	t.Run("Canceled", func(t *testing.T) {
		var fired atomic.Bool
		ctx, cancel := context.WithCancel(context.Background())
		after(ctx, 20*time.Millisecond, func() { fired.Store(true) })
		cancel()

		time.Sleep(50 * time.Millisecond)
		require.False(t, fired.Load())
	})
}
