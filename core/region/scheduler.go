package region

import (
	"sync"
	"time"
)

// TickerScheduler runs the per-frame check on a fixed interval. Stop is
// synchronous: it waits for an in-flight tick to finish before returning, so
// no buffered frames fire after a preview is cancelled.
type TickerScheduler struct {
	Interval time.Duration
}

// Schedule starts ticking fn until the returned stop function is called.
func (s TickerScheduler) Schedule(fn func()) (stop func()) {
	interval := s.Interval
	if interval <= 0 {
		interval = 16 * time.Millisecond // ~60fps
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}
