package gate

import "time"

// intervalScheduler drives passes from a time.Ticker. Ticks that arrive while
// a pass is still running are dropped by the ticker, so passes never queue.
type intervalScheduler struct {
	interval time.Duration
}

func (s intervalScheduler) Start(fn func(time.Time)) func() {
	t := time.NewTicker(s.interval)
	done := make(chan struct{})

	go func() {
		defer t.Stop()

		for {
			select {
			case <-done:
				return
			case now := <-t.C:
				// A stop may race with a pending tick.
				select {
				case <-done:
					return
				default:
				}

				fn(now)
			}
		}
	}()

	var stopped bool

	return func() {
		if !stopped {
			stopped = true
			close(done)
		}
	}
}
