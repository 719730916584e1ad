package arena

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// matchClock is the authoritative clock for an active match. It fires exactly
// one expiry via the given callback unless stopped first. Remaining is derived
// from the server-side clock only, client-reported time is never trusted.
type matchClock struct {
	clock clockwork.Clock
	start time.Time
	limit time.Duration
	stop  chan struct{}
}

// startMatchClock starts a matchClock for the given time limit. The expired
// callback is called from a separate goroutine when the limit has elapsed.
func startMatchClock(ctx context.Context, clock clockwork.Clock, limit time.Duration, expired func()) *matchClock {
	matchClock := &matchClock{
		clock: clock,
		start: clock.Now(),
		limit: limit,
		stop:  make(chan struct{}),
	}
	go func() {
		select {
		case <-ctx.Done():
		case <-matchClock.stop:
		case <-clock.After(limit):
			expired()
		}
	}()
	return matchClock
}

// Remaining is the remaining match time. Never negative.
func (matchClock *matchClock) Remaining() time.Duration {
	remaining := matchClock.limit - matchClock.clock.Since(matchClock.start)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Stop cancels the pending expiry. Calling Stop more than once panics, the
// match event loop only stops the clock on its terminal transition.
func (matchClock *matchClock) Stop() {
	close(matchClock.stop)
}

// startCountdown calls tick at the given interval until the returned stop
// function is called or the context is done.
func startCountdown(ctx context.Context, clock clockwork.Clock, interval time.Duration, tick func()) func() {
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-clock.After(interval):
				tick()
			}
		}
	}()
	return func() {
		close(stop)
	}
}

// startGraceTimer calls expired once after the given grace period unless the
// returned cancel function is called first.
func startGraceTimer(ctx context.Context, clock clockwork.Clock, grace time.Duration, expired func()) func() {
	cancel := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-cancel:
		case <-clock.After(grace):
			expired()
		}
	}()
	return func() {
		close(cancel)
	}
}
