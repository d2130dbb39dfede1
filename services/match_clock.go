package services

import (
	"log"
	"sync"
	"time"
)

// MatchClock is the local countdown of an active match. It is a client
// side projection: it starts from the record's remaining seconds and is
// never re-synced from remote ticks; instead it pushes its own value to
// the store every syncEvery ticks (and on reaching zero) to bound write
// volume. On zero it fires onExpire exactly once and stops.
type MatchClock struct {
	interval  time.Duration
	syncEvery int

	stopOnce sync.Once
	stop     chan struct{}
}

// StartMatchClock begins ticking immediately. onSync receives the current
// remaining value whenever it is due to be persisted; onExpire fires when
// the countdown reaches zero. Both run on the clock goroutine.
func StartMatchClock(seconds int, interval time.Duration, syncEvery int, onSync func(remaining int), onExpire func()) *MatchClock {
	c := &MatchClock{
		interval:  interval,
		syncEvery: syncEvery,
		stop:      make(chan struct{}),
	}
	go c.run(seconds, onSync, onExpire)
	return c
}

func (c *MatchClock) run(remaining int, onSync func(int), onExpire func()) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	ticks := 0
	for remaining > 0 {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}

		remaining--
		ticks++

		if remaining == 0 || ticks%c.syncEvery == 0 {
			onSync(remaining)
		}
	}

	log.Printf("Match clock expired")
	onExpire()
}

// Stop halts the countdown. Idempotent; safe to call from onExpire's
// downstream path.
func (c *MatchClock) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}
