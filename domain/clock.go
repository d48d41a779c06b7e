package domain

import (
	"sync/atomic"
	"time"
)

// Clock hands out strictly increasing unix-nano timestamps, so tasks and
// events stamped within the same tick keep their creation order.
type Clock struct {
	last atomic.Int64
	now  func() time.Time
}

var processClock Clock

// NextTimestamp stamps from the process-wide clock shared by storage and
// event publishing.
func NextTimestamp() int64 {
	return processClock.Next()
}

// Next returns a timestamp greater than every value it returned before.
func (c *Clock) Next() int64 {
	for {
		now := c.read()
		last := c.last.Load()
		if now <= last {
			now = last + 1
		}
		if c.last.CompareAndSwap(last, now) {
			return now
		}
	}
}

func (c *Clock) read() int64 {
	if c.now != nil {
		return c.now().UnixNano()
	}
	return time.Now().UnixNano()
}
