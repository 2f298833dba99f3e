package storage

import (
	"sync/atomic"
	"time"
)

// idSequence hands out identifiers shaped like epoch milliseconds that strictly
// increase even when the clock stalls or moves backwards.
type idSequence struct {
	last atomic.Int64
	now  func() time.Time
}

func newIDSequence(now func() time.Time) *idSequence {
	return &idSequence{now: now}
}

func (s *idSequence) next() int64 {
	for {
		now := s.now().UnixMilli()
		last := s.last.Load()
		if now <= last {
			now = last + 1
		}
		if s.last.CompareAndSwap(last, now) {
			return now
		}
	}
}

// observe makes sure later identifiers are greater than id.
func (s *idSequence) observe(id int64) {
	for {
		last := s.last.Load()
		if id <= last || s.last.CompareAndSwap(last, id) {
			return
		}
	}
}
