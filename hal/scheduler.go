package hal

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type schedItem struct {
	t        *Timer
	gen      uint64
	due      time.Time
	period   time.Duration
	periodic bool
	index    int
}

type schedHeap []*schedItem

func (h schedHeap) Len() int           { return len(h) }
func (h schedHeap) Less(i, j int) bool { return h[i].due.Before(h[j].due) }
func (h schedHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *schedHeap) Push(x any)        { it := x.(*schedItem); it.index = len(*h); *h = append(*h, it) }
func (h *schedHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	it.index = -1
	*h = old[:n-1]
	return it
}

// scheduler keeps armed timers ordered by next due time and posts their
// firings to the dispatcher. Periodic deadlines advance by exactly one
// period, so firings do not drift with callback latency.
type scheduler struct {
	clk  clockwork.Clock
	disp *dispatcher

	mu    sync.Mutex
	wake  chan struct{}
	items map[*Timer]*schedItem
	h     schedHeap
}

func newScheduler(clk clockwork.Clock, disp *dispatcher) *scheduler {
	return &scheduler{
		clk:   clk,
		disp:  disp,
		wake:  make(chan struct{}, 1),
		items: make(map[*Timer]*schedItem),
	}
}

// arm inserts or replaces the schedule for t; the first firing is one
// period from now.
func (s *scheduler) arm(t *Timer, gen uint64, period time.Duration, periodic bool) {
	s.mu.Lock()
	due := s.clk.Now().Add(period)
	if it := s.items[t]; it != nil {
		it.gen, it.due, it.period, it.periodic = gen, due, period, periodic
		heap.Fix(&s.h, it.index)
	} else {
		it = &schedItem{t: t, gen: gen, due: due, period: period, periodic: periodic, index: -1}
		s.items[t] = it
		heap.Push(&s.h, it)
	}
	s.mu.Unlock()
	s.wakeup()
}

func (s *scheduler) disarm(t *Timer) {
	s.mu.Lock()
	if it := s.items[t]; it != nil {
		heap.Remove(&s.h, it.index)
		delete(s.items, t)
	}
	s.mu.Unlock()
	s.wakeup()
}

func (s *scheduler) wakeup() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

type firing struct {
	t   *Timer
	gen uint64
}

func (s *scheduler) run(ctx context.Context) {
	for {
		fires, next, idle := s.collect()
		for _, f := range fires {
			f := f
			if !s.disp.post(ctx, func() { f.t.fire(f.gen) }) {
				return
			}
		}
		if len(fires) > 0 {
			continue
		}
		if idle {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			}
			continue
		}
		tm := s.clk.NewTimer(next.Sub(s.clk.Now()))
		// The clock may have moved between collect and NewTimer.
		if !s.clk.Now().Before(next) {
			tm.Stop()
			continue
		}
		select {
		case <-ctx.Done():
			tm.Stop()
			return
		case <-s.wake:
			tm.Stop()
		case <-tm.Chan():
		}
	}
}

// collect pops every firing due at or before now. When nothing is due it
// returns the next deadline, or idle when no timer is armed.
func (s *scheduler) collect() (fires []firing, next time.Time, idle bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clk.Now()
	for len(s.h) > 0 {
		top := s.h[0]
		if top.due.After(now) {
			break
		}
		fires = append(fires, firing{t: top.t, gen: top.gen})
		if top.periodic {
			top.due = top.due.Add(top.period)
			heap.Fix(&s.h, 0)
		} else {
			heap.Pop(&s.h)
			delete(s.items, top.t)
		}
	}
	if len(fires) > 0 {
		return fires, time.Time{}, false
	}
	if len(s.h) == 0 {
		return nil, time.Time{}, true
	}
	return nil, s.h[0].due, false
}
