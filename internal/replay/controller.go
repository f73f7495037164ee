package replay

import (
	"context"
	"sort"
	"sync"
	"time"
)

const (
	MinSpeed = 0.25
	MaxSpeed = 10.0

	DefaultBaseInterval = 500 * time.Millisecond
	DefaultWindowSize   = 100
)

// State is a snapshot of a controller, sent to listeners after every change.
// Seq increases by one with every published snapshot.
type State struct {
	Seq        uint64  `json:"seq"`
	Index      int     `json:"index"`
	Total      int     `json:"total"`
	Playing    bool    `json:"playing"`
	Speed      float64 `json:"speed"`
	WindowSize int     `json:"window_size"`
	Follow     bool    `json:"follow"`
	Window     Window  `json:"window"`
}

type Listener func(State)

type Option func(*Controller)

func WithBaseInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.baseInterval = d
		}
	}
}

func WithWindowSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.windowSize = n
		}
	}
}

func WithFollow(follow bool) Option {
	return func(c *Controller) {
		c.follow = follow
	}
}

// Controller drives playback over one replay. It owns at most one playback
// goroutine; Play replaces it and Pause, Stop and Close cancel it.
// Listeners run on a single dispatch goroutine, in Seq order, and may call
// back into the controller, Close included. They must not block for long.
type Controller struct {
	mu sync.Mutex

	data         Data
	index        int
	speed        float64
	windowSize   int
	follow       bool
	baseInterval time.Duration

	playing bool
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool

	listeners map[uint64]Listener
	nextID    uint64

	seq     uint64
	pending []State
	wake    chan struct{}
}

func NewController(data Data, opts ...Option) *Controller {
	c := &Controller{
		data:         data,
		speed:        1,
		windowSize:   DefaultWindowSize,
		follow:       true,
		baseInterval: DefaultBaseInterval,
		listeners:    map[uint64]Listener{},
		wake:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.dispatch()
	return c
}

func (c *Controller) last() int {
	return len(c.data.Prices) - 1
}

// Subscribe registers l and returns a function that removes it.
func (c *Controller) Subscribe(l Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return func() {}
	}
	id := c.nextID
	c.nextID++
	c.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Play starts advancing one bar every baseInterval/speed. Playing from the
// last bar restarts at bar 0. Playback stops by itself at the last bar.
func (c *Controller) Play() {
	c.mu.Lock()
	if c.closed || c.last() < 1 {
		c.mu.Unlock()
		return
	}
	if c.index >= c.last() {
		c.index = 0
	}
	c.startLocked()
	c.publishLocked()
	c.mu.Unlock()
}

func (c *Controller) Pause() {
	c.mutate(func() {
		c.stopLocked()
	})
}

// Stop pauses and rewinds to bar 0.
func (c *Controller) Stop() {
	c.mutate(func() {
		c.stopLocked()
		c.index = 0
	})
}

func (c *Controller) StepForward() {
	c.mutate(func() {
		c.stopLocked()
		if c.index < c.last() {
			c.index++
		}
	})
}

func (c *Controller) StepBackward() {
	c.mutate(func() {
		c.stopLocked()
		if c.index > 0 {
			c.index--
		}
	})
}

// Seek moves to index, clamped to the series. Playback continues if active.
func (c *Controller) Seek(index int) {
	c.mutate(func() {
		c.index = clampInt(index, 0, max(c.last(), 0))
	})
}

// SeekTime moves to the last bar at or before ts, or bar 0 when ts precedes the series.
func (c *Controller) SeekTime(ts int64) {
	c.mutate(func() {
		c.index = c.indexAtLocked(ts)
	})
}

func (c *Controller) SetSpeed(speed float64) {
	c.mutate(func() {
		c.speed = clampSpeed(speed)
		if c.playing {
			c.startLocked()
		}
	})
}

func (c *Controller) SetWindowSize(n int) {
	c.mutate(func() {
		if n < 1 {
			n = 1
		}
		c.windowSize = n
	})
}

func (c *Controller) ToggleFollow() {
	c.mutate(func() {
		c.follow = !c.follow
	})
}

// GoToNextTrade seeks to the bar of the first trade after the current bar.
// It reports false when there is none.
func (c *Controller) GoToNextTrade() bool {
	var found bool
	c.mutate(func() {
		if c.last() < 0 {
			return
		}
		cur := c.data.Prices[c.index].Timestamp
		for _, t := range c.data.Trades {
			if t.Timestamp > cur {
				c.index = c.indexAtLocked(t.Timestamp)
				found = true
				return
			}
		}
	})
	return found
}

// GoToPreviousTrade seeks to the bar of the last trade before the current bar.
func (c *Controller) GoToPreviousTrade() bool {
	var found bool
	c.mutate(func() {
		if c.last() < 0 {
			return
		}
		cur := c.data.Prices[c.index].Timestamp
		for i := len(c.data.Trades) - 1; i >= 0; i-- {
			if ts := c.data.Trades[i].Timestamp; ts < cur {
				c.index = c.indexAtLocked(ts)
				found = true
				return
			}
		}
	})
	return found
}

// Close cancels playback, drops every listener and pending snapshot, and
// waits for the playback goroutine to exit. A listener call already in
// progress may still finish. Later calls on the controller are no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopLocked()
	done := c.done
	c.listeners = map[uint64]Listener{}
	c.pending = nil
	close(c.wake)
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

// mutate applies fn under the lock and queues the resulting snapshot.
func (c *Controller) mutate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	fn()
	c.publishLocked()
}

func (c *Controller) startLocked() {
	c.stopLocked()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.playing = true

	interval := time.Duration(float64(c.baseInterval) / c.speed)
	go c.loop(ctx, interval, done)
}

func (c *Controller) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.playing = false
}

func (c *Controller) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.tick(ctx) {
				return
			}
		}
	}
}

// tick advances one bar. It re-checks ctx under the lock so that a bar is
// never advanced after Pause or Close has returned.
func (c *Controller) tick(ctx context.Context) bool {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return false
	}
	if c.index < c.last() {
		c.index++
	}
	more := c.index < c.last()
	if !more {
		c.stopLocked()
	}
	c.publishLocked()
	c.mu.Unlock()
	return more
}

func (c *Controller) stateLocked() State {
	return State{
		Seq:        c.seq,
		Index:      c.index,
		Total:      len(c.data.Prices),
		Playing:    c.playing,
		Speed:      c.speed,
		WindowSize: c.windowSize,
		Follow:     c.follow,
		Window:     Compute(c.data, c.index, c.windowSize, c.follow),
	}
}

func (c *Controller) publishLocked() {
	c.seq++
	c.pending = append(c.pending, c.stateLocked())
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// dispatch delivers queued snapshots until Close.
func (c *Controller) dispatch() {
	for range c.wake {
		for {
			c.mu.Lock()
			if len(c.pending) == 0 {
				c.mu.Unlock()
				break
			}
			st := c.pending[0]
			c.pending = c.pending[1:]
			ls := make([]Listener, 0, len(c.listeners))
			for _, l := range c.listeners {
				ls = append(ls, l)
			}
			c.mu.Unlock()

			for _, l := range ls {
				l(st)
			}
		}
	}
}

func (c *Controller) indexAtLocked(ts int64) int {
	prices := c.data.Prices
	i := sort.Search(len(prices), func(i int) bool { return prices[i].Timestamp > ts })
	return max(i-1, 0)
}

func clampSpeed(s float64) float64 {
	if s < MinSpeed {
		return MinSpeed
	}
	if s > MaxSpeed {
		return MaxSpeed
	}
	return s
}
