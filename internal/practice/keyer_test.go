package practice

import (
	"sync"
	"testing"
	"time"

	"github.com/ColonelBlimp/cwtrainer/internal/keyer"
)

const keyerLead = 50 * time.Millisecond

// manualClock only moves when Advance is called.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	c     chan time.Time
	at    time.Time
	fired bool
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) TimerAt(at time.Time) keyer.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{c: make(chan time.Time, 1), at: at}
	if !at.After(c.now) {
		t.fired = true
		t.c <- c.now
	}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	for _, t := range c.timers {
		if !t.fired && !t.at.After(c.now) {
			t.fired = true
			t.c <- c.now
		}
	}
}

func (t *manualTimer) C() <-chan time.Time { return t.c }

// Stop is a no-op; a timer fires at most once.
func (t *manualTimer) Stop() bool { return false }

// newKeyedController wires a silent keyer on a manual clock to a controller.
func newKeyedController(t *testing.T, opts Options) (*Controller, *manualClock, *eventLog) {
	t.Helper()
	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	settings := keyer.DefaultSettings()
	settings.WPM = 20
	settings.GroupSize = 4

	k, err := keyer.New(nil, settings, keyer.WithClock(clock), keyer.WithLead(keyerLead))
	if err != nil {
		t.Fatalf("keyer.New() error = %v", err)
	}
	t.Cleanup(func() { _ = k.Close() })

	c := NewController(k, opts, WithGenerator(NewSeededGenerator(1)))
	log := &eventLog{}
	c.SetCallback(log.add)
	return c, clock, log
}

func waitForFinish(t *testing.T, log *eventLog) *Result {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if finish := log.kinds(EventFinish); len(finish) > 0 {
			return finish[0].Result
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for the finish event")
	return nil
}

func TestController_KeyerStopInFirstTone(t *testing.T) {
	c, clock, log := newKeyedController(t, Options{Charset: "S", TotalChars: 3})

	if err := c.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	// 10ms into the first dit of the first S
	clock.Advance(keyerLead + 10*time.Millisecond)
	c.Stop()

	res := waitForFinish(t, log)
	if res.Text != "SSS" || res.Played != "" || res.Completed {
		t.Errorf("result = %+v, want nothing played of %q", res, "SSS")
	}
	if idx := log.kinds(EventIndex); len(idx) != 0 {
		t.Errorf("index events = %+v, want none before the first character ends", idx)
	}
	if h := c.History(); len(h) != 0 {
		t.Errorf("History() = %q, want empty", h)
	}

	clock.Advance(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if n := len(log.all()); n != 1 {
		t.Errorf("events after Stop = %d, want only the finish", n)
	}
}

func TestController_KeyerFullRun(t *testing.T) {
	c, clock, log := newKeyedController(t, Options{Charset: "A", TotalChars: 4})

	if err := c.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	clock.Advance(time.Minute)

	res := waitForFinish(t, log)
	if !res.Completed || res.Played != "AAAA" {
		t.Errorf("result = %+v, want completed AAAA", res)
	}
	idx := log.kinds(EventIndex)
	if len(idx) != 4 {
		t.Fatalf("index events = %d, want 4", len(idx))
	}
	for i, e := range idx {
		if e.Index != i {
			t.Errorf("index event %d = %d", i, e.Index)
		}
	}
	if g := log.kinds(EventGroup); len(g) != 1 || g[0].Index != 3 {
		t.Errorf("group events = %+v, want one at index 3", g)
	}
	if c.State() != Idle {
		t.Errorf("State() = %v, want idle", c.State())
	}
}
