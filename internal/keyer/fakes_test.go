package keyer

import (
	"sync"
	"time"

	"github.com/ColonelBlimp/cwtrainer/internal/audio"
)

// fakeClock only moves when Advance is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) TimerAt(at time.Time) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: make(chan time.Time, 1), at: at}
	if !at.After(c.now) {
		t.fire(c.now)
	}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	for _, t := range c.timers {
		if !t.at.After(c.now) {
			t.fire(c.now)
		}
	}
}

type fakeTimer struct {
	mu      sync.Mutex
	c       chan time.Time
	at      time.Time
	fired   bool
	stopped bool
}

func (t *fakeTimer) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.stopped {
		return
	}
	t.fired = true
	t.c <- now
}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	active := !t.fired && !t.stopped
	t.stopped = true
	return active
}

// fakeDevice records what the keyer asks of it.
type fakeDevice struct {
	mu        sync.Mutex
	initErr   error
	initCalls int
	ready     bool
	now       time.Duration
	scheduled []audio.Tone
	ramp      time.Duration
	cancels   []time.Duration
	frequency float64
	closed    bool
}

func (d *fakeDevice) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initCalls++
	if d.initErr != nil {
		return d.initErr
	}
	d.ready = true
	return nil
}

func (d *fakeDevice) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready
}

func (d *fakeDevice) Now() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now
}

func (d *fakeDevice) Schedule(tones []audio.Tone, ramp time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scheduled = append(d.scheduled, tones...)
	d.ramp = ramp
}

func (d *fakeDevice) Cancel(fade time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancels = append(d.cancels, fade)
}

func (d *fakeDevice) SetFrequency(hz float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frequency = hz
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.ready = false
	return nil
}

func (d *fakeDevice) snapshot() (tones []audio.Tone, cancels []time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]audio.Tone(nil), d.scheduled...), append([]time.Duration(nil), d.cancels...)
}
