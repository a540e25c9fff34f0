// Package keyer turns text into scheduled tones and timed progress callbacks.
package keyer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ColonelBlimp/cwtrainer/internal/audio"
	"github.com/ColonelBlimp/cwtrainer/internal/cw"
	"github.com/ColonelBlimp/cwtrainer/internal/recovery"
)

// DefaultLead is the delay between Play and the first event.
const DefaultLead = 50 * time.Millisecond

// Device is a tone output with its own monotonic clock.
type Device interface {
	Init() error
	Ready() bool
	Now() time.Duration
	Schedule(tones []audio.Tone, ramp time.Duration)
	Cancel(fade time.Duration)
	SetFrequency(hz float64)
	Close() error
}

// ProgressCallback is called once per rune of a play request, in order.
// It runs on the dispatcher goroutine and must not call Play or Stop.
type ProgressCallback func(p Progress)

// FinishCallback is called when a play request runs to completion.
// The same restrictions as ProgressCallback apply.
type FinishCallback func()

// Keyer owns the output device and runs at most one play request at a time.
type Keyer struct {
	device Device
	clock  Clock
	table  cw.Table
	logger *zap.Logger
	lead   time.Duration

	// opMu serializes Play, Stop and Close
	opMu sync.Mutex

	mu         sync.Mutex
	settings   Settings
	generation uint64
	active     bool
	cancel     context.CancelFunc
	// queued is set while tones may still be waiting on the device clock
	queued bool

	// deliverMu is held while a callback runs; Stop waits on it
	deliverMu sync.Mutex
	wg        sync.WaitGroup
}

// Option configures a Keyer.
type Option func(*Keyer)

// WithClock replaces the wall clock the dispatcher waits on.
func WithClock(c Clock) Option {
	return func(k *Keyer) { k.clock = c }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(k *Keyer) { k.logger = l }
}

// WithTable replaces the code table.
func WithTable(t cw.Table) Option {
	return func(k *Keyer) { k.table = t }
}

// WithLead sets the delay before the first event. It is never shorter than the stop fade.
func WithLead(d time.Duration) Option {
	return func(k *Keyer) { k.lead = d }
}

// New creates a keyer for device. A nil device keys silently.
func New(device Device, settings Settings, opts ...Option) (*Keyer, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	k := &Keyer{
		device:   device,
		clock:    systemClock{},
		table:    cw.DefaultTable,
		logger:   zap.NewNop(),
		lead:     DefaultLead,
		settings: settings,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

// InitializeAudio opens the output device. It is safe to call again after a
// failure; the error wraps audio.ErrDeviceUnavailable.
func (k *Keyer) InitializeAudio() error {
	if k.device == nil {
		return fmt.Errorf("%w: no output device", audio.ErrDeviceUnavailable)
	}
	if err := k.device.Init(); err != nil {
		if !errors.Is(err, audio.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %w", audio.ErrDeviceUnavailable, err)
		}
		return err
	}
	k.device.SetFrequency(k.Settings().Frequency)
	k.logger.Debug("audio initialized")
	return nil
}

// Ready reports whether tones will be heard.
func (k *Keyer) Ready() bool {
	return k.device != nil && k.device.Ready()
}

// Active reports whether a play request is in progress.
func (k *Keyer) Active() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.active
}

// Settings returns a copy of the current settings.
func (k *Keyer) Settings() Settings {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.settings
}

// UpdateSettings merges u into the settings. Invalid results are rejected
// and the old settings kept. A new frequency is applied to the device at
// once; everything else takes effect on the next Play.
func (k *Keyer) UpdateSettings(u Update) error {
	k.mu.Lock()
	next := u.Apply(k.settings)
	if err := next.Validate(); err != nil {
		k.mu.Unlock()
		return err
	}
	retune := next.Frequency != k.settings.Frequency
	k.settings = next
	k.mu.Unlock()

	if retune && k.device != nil {
		k.device.SetFrequency(next.Frequency)
	}
	k.logger.Debug("settings updated",
		zap.Int("wpm", next.WPM),
		zap.Int("farnsworth_wpm", next.FarnsworthWPM),
		zap.Float64("frequency", next.Frequency),
		zap.Float64("volume", next.Volume))
	return nil
}

// Play cancels any current request and keys text. onProgress fires for every
// rune, including separators and unmapped runes; onFinish fires once at the
// end. If the device is not ready one initialization attempt is made, and on
// failure the request runs silently with callbacks still delivered.
func (k *Keyer) Play(text string, onProgress ProgressCallback, onFinish FinishCallback) {
	k.opMu.Lock()
	defer k.opMu.Unlock()

	k.stop()

	if k.device != nil && !k.device.Ready() {
		if err := k.InitializeAudio(); err != nil {
			k.logger.Warn("audio unavailable, playing silently", zap.Error(err))
		}
	}

	settings := k.Settings()
	durations, err := settings.Durations()
	if err != nil {
		// settings are validated on every change
		k.logger.Error("invalid timing", zap.Error(err))
		return
	}
	tl := Plan(text, durations, settings.GroupSize, k.table)

	lead := k.lead
	if lead < settings.Fade {
		lead = settings.Fade
	}

	queued := false
	if k.Ready() && len(tl.Tones) > 0 {
		k.device.Schedule(tl.AudioTones(k.device.Now()+lead, settings.Volume), settings.Ramp)
		queued = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	k.mu.Lock()
	k.generation++
	gen := k.generation
	k.active = true
	k.queued = queued
	k.cancel = cancel
	k.mu.Unlock()

	k.logger.Debug("play",
		zap.Uint64("generation", gen),
		zap.Int("runes", len(tl.Progress)),
		zap.Int("tones", len(tl.Tones)),
		zap.Duration("length", tl.Length))

	start := k.clock.Now().Add(lead)
	k.wg.Add(1)
	go func() {
		defer recovery.HandlePanicFunc(func() {
			if k.device != nil {
				_ = k.device.Close()
			}
		})
		defer k.wg.Done()
		k.dispatch(ctx, gen, start, tl, onProgress, onFinish)
	}()
}

// Stop cancels the current request and fades out a sounding tone. When it
// returns no callback of the cancelled request is running or will run.
// On an idle keyer Stop only silences tones a finished request may have
// left queued on a lagging device.
func (k *Keyer) Stop() {
	k.opMu.Lock()
	defer k.opMu.Unlock()
	k.stop()
}

func (k *Keyer) stop() {
	k.mu.Lock()
	active := k.active
	queued := k.queued
	k.generation++
	k.active = false
	k.queued = false
	cancel := k.cancel
	k.cancel = nil
	fade := k.settings.Fade
	k.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	// a finished request can leave tones behind when the device clock lags
	if (active || queued) && k.Ready() {
		k.device.Cancel(fade)
	}
	if !active {
		return
	}

	// wait out a callback in flight
	k.deliverMu.Lock()
	k.logger.Debug("stopped")
	k.deliverMu.Unlock()
}

// Close stops playback, waits for the dispatcher and releases the device.
func (k *Keyer) Close() error {
	k.Stop()
	k.wg.Wait()
	if k.device != nil {
		return k.device.Close()
	}
	return nil
}

func (k *Keyer) dispatch(ctx context.Context, gen uint64, start time.Time, tl Timeline, onProgress ProgressCallback, onFinish FinishCallback) {
	for _, p := range tl.Progress {
		if !k.waitUntil(ctx, start.Add(p.At)) {
			return
		}
		ok := k.deliver(gen, func() {
			if onProgress != nil {
				onProgress(p)
			}
		})
		if !ok {
			return
		}
	}

	if !k.waitUntil(ctx, start.Add(tl.Length)) {
		return
	}
	k.deliver(gen, func() {
		if onFinish != nil {
			onFinish()
		}
		k.mu.Lock()
		if k.generation == gen {
			k.active = false
			if k.cancel != nil {
				k.cancel()
				k.cancel = nil
			}
		}
		k.mu.Unlock()
	})
}

// deliver runs fn if gen is still the current generation.
func (k *Keyer) deliver(gen uint64, fn func()) bool {
	k.deliverMu.Lock()
	defer k.deliverMu.Unlock()

	k.mu.Lock()
	current := k.generation == gen
	k.mu.Unlock()
	if !current {
		return false
	}
	fn()
	return true
}

func (k *Keyer) waitUntil(ctx context.Context, at time.Time) bool {
	if !at.After(k.clock.Now()) {
		return ctx.Err() == nil
	}
	t := k.clock.TimerAt(at)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C():
		return true
	}
}
