// internal/audio/playback.go
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// ErrDeviceUnavailable means the playback device could not be opened.
// Initialization may be retried.
var ErrDeviceUnavailable = errors.New("audio output device unavailable")

// Config holds audio output configuration
type Config struct {
	DeviceIndex int    // -1 for default device
	SampleRate  uint32 // e.g., 48000
	Channels    uint32 // 1 for mono, 2 for stereo
	BufferSize  uint32 // frames per callback
}

// DefaultConfig returns sensible defaults for sidetone playback
func DefaultConfig() Config {
	return Config{
		DeviceIndex: -1,
		SampleRate:  48000,
		Channels:    1,
		BufferSize:  512,
	}
}

// Output plays a Synth through a malgo playback device.
// The synth clock only advances while the device is pulling frames.
type Output struct {
	config Config
	synth  *Synth

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	ready  atomic.Bool

	// audio thread only
	scratch []float32
}

// NewOutput creates an output for cfg. No device is opened until Init.
func NewOutput(cfg Config, frequency float64) *Output {
	return &Output{
		config: cfg,
		synth:  NewSynth(float64(cfg.SampleRate), frequency),
	}
}

// Synth returns the synth the device renders.
func (o *Output) Synth() *Synth {
	return o.synth
}

// Init opens and starts the playback device. Calling Init on a ready
// output is a no-op. On failure the output stays uninitialized and
// the error wraps ErrDeviceUnavailable.
func (o *Output) Init() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.device != nil {
		return nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: init audio context: %w", ErrDeviceUnavailable, err)
	}

	deviceConfig := malgo.DeviceConfig{
		DeviceType:         malgo.Playback,
		SampleRate:         o.config.SampleRate,
		PeriodSizeInFrames: o.config.BufferSize,
		Playback: malgo.SubConfig{
			Format:   malgo.FormatF32,
			Channels: o.config.Channels,
		},
	}

	// Select specific device if requested
	if o.config.DeviceIndex >= 0 {
		devices, err := ctx.Devices(malgo.Playback)
		if err != nil {
			releaseContext(ctx)
			return fmt.Errorf("%w: enumerate devices: %w", ErrDeviceUnavailable, err)
		}
		if o.config.DeviceIndex >= len(devices) {
			releaseContext(ctx)
			return fmt.Errorf("%w: device index %d out of range (have %d devices)",
				ErrDeviceUnavailable, o.config.DeviceIndex, len(devices))
		}
		deviceConfig.Playback.DeviceID = devices[o.config.DeviceIndex].ID.Pointer()
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: o.onSendFrames,
	})
	if err != nil {
		releaseContext(ctx)
		return fmt.Errorf("%w: init device: %w", ErrDeviceUnavailable, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		releaseContext(ctx)
		return fmt.Errorf("%w: start device: %w", ErrDeviceUnavailable, err)
	}

	o.ctx = ctx
	o.device = device
	o.ready.Store(true)
	return nil
}

// Ready reports whether the device is open and pulling frames.
func (o *Output) Ready() bool {
	return o.ready.Load()
}

// Now returns the synth clock.
func (o *Output) Now() time.Duration {
	return o.synth.Now()
}

// Schedule queues tones on the synth clock.
func (o *Output) Schedule(tones []Tone, ramp time.Duration) {
	o.synth.Schedule(tones, ramp)
}

// Cancel drops queued tones and fades a sounding tone over fade.
func (o *Output) Cancel(fade time.Duration) {
	o.synth.Cancel(fade)
}

// SetFrequency retunes the sidetone immediately.
func (o *Output) SetFrequency(hz float64) {
	o.synth.SetFrequency(hz)
}

// Close stops the device and releases all audio resources
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.ready.Store(false)
	if o.device != nil {
		_ = o.device.Stop()
		o.device.Uninit()
		o.device = nil
	}

	if o.ctx != nil {
		if err := o.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninit context: %w", err)
		}
		o.ctx.Free()
		o.ctx = nil
	}
	return nil
}

// onSendFrames runs on the audio thread. Must be non-blocking and fast.
func (o *Output) onSendFrames(outputSamples, _ []byte, frameCount uint32) {
	frames := int(frameCount)
	if cap(o.scratch) < frames {
		o.scratch = make([]float32, frames)
	}
	mono := o.scratch[:frames]
	o.synth.Render(mono)
	writeFrames(outputSamples, mono, int(o.config.Channels))
}

// writeFrames interleaves mono into out as little-endian float32, one copy per channel.
func writeFrames(out []byte, mono []float32, channels int) {
	if channels < 1 {
		channels = 1
	}
	for i, s := range mono {
		bits := math.Float32bits(s)
		for ch := 0; ch < channels; ch++ {
			offset := (i*channels + ch) * 4
			if offset+4 > len(out) {
				return
			}
			binary.LittleEndian.PutUint32(out[offset:], bits)
		}
	}
}

func releaseContext(ctx *malgo.AllocatedContext) {
	_ = ctx.Uninit()
	ctx.Free()
}

// ListDevices returns the names of the available playback devices,
// in the order DeviceIndex refers to them.
func ListDevices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: init audio context: %w", ErrDeviceUnavailable, err)
	}
	defer releaseContext(ctx)

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}
