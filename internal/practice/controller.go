// Package practice runs copy practice sessions: it generates text, keys it,
// tracks what has been heard and scores the transcription.
package practice

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ColonelBlimp/cwtrainer/internal/cw"
	"github.com/ColonelBlimp/cwtrainer/internal/keyer"
	"github.com/ColonelBlimp/cwtrainer/internal/recovery"
	"github.com/ColonelBlimp/cwtrainer/internal/score"
)

// HistoryLimit is how many played texts History keeps.
const HistoryLimit = 20

// State of a Controller.
type State int

const (
	Idle State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "idle"
}

// EventKind identifies an Event.
type EventKind int

const (
	// EventIndex carries the body index of the character just heard
	EventIndex EventKind = iota
	// EventClear means no body character is current (preamble)
	EventClear
	// EventGroup follows EventIndex for the last character of a group
	EventGroup
	// EventFinish carries the Result of a stopped or completed session
	EventFinish
)

// Event is delivered to the EventCallback.
type Event struct {
	Kind    EventKind
	Session uint64
	Index   int
	Result  *Result
}

// EventCallback receives session events. It runs on the keyer's dispatcher
// goroutine or on the goroutine that called Start or Stop, so it must be
// non-blocking and fast, and must not call back into the Controller.
type EventCallback func(Event)

// Player keys text. *keyer.Keyer satisfies it.
type Player interface {
	Play(text string, onProgress keyer.ProgressCallback, onFinish keyer.FinishCallback)
	Stop()
	Settings() keyer.Settings
}

// Recorder stores finished sessions.
type Recorder interface {
	Record(ctx context.Context, r Result) error
}

// Result describes one session.
type Result struct {
	ID string
	// Text is the generated body
	Text string
	// Played is the part of Text that was heard before the session ended
	Played        string
	Transcription string
	// Score is nil when nothing was transcribed
	Score     *score.Score
	Completed bool
	StartedAt time.Time
	EndedAt   time.Time
	WPM       int
	GroupSize int
}

// Options select what the next session generates.
type Options struct {
	Charset    string
	TotalChars int
	Preamble   string
}

// Controller is the Idle/Playing state machine around a Player.
type Controller struct {
	player   Player
	recorder Recorder
	logger   *zap.Logger
	gen      *Generator
	now      func() time.Time

	// opMu serializes Start and Stop
	opMu sync.Mutex

	// records tracks sessions still being written to the recorder
	records sync.WaitGroup

	// mu guards the fields below; it is never held while calling the player
	mu            sync.Mutex
	opts          Options
	state         State
	session       uint64
	body          []rune
	offset        int
	lastIndex     int
	transcription string
	startedAt     time.Time
	settings      keyer.Settings
	history       []string
	last          *Result
	callback      EventCallback
}

// Option configures a Controller.
type Option func(*Controller)

// WithRecorder stores every finished session.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithGenerator replaces the random text source.
func WithGenerator(g *Generator) Option {
	return func(c *Controller) { c.gen = g }
}

// WithClock replaces time.Now for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates an idle controller.
func NewController(player Player, opts Options, options ...Option) *Controller {
	c := &Controller{
		player:    player,
		logger:    zap.NewNop(),
		gen:       NewGenerator(),
		now:       time.Now,
		opts:      opts,
		lastIndex: -1,
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// SetCallback sets the event callback. nil clears it.
func (c *Controller) SetCallback(cb EventCallback) {
	c.mu.Lock()
	c.callback = cb
	c.mu.Unlock()
}

// SetOptions changes what the next session generates.
func (c *Controller) SetOptions(opts Options) {
	c.mu.Lock()
	c.opts = opts
	c.mu.Unlock()
}

// Options returns the current options.
func (c *Controller) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Text returns the body of the current or last session.
func (c *Controller) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.body)
}

// SetTranscription records what the user has typed so far.
func (c *Controller) SetTranscription(s string) {
	c.mu.Lock()
	c.transcription = s
	c.mu.Unlock()
}

// History returns up to HistoryLimit played texts, oldest first.
func (c *Controller) History() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.history...)
}

// LastResult returns the result of the last finished session, if any.
func (c *Controller) LastResult() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Result{}, false
	}
	return *c.last, true
}

// Start toggles the controller. From Idle it generates text and starts
// playing; from Playing it behaves like Stop. ErrEmptyAlphabet leaves the
// controller Idle.
func (c *Controller) Start() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.State() == Playing {
		c.halt()
		return nil
	}
	return c.begin()
}

// Stop ends a session early and scores what was heard. It does nothing when Idle.
func (c *Controller) Stop() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.halt()
}

// Score re-scores the last session against transcription.
// It reports false when no session has finished yet.
func (c *Controller) Score(transcription string) (score.Score, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return score.Score{}, false
	}
	s := score.Compute(c.last.Played, transcription, c.last.GroupSize)
	c.last.Transcription = transcription
	c.last.Score = &s
	return s, true
}

func (c *Controller) begin() error {
	settings := c.player.Settings()
	opts := c.Options()

	body, err := c.gen.Generate(opts.Charset, opts.TotalChars, settings.GroupSize)
	if err != nil {
		return err
	}

	text := body
	offset := 0
	if preamble := strings.ToUpper(strings.TrimSpace(opts.Preamble)); preamble != "" {
		text = preamble + " " + body
		offset = len([]rune(preamble)) + 1
	}

	c.mu.Lock()
	c.session++
	id := c.session
	c.state = Playing
	c.body = []rune(body)
	c.offset = offset
	c.lastIndex = -1
	c.transcription = ""
	c.startedAt = c.now()
	c.settings = settings
	c.mu.Unlock()

	c.logger.Info("session started",
		zap.Uint64("session", id),
		zap.Int("chars", opts.TotalChars),
		zap.Int("wpm", settings.WPM),
		zap.Int("group_size", settings.GroupSize))

	c.player.Play(text,
		func(p keyer.Progress) { c.onProgress(id, p) },
		func() { c.onFinish(id) })
	return nil
}

// halt ends the session before the player finishes.
func (c *Controller) halt() {
	c.mu.Lock()
	if c.state != Playing {
		c.mu.Unlock()
		return
	}
	id := c.session
	res := c.finishLocked(false)
	cb := c.callback
	c.mu.Unlock()

	c.player.Stop()
	c.complete(id, res, cb)
}

func (c *Controller) onProgress(id uint64, p keyer.Progress) {
	c.mu.Lock()
	if c.session != id || c.state != Playing {
		c.mu.Unlock()
		return
	}

	var events []Event
	if p.Index < c.offset {
		events = append(events, Event{Kind: EventClear, Session: id, Index: -1})
	} else {
		idx := p.Index - c.offset
		c.lastIndex = idx
		events = append(events, Event{Kind: EventIndex, Session: id, Index: idx})
		if p.GroupEnd {
			events = append(events, Event{Kind: EventGroup, Session: id, Index: idx})
		}
	}
	cb := c.callback
	c.mu.Unlock()

	if cb != nil {
		for _, e := range events {
			cb(e)
		}
	}
}

func (c *Controller) onFinish(id uint64) {
	c.mu.Lock()
	if c.session != id || c.state != Playing {
		c.mu.Unlock()
		return
	}
	res := c.finishLocked(true)
	cb := c.callback
	c.mu.Unlock()

	c.complete(id, res, cb)
}

// finishLocked closes the session and builds its result. c.mu must be held.
func (c *Controller) finishLocked(completed bool) Result {
	id := c.session
	played := string(c.body)
	if !completed {
		played = delivered(c.body, c.lastIndex)
	}

	res := Result{
		ID:            uuid.NewString(),
		Text:          string(c.body),
		Played:        played,
		Transcription: c.transcription,
		Completed:     completed,
		StartedAt:     c.startedAt,
		EndedAt:       c.now(),
		WPM:           c.settings.WPM,
		GroupSize:     c.settings.GroupSize,
	}
	if score.Normalize(c.transcription) != "" {
		s := score.Compute(played, c.transcription, c.settings.GroupSize)
		res.Score = &s
	}

	if played != "" {
		c.history = append(c.history, played)
		if len(c.history) > HistoryLimit {
			c.history = c.history[len(c.history)-HistoryLimit:]
		}
	}

	last := res
	c.last = &last
	c.state = Idle
	c.session++
	c.lastIndex = -1

	c.logger.Info("session finished",
		zap.Uint64("session", id),
		zap.Bool("completed", completed),
		zap.Int("played", len([]rune(played))))
	return res
}

// Wait blocks until every finished session has been handed to the recorder.
func (c *Controller) Wait() {
	c.records.Wait()
}

// complete records res off the caller's goroutine, which may be the keyer's
// dispatcher, and delivers the finish event.
func (c *Controller) complete(id uint64, res Result, cb EventCallback) {
	if c.recorder != nil {
		c.records.Add(1)
		go func() {
			defer recovery.HandlePanic()
			defer c.records.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.recorder.Record(ctx, res); err != nil {
				c.logger.Warn("record session", zap.String("id", res.ID), zap.Error(err))
			}
		}()
	}
	if cb != nil {
		cb(Event{Kind: EventFinish, Session: id, Index: -1, Result: &res})
	}
}

// delivered is body up to and including lastIndex, without trailing separators.
func delivered(body []rune, lastIndex int) string {
	if lastIndex < 0 {
		return ""
	}
	if lastIndex >= len(body) {
		lastIndex = len(body) - 1
	}
	return strings.TrimRightFunc(string(body[:lastIndex+1]), cw.IsSeparator)
}
