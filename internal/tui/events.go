package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ColonelBlimp/cwtrainer/internal/practice"
)

// eventsMsg is a batch of controller events in delivery order.
type eventsMsg []practice.Event

// Events queues controller events for the UI. Push never blocks, so it is
// safe to use as the controller callback even while Update is calling into
// the controller.
type Events struct {
	mu     sync.Mutex
	queue  []practice.Event
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewEvents creates an empty queue.
func NewEvents() *Events {
	return &Events{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push appends e. It satisfies practice.EventCallback.
func (q *Events) Push(e practice.Event) {
	q.mu.Lock()
	q.queue = append(q.queue, e)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Close releases a pending wait.
func (q *Events) Close() {
	q.once.Do(func() { close(q.done) })
}

// wait returns a command that blocks until events are queued and delivers
// all of them as one message.
func (q *Events) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-q.signal:
		case <-q.done:
			return nil
		}
		return eventsMsg(q.drain())
	}
}

func (q *Events) drain() []practice.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.queue
	q.queue = nil
	return batch
}
