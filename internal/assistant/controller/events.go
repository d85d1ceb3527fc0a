package controller

import (
	"time"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
	"github.com/finpal-core-poc-v1/assistant/internal/assistant/speech"
)

type EventType string

const (
	EventPhaseChanged    EventType = "phase_changed"
	EventMessageAppended EventType = "message_appended"
	EventQuotaExhausted  EventType = "quota_exhausted"
	EventActionExecuted  EventType = "action_executed"
	EventCaptureFailed   EventType = "capture_failed"
)

// Event is delivered to UI subscribers. Only the fields relevant to Type are set.
type Event struct {
	Type         EventType        `json:"type"`
	Phase        model.TurnPhase  `json:"phase,omitempty"`
	Message      *model.Message   `json:"message,omitempty"`
	Action       *model.Action    `json:"action,omitempty"`
	Expense      *model.Expense   `json:"expense,omitempty"`
	CaptureError speech.ErrorKind `json:"capture_error,omitempty"`
	At           time.Time        `json:"at"`
}

const subscriberBuffer = 64

// Subscribe returns a channel of controller events and a function that
// unsubscribes and closes it. Events are dropped for subscribers whose buffer
// is full.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subsMu.Unlock()

	var once bool
	return ch, func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		if once {
			return
		}
		once = true
		delete(c.subs, id)
		close(ch)
	}
}

func (c *Controller) publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = c.now()
	}
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for id, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.log.Warn().Int("subscriber", id).Str("event", string(ev.Type)).Msg("dropping event for slow subscriber")
		}
	}
}
