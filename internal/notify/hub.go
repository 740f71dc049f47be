package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxdeck/voxdeck/pkg/logger"
)

// Type classifies a notification by the outcome it describes
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// DefaultDuration is the auto-dismiss delay applied when Options carries none
const DefaultDuration = 5 * time.Second

// Options describes a notification to be added to the hub
type Options struct {
	Type       Type          `json:"type"`
	Title      string        `json:"title"`
	Message    string        `json:"message"`
	Duration   time.Duration `json:"-"`          // Auto-dismiss delay; zero selects the hub default
	Persistent bool          `json:"persistent"` // Persistent notifications are only removed explicitly
}

// Notification is a live user-facing message. IDs are unique among
// currently-live notifications.
type Notification struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Persistent bool      `json:"persistent"`
	CreatedAt  time.Time `json:"created_at"`
}

// Event describes a change to the hub's notification list
type Event struct {
	Kind         string       `json:"kind"` // "added" or "removed"
	Notification Notification `json:"notification"`
}

// Hub is an explicitly constructed notification sink. It keeps an ordered
// list of live notifications (insertion order = display order), schedules
// auto-removal of non-persistent entries, and fans out add/remove events to
// subscribers. Create one per process (or per test) and Close it when done.
type Hub struct {
	mu              sync.Mutex
	notifications   []Notification
	timers          map[string]*time.Timer
	subscribers     map[chan Event]struct{}
	defaultDuration time.Duration
	closed          bool
	logger          *logger.Logger
}

// NewHub creates a new notification hub. defaultDuration <= 0 selects the
// 5 second default.
func NewHub(defaultDuration time.Duration, log *logger.Logger) *Hub {
	if defaultDuration <= 0 {
		defaultDuration = DefaultDuration
	}

	return &Hub{
		timers:          make(map[string]*time.Timer),
		subscribers:     make(map[chan Event]struct{}),
		defaultDuration: defaultDuration,
		logger:          log.Named("notify"),
	}
}

// Add inserts a new notification with a freshly generated unique id and the
// current timestamp. Unless Persistent is set, removal is scheduled after
// the configured duration.
func (h *Hub) Add(opts Options) Notification {
	notification := Notification{
		ID:         uuid.NewString(),
		Type:       opts.Type,
		Title:      opts.Title,
		Message:    opts.Message,
		Persistent: opts.Persistent,
		CreatedAt:  time.Now(),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return notification
	}

	h.notifications = append(h.notifications, notification)

	if !opts.Persistent {
		duration := opts.Duration
		if duration <= 0 {
			duration = h.defaultDuration
		}
		id := notification.ID
		h.timers[id] = time.AfterFunc(duration, func() {
			h.Remove(id)
		})
	}

	h.publishLocked(Event{Kind: "added", Notification: notification})
	h.mu.Unlock()

	h.logger.Debug("Notification added",
		logger.String("id", notification.ID),
		logger.String("type", string(notification.Type)),
		logger.String("title", notification.Title))

	return notification
}

// Remove deletes a notification by id. Removing an id that is not live is a
// no-op, so expiry timers and explicit dismissal never conflict.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if timer, ok := h.timers[id]; ok {
		timer.Stop()
		delete(h.timers, id)
	}

	for i, n := range h.notifications {
		if n.ID == id {
			h.notifications = append(h.notifications[:i], h.notifications[i+1:]...)
			h.publishLocked(Event{Kind: "removed", Notification: n})
			return
		}
	}
}

// List returns the live notifications in insertion order
func (h *Hub) List() []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Notification, len(h.notifications))
	copy(out, h.notifications)
	return out
}

// Subscribe registers a listener for add/remove events. The returned cancel
// function must be called to release the subscription. Events are dropped
// for subscribers that fall behind.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Close stops all pending expiry timers and closes every subscription
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, timer := range h.timers {
		timer.Stop()
		delete(h.timers, id)
	}
	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
}

// publishLocked fans out an event to all subscribers; h.mu must be held
func (h *Hub) publishLocked(event Event) {
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is not keeping up, drop the event
		}
	}
}
