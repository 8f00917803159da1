package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LogNotifier writes notifications to the log and dismisses them after
// their TTL.
type LogNotifier struct {
	log    *slog.Logger
	mu     sync.Mutex
	active map[string]Notification
	shown  int
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log, active: make(map[string]Notification)}
}

func (n *LogNotifier) Notify(_ context.Context, note Notification) {
	n.mu.Lock()
	n.active[note.ID] = note
	n.shown++
	n.mu.Unlock()

	n.log.Info(note.Message, "notification_id", note.ID, "reason", note.Reason, "ttl", note.TTL)
	if note.TTL > 0 {
		time.AfterFunc(note.TTL, func() { n.dismiss(note.ID) })
	}
}

func (n *LogNotifier) dismiss(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.active, id)
}

// Active returns the notifications still on screen.
func (n *LogNotifier) Active() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, 0, len(n.active))
	for _, note := range n.active {
		out = append(out, note)
	}
	return out
}

// Shown returns how many notifications were ever shown.
func (n *LogNotifier) Shown() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.shown
}
