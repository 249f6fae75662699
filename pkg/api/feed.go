package api

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/JaiwanShin/ai-marketing-team/pkg/logging"
	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
)

// Update types pushed to live subscribers
const (
	UpdateStatus = "status"
	UpdateLog    = "log"
	UpdateReset  = "reset"
	UpdatePong   = "pong"
	UpdateError  = "error"
)

// Update is one message pushed over the websocket and SSE feeds
type Update struct {
	Type      string           `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Status    *StatusView      `json:"status,omitempty"`
	Log       *models.LogEntry `json:"log,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// StatusView is the persisted snapshot plus what this process knows about
// the run it supervises.
type StatusView struct {
	models.RunStatus

	// Running is true while a supervised run is executing
	Running bool `json:"running"`

	// Stage is the workflow stage, when the engine is in this process
	Stage string `json:"stage,omitempty"`
}

// Feed polls the run log on an interval and fans new entries and status
// changes out to subscribers. It is the only reader of the store for the
// live surfaces, so N clients cost one poll.
type Feed struct {
	status   func() StatusView
	tail     func(limit int) []models.LogEntry
	interval time.Duration
	limit    int
	logger   logging.Logger

	pollMu     sync.Mutex
	lastStatus *StatusView
	lastTail   []models.LogEntry

	subMu sync.RWMutex
	subs  map[chan Update]struct{}

	wake chan struct{}
}

// NewFeed creates a feed over a status and tail source
func NewFeed(
	status func() StatusView,
	tail func(limit int) []models.LogEntry,
	interval time.Duration,
	limit int,
	logger logging.Logger,
) *Feed {
	if interval <= 0 {
		interval = time.Second
	}
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Feed{
		status:   status,
		tail:     tail,
		interval: interval,
		limit:    limit,
		logger:   logger,
		subs:     make(map[chan Update]struct{}),
		wake:     make(chan struct{}, 1),
	}
}

// Subscribe registers a subscriber. Updates are dropped for a subscriber
// whose buffer is full. The returned func unregisters it.
func (f *Feed) Subscribe(buffer int) (<-chan Update, func()) {
	ch := make(chan Update, buffer)
	f.subMu.Lock()
	f.subs[ch] = struct{}{}
	f.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.subMu.Lock()
			delete(f.subs, ch)
			f.subMu.Unlock()
		})
	}
}

// Subscribers returns the number of registered subscribers.
func (f *Feed) Subscribers() int {
	f.subMu.RLock()
	defer f.subMu.RUnlock()
	return len(f.subs)
}

// Snapshot returns the current status followed by the current tail, read
// directly from the store.
func (f *Feed) Snapshot() []Update {
	now := time.Now()
	status := f.status()
	entries := f.tail(f.limit)

	updates := make([]Update, 0, len(entries)+1)
	updates = append(updates, Update{Type: UpdateStatus, Timestamp: now, Status: &status})
	for i := range entries {
		entry := entries[i]
		updates = append(updates, Update{Type: UpdateLog, Timestamp: now, Log: &entry})
	}
	return updates
}

// Wake asks the feed to poll before the next tick.
func (f *Feed) Wake() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Run polls until ctx is done.
func (f *Feed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.Poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Poll()
		case <-f.wake:
			f.Poll()
		}
	}
}

// Poll reads the store once and broadcasts what changed since the last poll.
func (f *Feed) Poll() {
	f.pollMu.Lock()
	defer f.pollMu.Unlock()

	now := time.Now()
	status := f.status()
	entries := f.tail(f.limit)

	if f.lastStatus == nil || !reflect.DeepEqual(*f.lastStatus, status) {
		f.lastStatus = &status
		view := status
		f.broadcast(Update{Type: UpdateStatus, Timestamp: now, Status: &view})
	}

	fresh, reset := newEntries(f.lastTail, entries)
	f.lastTail = entries
	if reset {
		f.broadcast(Update{Type: UpdateReset, Timestamp: now})
	}
	for i := range fresh {
		entry := fresh[i]
		f.broadcast(Update{Type: UpdateLog, Timestamp: now, Log: &entry})
	}
}

func (f *Feed) broadcast(update Update) {
	f.subMu.RLock()
	defer f.subMu.RUnlock()
	for ch := range f.subs {
		select {
		case ch <- update:
		default:
			f.logger.Debug("Dropping update for slow subscriber", logging.F("type", update.Type))
		}
	}
}

// newEntries returns the entries of cur appended after prev. When the last
// entry of prev is no longer in cur the log was cleared or scrolled past the
// window, and the whole of cur is returned with reset set.
func newEntries(prev, cur []models.LogEntry) ([]models.LogEntry, bool) {
	if len(prev) == 0 {
		return cur, false
	}
	last := entryKey(prev[len(prev)-1])
	for i := len(cur) - 1; i >= 0; i-- {
		if entryKey(cur[i]) == last {
			return cur[i+1:], false
		}
	}
	return cur, true
}

func entryKey(e models.LogEntry) string {
	return fmt.Sprintf("%d|%s|%s|%s", e.Timestamp.UnixNano(), e.AgentName, e.Level, e.Message)
}
