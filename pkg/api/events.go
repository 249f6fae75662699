package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/r3labs/sse/v2"

	"github.com/JaiwanShin/ai-marketing-team/pkg/logging"
)

// RunStream is the SSE stream carrying feed updates.
const RunStream = "run"

// EventStream republishes feed updates as server-sent events. Clients
// connect with ?stream=run; the event name is the update type.
type EventStream struct {
	server *sse.Server
	feed   *Feed
	logger logging.Logger
}

// NewEventStream creates the SSE server and its run stream
func NewEventStream(feed *Feed, logger logging.Logger) *EventStream {
	if logger == nil {
		logger = logging.NewNop()
	}
	server := sse.New()
	server.AutoReplay = false
	server.AutoStream = false
	server.CreateStream(RunStream)

	return &EventStream{
		server: server,
		feed:   feed,
		logger: logger,
	}
}

// Run forwards feed updates to the stream until ctx is done.
func (e *EventStream) Run(ctx context.Context) {
	updates, unsubscribe := e.feed.Subscribe(subscriberBuf)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			e.Publish(update)
		}
	}
}

// Publish sends one update to every connected client.
func (e *EventStream) Publish(update Update) {
	data, err := json.Marshal(update)
	if err != nil {
		e.logger.Error("Failed to encode event", logging.Err(err))
		return
	}
	e.server.Publish(RunStream, &sse.Event{
		Event: []byte(update.Type),
		Data:  data,
	})
}

// ServeHTTP serves the SSE endpoint
func (e *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("stream") == "" {
		q := r.URL.Query()
		q.Set("stream", RunStream)
		r.URL.RawQuery = q.Encode()
	}
	e.server.ServeHTTP(w, r)
}

// Close disconnects every client.
func (e *EventStream) Close() {
	e.server.Close()
}
