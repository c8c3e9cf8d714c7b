// Package progress relays dispatch pipeline events to the browser over
// Server-Sent Events. Each job id owns one buffered channel; the dispatch
// goroutine publishes, the SSE handler drains.
package progress

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"aifoundry/pkg/logx"
)

// Event names emitted by the dispatch pipeline, in completion order.
const (
	EventResolveSource = "resolve-source"
	EventForkStart     = "fork-start"
	EventForkOK        = "fork-ok"
	EventCreateStart   = "create-start"
	EventPopulateStart = "populate-start"
	EventCopyProgress  = "copy-progress"
	EventImportOK      = "import-ok"
	EventCopyOK        = "copy-ok"
	EventWriteAgents   = "write-agents"
	EventAgentStart    = "agent-start"
	EventDone          = "done"
)

// queueSize bounds a job's pending events; publishers never block on a
// slow or absent subscriber, they drop instead.
const queueSize = 256

// Event is one named progress message for a job.
type Event struct {
	Name string
	Data map[string]any
}

// Broker fans dispatch events out to SSE subscribers by job id.
type Broker struct {
	mu        sync.Mutex
	queues    map[string]chan Event
	cancelled map[string]bool
	logger    *logx.Logger
	keepalive time.Duration
}

// NewBroker creates an empty broker with a 15s keep-alive interval.
func NewBroker() *Broker {
	return &Broker{
		queues:    make(map[string]chan Event),
		cancelled: make(map[string]bool),
		logger:    logx.NewLogger("progress"),
		keepalive: 15 * time.Second,
	}
}

func (b *Broker) queue(jobID string) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[jobID]
	if !ok {
		q = make(chan Event, queueSize)
		b.queues[jobID] = q
	}
	return q
}

// Publish enqueues an event for the job. A full queue drops the event
// rather than stalling the dispatch pipeline.
func (b *Broker) Publish(jobID, event string, data map[string]any) {
	if jobID == "" {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	select {
	case b.queue(jobID) <- Event{Name: event, Data: data}:
	default:
		b.logger.Warn("dropping event %s for job %s: queue full", event, jobID)
	}
}

// Cancel marks the job cancelled. The stream terminates with a done event
// and dispatch polls IsCancelled between pipeline steps.
func (b *Broker) Cancel(jobID string) {
	b.mu.Lock()
	b.cancelled[jobID] = true
	b.mu.Unlock()
	// Wake a blocked subscriber so the cancel is noticed promptly.
	b.Publish(jobID, EventDone, map[string]any{"status": "cancelled"})
}

// IsCancelled reports whether Cancel was called for the job.
func (b *Broker) IsCancelled(jobID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancelled[jobID]
}

// release drops the job's queue once its stream has terminated. The
// cancel flag stays until Forget: the dispatch pipeline may still be
// polling it after the stream is gone.
func (b *Broker) release(jobID string) {
	b.mu.Lock()
	delete(b.queues, jobID)
	b.mu.Unlock()
}

// Forget drops all state for a finished job. Publishers call it after
// the final done event, once no pipeline step will consult the cancel
// flag again; an active subscriber keeps its channel reference and still
// drains the events already queued.
func (b *Broker) Forget(jobID string) {
	b.mu.Lock()
	delete(b.queues, jobID)
	delete(b.cancelled, jobID)
	b.mu.Unlock()
}

// ServeStream writes the job's events as an SSE stream until a done event,
// cancellation, or client disconnect. Comment lines keep idle connections
// alive through proxies.
func (b *Broker) ServeStream(w http.ResponseWriter, r *http.Request, jobID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	q := b.queue(jobID)
	defer b.release(jobID)

	ticker := time.NewTicker(b.keepalive)
	defer ticker.Stop()

	percent := 0
	for {
		if b.IsCancelled(jobID) {
			fmt.Fprint(w, "event: done\ndata: {\"status\":\"cancelled\"}\n\n")
			flusher.Flush()
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev := <-q:
			if b.IsCancelled(jobID) {
				fmt.Fprint(w, "event: done\ndata: {\"status\":\"cancelled\"}\n\n")
				flusher.Flush()
				return
			}
			percent = Percent(percent, ev.Name, ev.Data)
			ev.Data["percent"] = percent
			data, err := json.Marshal(ev.Data)
			if err != nil {
				b.logger.Error("failed to encode event %s for job %s: %v", ev.Name, jobID, err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data)
			flusher.Flush()
			if ev.Name == EventDone {
				return
			}
		}
	}
}
