package progress

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamEvents(t *testing.T, b *Broker, jobID string) []string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/progress/"+jobID+"/stream", nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.ServeStream(rec, req, jobID)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not terminate")
	}

	var events []string
	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "event: ") {
			events = append(events, strings.TrimPrefix(line, "event: "))
		}
	}
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	return events
}

func TestStreamPreservesEventOrder(t *testing.T) {
	b := NewBroker()
	jobID := "job-1"

	b.Publish(jobID, EventForkStart, map[string]any{"source": "azure/sample"})
	b.Publish(jobID, EventForkOK, map[string]any{"owner": "me", "repo": "sample"})
	b.Publish(jobID, EventWriteAgents, nil)
	b.Publish(jobID, EventAgentStart, map[string]any{"agent": "devin"})
	b.Publish(jobID, EventDone, map[string]any{"status": "success"})

	events := streamEvents(t, b, jobID)
	assert.Equal(t, []string{
		EventForkStart, EventForkOK, EventWriteAgents, EventAgentStart, EventDone,
	}, events)
}

func TestStreamAttachesPercent(t *testing.T) {
	b := NewBroker()
	b.Publish("job-pct", EventForkStart, nil)
	b.Publish("job-pct", EventDone, map[string]any{"status": "success"})

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	rec := httptest.NewRecorder()
	b.ServeStream(rec, req, "job-pct")

	body := rec.Body.String()
	assert.Contains(t, body, `"percent":10`)
	assert.Contains(t, body, `"percent":100`)
}

func TestDoneTerminatesStream(t *testing.T) {
	b := NewBroker()
	b.Publish("job-2", EventDone, map[string]any{"status": "success"})
	b.Publish("job-2", EventForkStart, nil) // after done, never delivered

	events := streamEvents(t, b, "job-2")
	require.NotEmpty(t, events)
	assert.Equal(t, EventDone, events[len(events)-1])
	assert.NotContains(t, events[:len(events)-1], EventForkStart)
}

func TestCancelYieldsCancelledDone(t *testing.T) {
	b := NewBroker()
	b.Cancel("job-3")
	assert.True(t, b.IsCancelled("job-3"))

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	rec := httptest.NewRecorder()
	b.ServeStream(rec, req, "job-3")

	body := rec.Body.String()
	assert.Contains(t, body, "event: done")
	assert.Contains(t, body, `"status":"cancelled"`)
}

func TestForgetClearsJobState(t *testing.T) {
	b := NewBroker()
	b.Cancel("job-5")
	require.True(t, b.IsCancelled("job-5"))

	b.Forget("job-5")
	assert.False(t, b.IsCancelled("job-5"), "a forgotten job id must be reusable")
	assert.Empty(t, b.queues)
	assert.Empty(t, b.cancelled)
}

func TestStreamTeardownKeepsCancelFlag(t *testing.T) {
	b := NewBroker()
	b.Cancel("job-6")

	// The stream terminates with the cancelled done event, but the
	// dispatch pipeline may still be polling between steps.
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	rec := httptest.NewRecorder()
	b.ServeStream(rec, req, "job-6")

	assert.True(t, b.IsCancelled("job-6"))
}

func TestPublishNeverBlocks(t *testing.T) {
	b := NewBroker()
	// No subscriber; overfill the queue and expect drops, not a hang.
	for i := 0; i < queueSize+50; i++ {
		b.Publish("job-4", EventCopyProgress, map[string]any{"copied": i, "total": queueSize + 50})
	}
}

func TestPercentMonotonic(t *testing.T) {
	p := 0
	p = Percent(p, EventForkStart, nil)
	assert.Equal(t, 10, p)
	p = Percent(p, EventPopulateStart, nil)
	assert.Equal(t, 20, p)
	p = Percent(p, EventCopyProgress, map[string]any{"copied": 10, "total": 20})
	assert.Equal(t, 37, p)
	// A late low-water event never regresses the bar.
	p = Percent(p, EventCopyProgress, map[string]any{"copied": 2, "total": 20})
	assert.Equal(t, 37, p)
	p = Percent(p, EventImportOK, nil)
	assert.Equal(t, 55, p)
	p = Percent(p, EventDone, nil)
	assert.Equal(t, 100, p)
}
