package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	hub.Start(context.Background())
	t.Cleanup(hub.Stop)
	return hub
}

func recvEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case event := <-sub.C:
		return event
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case event := <-sub.C:
		t.Fatalf("unexpected event %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDeliversToMatchingTopic(t *testing.T) {
	hub := startedHub(t)
	sub := hub.Subscribe(Topic{Kind: TopicJob, ID: 42})
	defer sub.Close()

	hub.Publish(context.Background(), Event{Type: "job.assigned", JobID: 42, CustomerID: 7, CompanyID: 3})

	event := recvEvent(t, sub)
	assert.Equal(t, "job.assigned", event.Type)
	assert.Equal(t, int64(42), event.JobID)
}

func TestHubMatchesAnyIdentifier(t *testing.T) {
	hub := startedHub(t)
	cleanerID := int64(31)

	byCustomer := hub.Subscribe(Topic{Kind: TopicCustomer, ID: 7})
	byCleaner := hub.Subscribe(Topic{Kind: TopicCleaner, ID: 31})
	byCompany := hub.Subscribe(Topic{Kind: TopicCompany, ID: 3})
	other := hub.Subscribe(Topic{Kind: TopicJob, ID: 999})
	defer byCustomer.Close()
	defer byCleaner.Close()
	defer byCompany.Close()
	defer other.Close()

	hub.Publish(context.Background(), Event{
		Type:       "job.completed",
		JobID:      42,
		CustomerID: 7,
		CleanerID:  &cleanerID,
		CompanyID:  3,
	})

	recvEvent(t, byCustomer)
	recvEvent(t, byCleaner)
	recvEvent(t, byCompany)
	assertNoEvent(t, other)
}

func TestHubStopClosesSubscriptions(t *testing.T) {
	hub := NewHub(nil)
	hub.Start(context.Background())
	sub := hub.Subscribe(Topic{Kind: TopicJob, ID: 1})

	hub.Stop()

	select {
	case _, ok := <-sub.C:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatalf("subscription channel never closed")
	}
}

func TestHubPublishBeforeStartIsNoOp(t *testing.T) {
	hub := NewHub(nil)
	// must not panic or block
	hub.Publish(context.Background(), Event{Type: "job.paid", JobID: 1})
}

func TestHubStartTwice(t *testing.T) {
	hub := NewHub(nil)
	hub.Start(context.Background())
	hub.Start(context.Background())
	defer hub.Stop()

	sub := hub.Subscribe(Topic{Kind: TopicJob, ID: 5})
	defer sub.Close()
	hub.Publish(context.Background(), Event{Type: "job.paid", JobID: 5})
	require.Equal(t, "job.paid", recvEvent(t, sub).Type)
}
