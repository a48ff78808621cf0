package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "civicdesk.complaint.assigned", Event{Type: ComplaintAssigned}.Subject())
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), Event{Type: ComplaintSubmitted}))
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skipf("TEST_NATS_URL not set, skipping NATS publisher test")
	}

	pub, err := Connect(url)
	require.NoError(t, err)
	defer pub.Close()

	sub, err := pub.nc.SubscribeSync(SubjectPrefix + ">")
	require.NoError(t, err)

	require.NoError(t, pub.Publish(context.Background(), Event{Type: ComplaintStatus, ComplaintID: 7, Status: "Resolved", Actor: "Raj"}))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "civicdesk.complaint.status_changed", msg.Subject)

	var got Event
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, uint(7), got.ComplaintID)
	assert.False(t, got.OccurredAt.IsZero())
}
