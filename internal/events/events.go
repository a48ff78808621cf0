// Package events publishes complaint lifecycle events to NATS so other
// services (dashboards, SLA tracking) can follow complaints without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Type names a lifecycle event.
type Type string

const (
	ComplaintSubmitted Type = "complaint.submitted"
	ComplaintAssigned  Type = "complaint.assigned"
	ComplaintStatus    Type = "complaint.status_changed"
)

// SubjectPrefix is prepended to every event type to form the NATS subject.
const SubjectPrefix = "civicdesk."

// Event is the JSON payload published for each transition.
type Event struct {
	Type        Type      `json:"type"`
	ComplaintID uint      `json:"complaint_id"`
	Status      string    `json:"status"`
	Actor       string    `json:"actor,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Subject returns the NATS subject for e.
func (e Event) Subject() string {
	return SubjectPrefix + string(e.Type)
}

// Publisher delivers events. Publishing is best effort; callers log failures.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events. Used when NATS is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// NATSPublisher publishes events on a core NATS connection.
type NATSPublisher struct {
	nc *nats.Conn
}

// Connect dials NATS and returns a publisher.
func Connect(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("civicdesk-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATSPublisher{nc: nc}, nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.nc.Publish(e.Subject(), data)
}

// Close flushes pending events and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	_ = p.nc.Flush()
	p.nc.Close()
}
