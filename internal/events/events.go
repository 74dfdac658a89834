// Package events publishes security events to NATS JetStream so downstream
// consumers (alerting, analytics) can react to authentication activity.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects for published security events.
const (
	SubjectLoginSucceeded  = "crm.auth.login.succeeded"
	SubjectLoginFailed     = "crm.auth.login.failed"
	SubjectAccountLocked   = "crm.auth.account.locked"
	SubjectSessionIssued   = "crm.auth.session.issued"
	SubjectTokenRevoked    = "crm.auth.token.revoked"
	SubjectPasswordChanged = "crm.auth.password.changed"
)

// Event is the envelope published on every subject.
type Event struct {
	UserID   uint           `json:"user_id,omitempty"`
	Username string         `json:"username,omitempty"`
	At       time.Time      `json:"at"`
	Details  map[string]any `json:"details,omitempty"`
}

// Publisher wraps a NATS JetStream connection for publishing security events.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher creates a Publisher connected to the provided NATS endpoint.
func NewPublisher(url string, opts ...nats.Option) (*Publisher, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &Publisher{conn: nc, js: js}, nil
}

// Close shuts down the underlying NATS connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// Publish encodes v as JSON and publishes it to the given subject.
func (p *Publisher) Publish(ctx context.Context, subj string, v any) error {
	if p == nil {
		return errors.New("nil publisher")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(subj, data, nats.Context(ctx))
	return err
}
