package processor

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSAnchor adapts a JetStream message to the Anchor contract: Ack
// acknowledges, Fail negatively acknowledges (the consumer redelivers),
// Discard terminates delivery for good.
type NATSAnchor struct {
	msg *nats.Msg
}

// NewNATSAnchor wraps a delivered JetStream message.
func NewNATSAnchor(msg *nats.Msg) *NATSAnchor {
	return &NATSAnchor{msg: msg}
}

// ID derives the lineage id from the message's stream sequence, so every
// redelivery of the same record carries the same id.
func (a *NATSAnchor) ID() string {
	meta, err := a.msg.Metadata()
	if err != nil {
		return a.msg.Subject
	}
	return fmt.Sprintf("%s-%d", meta.Stream, meta.Sequence.Stream)
}

// Ack reports successful processing.
func (a *NATSAnchor) Ack() error {
	return a.msg.Ack()
}

// Fail requests redelivery.
func (a *NATSAnchor) Fail() error {
	return a.msg.Nak()
}

// Discard stops redelivery of a record that can never succeed.
func (a *NATSAnchor) Discard() error {
	return a.msg.Term()
}
