package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS header names carrying the record key and lineage anchor. Keys can
// contain characters that are not valid in subjects (pair keys embed '/'),
// so they travel as headers rather than subject tokens.
const (
	HeaderKey    = "Stargate-Key"
	HeaderAnchor = "Stargate-Anchor"
)

// JetStreamEmitter publishes aggregation records to NATS JetStream, one
// subject per stream under the aggregation.> hierarchy.
type JetStreamEmitter struct {
	js     nats.JetStreamContext
	prefix string
}

// NewJetStreamEmitter creates an emitter and ensures the backing AGGREGATION
// stream exists.
func NewJetStreamEmitter(js nats.JetStreamContext) (*JetStreamEmitter, error) {
	_, err := js.StreamInfo("AGGREGATION")
	if err != nil {
		streamConfig := &nats.StreamConfig{
			Name:      "AGGREGATION",
			Subjects:  []string{"aggregation.>"},
			Retention: nats.InterestPolicy,
			Storage:   nats.FileStorage,
			MaxAge:    24 * time.Hour,
			Replicas:  1,
		}
		if _, err = js.AddStream(streamConfig); err != nil {
			return nil, fmt.Errorf("failed to create aggregation stream: %w", err)
		}
	}

	return &JetStreamEmitter{js: js, prefix: "aggregation."}, nil
}

// Emit publishes one keyed record to the stream's subject. Publishing is
// fire-and-forget relative to the record's outcome; the caller decides what
// a failure means.
func (e *JetStreamEmitter) Emit(ctx context.Context, stream, key string, payload any, anchor string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", stream, err)
	}

	msg := nats.NewMsg(e.prefix + stream)
	msg.Header.Set(HeaderKey, key)
	msg.Header.Set(HeaderAnchor, anchor)
	msg.Data = data

	if _, err := e.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}
	return nil
}
