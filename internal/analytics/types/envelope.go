package types

import (
	"encoding/json"
	"time"

	"github.com/mylittlestore/pos-backend/pkg/enums"
)

// Envelope is a settlement event as delivered on the analytics topic.
// Version is the payload schema version the producer wrote.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	Version       int                       `json:"version"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}
