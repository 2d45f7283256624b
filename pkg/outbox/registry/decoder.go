package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mylittlestore/pos-backend/pkg/enums"
)

// ErrNoDecoder is returned for an event type and version nobody registered.
var ErrNoDecoder = errors.New("no payload decoder")

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// Decoders maps an event type and payload version to the Go type consumers
// decode it into. Version 0 is read as 1, the first envelope version.
type Decoders struct {
	mu     sync.RWMutex
	byType map[decoderKey]func(json.RawMessage) (any, error)
}

func NewDecoders() *Decoders {
	return &Decoders{byType: make(map[decoderKey]func(json.RawMessage) (any, error))}
}

// Register makes payloads of eventType at version decode into *T.
func Register[T any](d *Decoders, eventType enums.OutboxEventType, version int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byType[keyFor(eventType, version)] = func(raw json.RawMessage) (any, error) {
		out := new(T)
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// Decode returns a pointer to the registered type for eventType at version.
func (d *Decoders) Decode(eventType enums.OutboxEventType, version int, raw json.RawMessage) (any, error) {
	d.mu.RLock()
	decode, ok := d.byType[keyFor(eventType, version)]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w for %s@v%d", ErrNoDecoder, eventType, max(version, 1))
	}
	return decode(raw)
}

func keyFor(eventType enums.OutboxEventType, version int) decoderKey {
	return decoderKey{eventType: eventType, version: max(version, 1)}
}
