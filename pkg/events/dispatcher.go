package events

import (
	"encoding/json"
	"fmt"
	"log"
)

// rawHandler decodes the raw payload into its concrete event type.
type rawHandler func(raw []byte) error

type Dispatcher struct {
	handlers map[EventType]rawHandler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[EventType]rawHandler)}
}

func Register[T DomainEvent](d *Dispatcher, et EventType, handler func(T) error) {
	if _, dup := d.handlers[et]; dup {
		log.Printf("[DISPATCHER] Replacing handler for %s", et)
	}
	d.handlers[et] = func(raw []byte) error {
		var evt T
		if err := json.Unmarshal(raw, &evt); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", et, err)
		}
		return handler(evt)
	}
	log.Printf("[DISPATCHER] Registered handler for %s", string(et))
}

// EventEnvelope decodes only the metadata header, enough to route the message.
type EventEnvelope struct {
	Metadata Metadata `json:"mtdt"`
}

func (d *Dispatcher) Dispatch(raw []byte) error {
	var env EventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	log.Printf("[DISPATCHER] Handling order=%s type=%s producer=%s", env.Metadata.OrderId, env.Metadata.Type, env.Metadata.Producer)
	handler, ok := d.handlers[env.Metadata.Type]
	if !ok {
		log.Printf("[DISPATCHER] No handler registered for %s, skipping", env.Metadata.Type)
		return nil
	}

	return handler(raw)
}
