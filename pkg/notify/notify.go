package notify

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vaishnaviprints/printlogic/pkg/events"
	"github.com/vaishnaviprints/printlogic/pkg/kafka"
)

// Notifier delivers an order offer to a vendor. Delivery is best-effort:
// the acceptance window runs regardless, so a failed push never blocks the
// assignment flow.
type Notifier interface {
	OfferOrder(ctx context.Context, vendorId string, offer events.EventOrderOffered) error
}

// Registry tracks live vendor channels (push connections held by the
// vendor app) and falls back to the kafka notifications topic when the
// vendor has no open channel.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]chan<- events.EventOrderOffered
	producer *kafka.Producer
}

func NewRegistry(producer *kafka.Producer) *Registry {
	return &Registry{
		channels: make(map[string]chan<- events.EventOrderOffered),
		producer: producer,
	}
}

// Register attaches a live channel for the vendor. It replaces any prior
// channel; the returned func detaches it again.
func (r *Registry) Register(vendorId string, ch chan<- events.EventOrderOffered) func() {
	r.mu.Lock()
	r.channels[vendorId] = ch
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		if r.channels[vendorId] == ch {
			delete(r.channels, vendorId)
		}
		r.mu.Unlock()
	}
}

func (r *Registry) OfferOrder(ctx context.Context, vendorId string, offer events.EventOrderOffered) error {
	r.mu.RLock()
	ch, ok := r.channels[vendorId]
	r.mu.RUnlock()

	if ok {
		select {
		case ch <- offer:
			return nil
		default:
			log.Printf("[NOTIFY] Channel for vendor %s is full, falling back to topic", vendorId)
		}
	}

	return r.publish(ctx, vendorId, offer)
}

func (r *Registry) publish(ctx context.Context, vendorId string, offer events.EventOrderOffered) error {
	payload, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	return r.producer.PublishEvent(ctx, kafka.EventMessage{
		Topic: kafka.TopicNotifications,
		Key:   vendorId,
		Event: payload,
	})
}

// NewOffer builds the vendor-facing offer payload. The summary keeps the
// customer anonymous until the vendor accepts.
func NewOffer(orderId, vendorId, summary string, total string, createdAt time.Time, timeout time.Duration) events.EventOrderOffered {
	return events.EventOrderOffered{
		Metadata: events.Metadata{
			MessageId: uuid.NewString(),
			Type:      events.EvtTypeOrderOffered,
			OrderId:   orderId,
			Timestamp: time.Now().UTC(),
			Producer:  events.ProducerAssignmentSvc,
		},
		VendorId:       vendorId,
		Summary:        summary,
		Total:          total,
		CreatedAt:      createdAt,
		TimeoutMinutes: int(timeout.Minutes()),
	}
}
