package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/vaishnaviprints/printlogic/pkg/database"
	svcerror "github.com/vaishnaviprints/printlogic/pkg/error"
	"github.com/vaishnaviprints/printlogic/pkg/events"
	"github.com/vaishnaviprints/printlogic/pkg/kafka"
	"github.com/vaishnaviprints/printlogic/pkg/utils"
)

// Relay drains the transactional outbox onto kafka. Events are written to
// the outbox in the same transaction as the state change that caused them
// and published here, so a crash between the two never loses an event.
type Relay struct {
	Producer *kafka.Producer
	Store    database.Store
	Every    time.Duration
	Batch    int
	Topic    string
}

func NewRelay(producer *kafka.Producer, store database.Store, topic string) *Relay {
	return &Relay{
		Producer: producer,
		Store:    store,
		Every:    utils.GetEnvDuration("OUTBOX_INTERVAL", 500*time.Millisecond),
		Batch:    utils.GetEnvInt("OUTBOX_BATCH", 200),
		Topic:    topic,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.FlushMessages(ctx); err != nil {
				switch {
				case errors.Is(err, svcerror.ErrDatabaseError) || errors.Is(err, svcerror.ErrPublishError):
					// transient, retry on the next tick
					if ed := new(svcerror.ErrorDetails); errors.As(err, &ed) {
						log.Printf("[ERROR] msg=%s trace=%s cause=%v at=%s",
							ed.Msg, ed.TraceString(), ed.Cause, ed.OccuredAt)
					}
				default:
					return svcerror.AddOp(err, "Outbox.Run")
				}
			}
		}
	}
}

func (r *Relay) FlushMessages(ctx context.Context) error {
	batch, err := r.Store.GetUnpublishedOutbox(ctx, r.Batch, r.Topic)
	if err != nil {
		return svcerror.AddOp(err, "Outbox.FlushMessages")
	}

	if len(batch) == 0 {
		return nil
	}

	err = r.PublishMessages(ctx, batch)
	if err != nil {
		return svcerror.AddOp(err, "Outbox.FlushMessages")
	}

	ids := make([]string, 0, len(batch))
	for _, outbox := range batch {
		ids = append(ids, outbox.Id)
	}

	if err := r.Store.UpdateOutboxPublished(ctx, ids); err != nil {
		return svcerror.AddOp(err, "Outbox.FlushMessages")
	}
	return nil
}

func (r *Relay) PublishMessages(ctx context.Context, batch []database.Outbox) error {
	msgs := make([]kafka.EventMessage, 0, len(batch))
	for _, outbox := range batch {
		msgs = append(msgs, kafka.EventMessage{
			Topic: r.Topic,
			Key:   outbox.Key,
			Event: outbox.Payload,
		})
	}
	if err := r.Producer.PublishMultipleEvents(ctx, msgs); err != nil {
		return svcerror.New(
			svcerror.ErrPublishError,
			svcerror.WithOp("Outbox.PublishMessages"),
			svcerror.WithMsg("failed to publish multiple events"),
			svcerror.WithCause(err),
			svcerror.WithTime(time.Now().UTC()),
		)
	}
	return nil
}

func (r *Relay) PublishToDLQ(ctx context.Context, event events.EventDLQ) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return svcerror.New(
			svcerror.ErrInternalError,
			svcerror.WithOp("Outbox.PublishToDLQ"),
			svcerror.WithMsg("failed to marshal dlq event"),
			svcerror.WithCause(err),
			svcerror.WithTime(time.Now().UTC()),
		)
	}
	if err := r.Producer.PublishEvent(ctx, kafka.EventMessage{
		Topic: kafka.TopicDeadLetterQueue,
		Key:   event.Metadata.OrderId,
		Event: payload,
	}); err != nil {
		return svcerror.New(
			svcerror.ErrPublishError,
			svcerror.WithOp("Outbox.PublishToDLQ"),
			svcerror.WithMsg("failed to publish dlq event"),
			svcerror.WithCause(err),
			svcerror.WithTime(time.Now().UTC()),
		)
	}
	return nil
}

// SaveOutboxEvent stores an already-serialized event envelope for the relay
// to pick up. Callers invoke it inside their own state-changing flow.
func (r *Relay) SaveOutboxEvent(ctx context.Context, raw []byte) error {
	var env events.EventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return svcerror.New(
			svcerror.ErrInternalError,
			svcerror.WithOp("Outbox.SaveOutboxEvent"),
			svcerror.WithMsg("unmarshal payload"),
			svcerror.WithCause(err),
			svcerror.WithTime(time.Now().UTC()),
		)
	}

	outbox := database.Outbox{
		Id:        uuid.NewString(),
		Key:       env.Metadata.OrderId,
		EventType: string(env.Metadata.Type),
		Topic:     r.Topic,
		Payload:   raw,
	}

	if err := r.Store.SaveOutbox(ctx, outbox); err != nil {
		return svcerror.AddOp(err, "Outbox.SaveOutboxEvent")
	}

	return nil
}
