// Package events publishes file lifecycle events to a watermill publisher.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/tendant/simple-storage/pkg/simplestorage"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "simple-storage.files"

// Event types carried in the event_type metadata key.
const (
	AttachmentUploaded = "attachment.uploaded"
	AttachmentDropped  = "attachment.dropped"
	TemporaryUploaded  = "temporary.uploaded"
	TemporaryDropped   = "temporary.dropped"
)

// MetadataEventType is the message metadata key holding the event type.
const MetadataEventType = "event_type"

// Event is the JSON payload of every published message.
type Event struct {
	Type        string     `json:"type"`
	TenantID    uuid.UUID  `json:"tenantId"`
	ID          uuid.UUID  `json:"id"`
	Entity      string     `json:"entity,omitempty"`
	OwnerID     *uuid.UUID `json:"ownerId,omitempty"`
	FileName    string     `json:"fileName"`
	ContentType string     `json:"contentType,omitempty"`
	FileSize    int64      `json:"fileSize"`
	StoragePath string     `json:"storagePath,omitempty"`
	ExpiryDate  *time.Time `json:"expiryDate,omitempty"`
	OccurredAt  time.Time  `json:"occurredAt"`
}

// Publisher is a simplestorage.EventSink backed by a watermill publisher.
type Publisher struct {
	pub   message.Publisher
	topic string
	now   func() time.Time
}

// NewPublisher wraps pub. An empty topic selects DefaultTopic.
func NewPublisher(pub message.Publisher, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{pub: pub, topic: topic, now: time.Now}
}

// NewGoChannel returns an in-process pub/sub suitable for a single binary.
func NewGoChannel(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	return gochannel.NewGoChannel(gochannel.Config{}, logger)
}

// Topic returns the topic events are published to.
func (p *Publisher) Topic() string {
	return p.topic
}

func (p *Publisher) AttachmentUploaded(ctx context.Context, a *simplestorage.Attachment) error {
	return p.publish(ctx, attachmentEvent(AttachmentUploaded, a))
}

func (p *Publisher) AttachmentDropped(ctx context.Context, a *simplestorage.Attachment) error {
	return p.publish(ctx, attachmentEvent(AttachmentDropped, a))
}

func (p *Publisher) TemporaryUploaded(ctx context.Context, t *simplestorage.Temporary) error {
	return p.publish(ctx, temporaryEvent(TemporaryUploaded, t))
}

func (p *Publisher) TemporaryDropped(ctx context.Context, t *simplestorage.Temporary) error {
	return p.publish(ctx, temporaryEvent(TemporaryDropped, t))
}

func (p *Publisher) publish(ctx context.Context, event Event) error {
	event.OccurredAt = p.now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataEventType, event.Type)
	msg.SetContext(ctx)

	if err := p.pub.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

func attachmentEvent(eventType string, a *simplestorage.Attachment) Event {
	ownerID := a.OwnerID
	return Event{
		Type:        eventType,
		TenantID:    a.TenantID,
		ID:          a.ID,
		Entity:      a.EntityName,
		OwnerID:     &ownerID,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		FileSize:    a.FileSize,
		StoragePath: a.StoragePath,
	}
}

func temporaryEvent(eventType string, t *simplestorage.Temporary) Event {
	expiry := t.ExpiryDate
	return Event{
		Type:        eventType,
		TenantID:    t.TenantID,
		ID:          t.ID,
		FileName:    t.FileName,
		ContentType: t.ContentType,
		FileSize:    t.FileSize,
		StoragePath: t.StoragePath,
		ExpiryDate:  &expiry,
	}
}

// Decode parses a published message back into an Event.
func Decode(msg *message.Message) (Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return Event{}, fmt.Errorf("failed to decode event %s: %w", msg.UUID, err)
	}
	return event, nil
}

var _ simplestorage.EventSink = (*Publisher)(nil)
