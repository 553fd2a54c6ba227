package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-storage/pkg/simplestorage"
)

func TestPublisher_GoChannel(t *testing.T) {
	pubSub := NewGoChannel(nil)
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	publisher := NewPublisher(pubSub, "")
	assert.Equal(t, DefaultTopic, publisher.Topic())

	messages, err := pubSub.Subscribe(ctx, publisher.Topic())
	require.NoError(t, err)

	attachment := &simplestorage.Attachment{
		Entity:      simplestorage.Entity{ID: uuid.New(), TenantID: uuid.New()},
		EntityName:  "invoice",
		OwnerID:     uuid.New(),
		FileName:    "report.pdf",
		ContentType: "application/pdf",
		FileSize:    42,
		StoragePath: "t/invoice/o/report.pdf",
	}
	require.NoError(t, publisher.AttachmentUploaded(ctx, attachment))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, AttachmentUploaded, msg.Metadata.Get(MetadataEventType))

		event, err := Decode(msg)
		require.NoError(t, err)
		assert.Equal(t, attachment.TenantID, event.TenantID)
		assert.Equal(t, attachment.ID, event.ID)
		assert.Equal(t, "invoice", event.Entity)
		require.NotNil(t, event.OwnerID)
		assert.Equal(t, attachment.OwnerID, *event.OwnerID)
		assert.Equal(t, int64(42), event.FileSize)
		assert.Nil(t, event.ExpiryDate)
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

type recordingPublisher struct {
	topic    string
	messages []*message.Message
	err      error
}

func (r *recordingPublisher) Publish(topic string, messages ...*message.Message) error {
	if r.err != nil {
		return r.err
	}
	r.topic = topic
	r.messages = append(r.messages, messages...)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func TestPublisher_TemporaryEvents(t *testing.T) {
	rec := &recordingPublisher{}
	publisher := NewPublisher(rec, "files")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	publisher.now = func() time.Time { return fixed }

	temporary := &simplestorage.Temporary{
		Entity:     simplestorage.Entity{ID: uuid.New(), TenantID: uuid.New()},
		FileName:   "scan.png",
		FileSize:   7,
		ExpiryDate: fixed.Add(time.Hour),
	}

	ctx := context.Background()
	require.NoError(t, publisher.TemporaryUploaded(ctx, temporary))
	require.NoError(t, publisher.TemporaryDropped(ctx, temporary))

	assert.Equal(t, "files", rec.topic)
	require.Len(t, rec.messages, 2)
	assert.Equal(t, TemporaryUploaded, rec.messages[0].Metadata.Get(MetadataEventType))
	assert.Equal(t, TemporaryDropped, rec.messages[1].Metadata.Get(MetadataEventType))

	event, err := Decode(rec.messages[1])
	require.NoError(t, err)
	assert.Equal(t, temporary.ID, event.ID)
	assert.Nil(t, event.OwnerID)
	require.NotNil(t, event.ExpiryDate)
	assert.True(t, temporary.ExpiryDate.Equal(*event.ExpiryDate))
	assert.True(t, fixed.Equal(event.OccurredAt))
}

func TestPublisher_PublishError(t *testing.T) {
	rec := &recordingPublisher{err: errors.New("broker down")}
	publisher := NewPublisher(rec, "files")

	err := publisher.AttachmentDropped(context.Background(), &simplestorage.Attachment{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
