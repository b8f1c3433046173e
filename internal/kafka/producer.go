package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// CheckinRecord is the payload streamed for every winning check-in.
type CheckinRecord struct {
	AttendeeID  string    `json:"attendee_id"`
	EventID     string    `json:"event_id"`
	FullName    string    `json:"full_name"`
	CheckedInAt time.Time `json:"checked_in_at"`
}

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

// PublishCheckinRecorded streams a check-in record, keyed by event so a
// consumer sees each event's check-ins in order.
func (p *Producer) PublishCheckinRecorded(ctx context.Context, record CheckinRecord) error {
	msgBytes, err := json.Marshal(record)
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(ctx,
		kafka.Message{
			Key:   []byte(record.EventID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
