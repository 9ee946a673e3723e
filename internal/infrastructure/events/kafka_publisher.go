// Package events publishes token revocation notifications to Kafka so sibling
// services can drop cached authorization state. Publishing is best-effort; the
// Redis blacklist stays authoritative.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/oljc/arcoserve/internal/domain/service"
	"github.com/oljc/arcoserve/pkg/logger"
)

// RevocationEvent is the wire shape of a revocation notification.
type RevocationEvent struct {
	JTI       string    `json:"jti"`
	UserID    int64     `json:"userId"`
	Reason    string    `json:"reason"`
	RevokedAt time.Time `json:"revokedAt"`
}

type kafkaPublisher struct {
	writer *kafka.Writer
	log    logger.Logger
}

// NewKafkaPublisher creates a revocation publisher writing to the given topic.
func NewKafkaPublisher(brokers []string, topic string, log logger.Logger) service.RevocationPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &kafkaPublisher{writer: writer, log: log.WithComponent("events")}
}

func (p *kafkaPublisher) PublishRevoked(ctx context.Context, jti string, userID int64, reason string) error {
	payload, err := json.Marshal(RevocationEvent{
		JTI:       jti,
		UserID:    userID,
		Reason:    reason,
		RevokedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(jti),
		Value: payload,
	})
	if err != nil {
		p.log.Warn(ctx, "revocation event write failed", logger.String("jti", jti), logger.Error(err))
	}
	return err
}

// Close flushes and closes the underlying writer.
func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}
