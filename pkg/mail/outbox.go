package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"talk-chat/config"
	"talk-chat/pkg/metrics"

	"github.com/segmentio/kafka-go"
)

// CodeMail is the outbox record for one verification mail.
type CodeMail struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Outbox publishes verification mails to Kafka; the worker command delivers
// them over SMTP.
type Outbox struct {
	writer messageWriter
}

func NewOutbox(cfg config.KafkaConfig) *Outbox {
	return &Outbox{writer: &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}}
}

func (o *Outbox) SendCode(ctx context.Context, email, code string) error {
	data, err := json.Marshal(CodeMail{Email: email, Code: code, CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode code mail: %w", err)
	}

	err = o.writer.WriteMessages(ctx, kafka.Message{Key: []byte(email), Value: data})
	if err != nil {
		metrics.MailQueued.WithLabelValues("kafka", "error").Inc()
		return fmt.Errorf("publish code mail: %w", err)
	}
	metrics.MailQueued.WithLabelValues("kafka", "ok").Inc()
	return nil
}

func (o *Outbox) Close() error {
	return o.writer.Close()
}
