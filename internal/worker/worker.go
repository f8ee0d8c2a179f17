package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"talk-chat/config"
	"talk-chat/pkg/mail"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sender delivers one verification code.
type Sender interface {
	SendCode(ctx context.Context, email, code string) error
}

// Worker drains the mail outbox topic and delivers each record once.
// Delivery failures are logged and the record is committed anyway.
type Worker struct {
	context   context.Context
	cancel    func()
	waitGroup sync.WaitGroup
	logger    *zap.Logger
	reader    messageReader
	sender    Sender
	timeout   time.Duration
}

func NewKafkaReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.Group,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
}

func NewWorker(logger *zap.Logger, reader messageReader, sender Sender) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		context: ctx,
		cancel:  cancel,
		logger:  logger,
		reader:  reader,
		sender:  sender,
		timeout: 30 * time.Second,
	}
}

func (w *Worker) Start() {
	w.logger.Info("starting mail worker")
	w.waitGroup.Add(1)
	go w.run()
}

func (w *Worker) Stop() error {
	w.logger.Info("stopping mail worker")
	w.cancel()
	w.waitGroup.Wait()
	return w.reader.Close()
}

func (w *Worker) run() {
	defer w.waitGroup.Done()

	for {
		msg, err := w.reader.FetchMessage(w.context)
		if err != nil {
			if w.context.Err() != nil {
				return
			}
			w.logger.Error("error receiving kafka message", zap.Error(err))
			select {
			case <-w.context.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		w.handle(msg)

		if err := w.reader.CommitMessages(w.context, msg); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("error committing kafka message", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (w *Worker) handle(msg kafka.Message) {
	var rec mail.CodeMail
	if err := json.Unmarshal(msg.Value, &rec); err != nil || rec.Email == "" || rec.Code == "" {
		w.logger.Warn("skipping malformed outbox record", zap.Int64("offset", msg.Offset), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(w.context, w.timeout)
	defer cancel()
	if err := w.sender.SendCode(ctx, rec.Email, rec.Code); err != nil {
		w.logger.Error("error sending verification mail", zap.String("email", rec.Email), zap.Error(err))
		return
	}
	w.logger.Info("sent verification mail", zap.String("email", rec.Email))
}
