package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrClosed is returned by the consumer when its context ends.
var ErrClosed = errors.New("queue: consumer stopped")

// AuditSink appends events to a JSON-lines file.
type AuditSink struct {
	path string
}

// NewAuditSink returns a sink writing to path, creating its directory on
// first write.
func NewAuditSink(path string) *AuditSink { return &AuditSink{path: path} }

// Write appends one event.
func (s *AuditSink) Write(ev ReservationEvent) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir audit dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	return writeEvent(f, ev)
}

func writeEvent(w io.Writer, ev ReservationEvent) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = w.Write(append(line, '\n'))
	return err
}

// HandleDelivery decodes one message body and hands it to sink.
func HandleDelivery(body []byte, sink func(ReservationEvent) error) error {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.ReservationID == 0 {
		return fmt.Errorf("malformed event: type=%q reservation_id=%d", ev.Type, ev.ReservationID)
	}
	return sink(ev)
}

// StartAuditConsumer consumes the reservation queue until ctx is done,
// reconnecting with exponential backoff. Malformed messages are rejected
// without requeue so they cannot loop.
func StartAuditConsumer(ctx context.Context, url, queueName string, sink *AuditSink, log *slog.Logger) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("audit-consumer: dial failed", "error", err, "retry_in", backoff.String())
			select {
			case <-ctx.Done():
				return ErrClosed
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, queueName, sink, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ErrClosed
		}
		log.Warn("audit-consumer: consume loop ended, reconnecting", "error", err)
		select {
		case <-ctx.Done():
			return ErrClosed
		case <-time.After(2 * time.Second):
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queueName string, sink *AuditSink, log *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("audit-consumer: set QoS failed", "error", err)
	}
	if _, err := declare(ch, queueName); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := HandleDelivery(d.Body, sink.Write); err != nil {
				log.Error("audit-consumer: handle message failed", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}
