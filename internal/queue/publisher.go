package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends account events. Callers treat failures as best-effort.
type Publisher interface {
	PublishAccountRegistered(ctx context.Context, ev AccountRegisteredEvent) error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishAccountRegistered(context.Context, AccountRegisteredEvent) error {
	return nil
}

// AMQPPublisher opens a short-lived connection per event. Sign-ups are rare
// enough that a long-lived channel is not worth its reconnect handling.
type AMQPPublisher struct {
	URL         string
	DialTimeout time.Duration
	Log         *slog.Logger
}

func NewPublisher(url string, log *slog.Logger) Publisher {
	if url == "" {
		return NopPublisher{}
	}
	return &AMQPPublisher{URL: url, DialTimeout: 3 * time.Second, Log: log}
}

// PublishAccountRegistered declares the queue (idempotent, durable) and
// publishes ev as a persistent JSON message on the default exchange.
func (p *AMQPPublisher) PublishAccountRegistered(ctx context.Context, ev AccountRegisteredEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(p.DialTimeout)})
	if err != nil {
		return errors.Wrap(err, "rabbitmq dial")
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "rabbitmq channel")
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(RegistrationQueue, true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "rabbitmq queue declare")
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", RegistrationQueue, false, false, pub); err != nil {
		return errors.Wrap(err, "rabbitmq publish")
	}
	p.Log.Debug("published account event", "auth_id", ev.AuthID, "queue", RegistrationQueue)
	return nil
}
