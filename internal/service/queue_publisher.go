// Package service composes the API client, caches and broker into the
// operations the web service and CLI expose.
package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/sourcetrak/internal/queue"
)

// EventPublisher sends domain events to RabbitMQ.  A nil *EventPublisher is
// valid and drops every event, which is how events are disabled.
type EventPublisher struct {
	URL string
}

// NewEventPublisher returns nil when events are disabled.
func NewEventPublisher(url string, enabled bool) *EventPublisher {
	if !enabled || url == "" {
		return nil
	}
	return &EventPublisher{URL: url}
}

// PublishEntrySubmitted publishes ev to the entry.submitted queue as a
// persistent message.  Errors are logged and returned so the caller can
// choose to ignore them; a submission never fails because of the broker.
func (p *EventPublisher) PublishEntrySubmitted(ctx context.Context, ev q.EntrySubmittedEvent) error {
	if p == nil {
		return nil
	}
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// durable so events survive broker restarts
	if _, err := ch.QueueDeclare(q.EntrySubmittedQueue, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", q.EntrySubmittedQueue, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
