package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/rs/zerolog/log"

	"github.com/EO-DataHub/eodhp-user-admin/models"
)

const sendTimeout = 5 * time.Second

// Notifier publishes user status changes.
type Notifier interface {
	Notify(event models.UserStatusEvent) error
	Close()
}

type EventPublisher struct {
	client   pulsar.Client
	producer pulsar.Producer
}

// NewEventPublisher initializes the Pulsar client and producer.
func NewEventPublisher(pulsarURL, topic string) (*EventPublisher, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL: pulsarURL,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create Pulsar client: %w", err)
	}

	producer, err := client.CreateProducer(pulsar.ProducerOptions{
		Topic: topic,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("could not create Pulsar producer: %w", err)
	}

	log.Info().Str("topic", topic).Msg("Pulsar client and producer initialized successfully")
	return &EventPublisher{client: client, producer: producer}, nil
}

// Notify publishes event keyed by user ID so changes to one user stay ordered.
func (p *EventPublisher) Notify(event models.UserStatusEvent) error {
	message, err := EncodeStatusEvent(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	_, err = p.producer.Send(ctx, &pulsar.ProducerMessage{
		Key:     event.UserID,
		Payload: message,
	})
	if err != nil {
		return fmt.Errorf("could not send event to Pulsar: %w", err)
	}

	log.Debug().Str("user_id", event.UserID).Str("status", string(event.Status)).Msg("event sent to Pulsar")
	return nil
}

// Close closes the Pulsar producer and client.
func (p *EventPublisher) Close() {
	p.producer.Close()
	p.client.Close()
	log.Info().Msg("Pulsar client and producer closed successfully")
}

// EncodeStatusEvent serializes event as JSON.
func EncodeStatusEvent(event models.UserStatusEvent) ([]byte, error) {
	message, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("could not serialize event payload: %w", err)
	}
	return message, nil
}

// DecodeStatusEvent parses and validates a published status event.
func DecodeStatusEvent(payload []byte) (models.UserStatusEvent, error) {
	var event models.UserStatusEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return event, fmt.Errorf("could not decode event payload: %w", err)
	}
	if event.UserID == "" {
		return event, fmt.Errorf("event has no userId")
	}
	if !event.Status.Valid() {
		return event, fmt.Errorf("event has invalid status %q", event.Status)
	}
	return event, nil
}
