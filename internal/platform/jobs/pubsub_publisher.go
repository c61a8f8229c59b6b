package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/Unit659z/Clover-studio/internal/services"
)

// EventPublisher publishes marketplace domain events to a Pub/Sub topic. Messages carry
// the event type and aggregate id as attributes and are ordered by aggregate id.
type EventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var (
	_ services.OrderEventPublisher   = (*EventPublisher)(nil)
	_ services.ReviewEventPublisher  = (*EventPublisher)(nil)
	_ services.MessageEventPublisher = (*EventPublisher)(nil)
)

// NewEventPublisher constructs a Pub/Sub backed event publisher.
func NewEventPublisher(topic *pubsub.Topic) (*EventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub event publisher: topic is required")
	}
	topic.EnableMessageOrdering = true
	return &EventPublisher{topic: topic, marshal: json.Marshal}, nil
}

type orderEventMessage struct {
	Type           string         `json:"type"`
	OrderID        string         `json:"orderId"`
	PreviousStatus string         `json:"previousStatus,omitempty"`
	CurrentStatus  string         `json:"currentStatus"`
	ActorID        string         `json:"actorId,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type reviewEventMessage struct {
	Type       string    `json:"type"`
	ReviewID   string    `json:"reviewId"`
	ExecutorID string    `json:"executorId"`
	OrderID    string    `json:"orderId,omitempty"`
	Rating     int       `json:"rating"`
	ActorID    string    `json:"actorId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// PublishOrderEvent publishes an order lifecycle event and waits for the server ack.
func (p *EventPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	msg := orderEventMessage{
		Type:           event.Type,
		OrderID:        event.OrderID,
		PreviousStatus: event.PreviousStatus,
		CurrentStatus:  event.CurrentStatus,
		ActorID:        event.ActorID,
		OccurredAt:     event.OccurredAt.UTC(),
		Metadata:       event.Metadata,
	}
	attrs := map[string]string{}
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "status", event.CurrentStatus)
	_, err := p.publish(ctx, msg, attrs, event.OrderID)
	return err
}

// PublishReviewEvent publishes a review lifecycle event and waits for the server ack.
func (p *EventPublisher) PublishReviewEvent(ctx context.Context, event services.ReviewEvent) error {
	msg := reviewEventMessage{
		Type:       event.Type,
		ReviewID:   event.ReviewID,
		ExecutorID: event.ExecutorID,
		OrderID:    event.OrderID,
		Rating:     event.Rating,
		ActorID:    event.ActorID,
		OccurredAt: event.OccurredAt.UTC(),
	}
	attrs := map[string]string{}
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "reviewId", event.ReviewID)
	setAttr(attrs, "executorId", event.ExecutorID)
	_, err := p.publish(ctx, msg, attrs, event.ExecutorID)
	return err
}

type messageEventMessage struct {
	Type       string    `json:"type"`
	MessageID  string    `json:"messageId"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// PublishMessageEvent announces a delivered message, ordered per receiver. The message body
// stays out of the payload.
func (p *EventPublisher) PublishMessageEvent(ctx context.Context, event services.MessageEvent) error {
	msg := messageEventMessage{
		Type:       event.Type,
		MessageID:  event.MessageID,
		SenderID:   event.SenderID,
		ReceiverID: event.ReceiverID,
		OccurredAt: event.OccurredAt.UTC(),
	}
	attrs := map[string]string{}
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "messageId", event.MessageID)
	setAttr(attrs, "receiverId", event.ReceiverID)
	_, err := p.publish(ctx, msg, attrs, event.ReceiverID)
	return err
}

func (p *EventPublisher) publish(ctx context.Context, payload any, attrs map[string]string, orderingKey string) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub event publisher: not initialised")
	}
	data, err := p.marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	msg := &pubsub.Message{Data: data, Attributes: attrs, OrderingKey: strings.TrimSpace(orderingKey)}
	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		if msg.OrderingKey != "" {
			p.topic.ResumePublish(msg.OrderingKey)
		}
		return "", fmt.Errorf("publish %s: %w", attrs["eventType"], err)
	}
	return id, nil
}

// Stop flushes pending messages.
func (p *EventPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
