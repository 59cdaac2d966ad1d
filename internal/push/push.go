// Package push broadcasts realtime events to connected clients over the
// message broker. Delivery is best effort; the core never depends on it.
package push

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/lifeflow-api/pkg/messaging"
)

const (
	ChannelAdmins = "push.admins"
	donorChannel  = "push.donors.%s"
)

type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type Publisher struct {
	broker messaging.Broker
}

func NewPublisher(broker messaging.Broker) *Publisher {
	return &Publisher{broker: broker}
}

func (p *Publisher) EmitToAdmins(ctx context.Context, event string, payload interface{}) error {
	return p.broker.Publish(ctx, ChannelAdmins, Event{Type: event, Payload: payload})
}

func (p *Publisher) EmitToDonor(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error {
	return p.broker.Publish(ctx, fmt.Sprintf(donorChannel, userID), Event{Type: event, Payload: payload})
}
