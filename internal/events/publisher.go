package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Publisher is a sink for room events. Sinks must preserve per-room order.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// NATSPublisher mirrors every room event onto a NATS subject so external
// consumers (bots, analytics) can follow rooms without a websocket.
type NATSPublisher struct {
	nc            *nats.Conn
	subjectPrefix string
}

// NewNATSPublisher connects to NATS. subjectPrefix is typically "room.events";
// events for room X are published on "<prefix>.<roomID>".
func NewNATSPublisher(url, subjectPrefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc, subjectPrefix: subjectPrefix}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", p.subjectPrefix, evt.RoomID)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
