// Package nats mirrors the in-process message bus onto NATS JetStream so
// external consumers can observe company traffic.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/AgentCorp/internal/domain/message"
)

const streamName = "AGENTCORP"

// Mirror publishes bus messages to subjects under company.bus.<topic>.
type Mirror struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection and ensures the stream exists.
func Connect(ctx context.Context, url string) (*Mirror, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"company.bus.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Mirror{nc: nc, js: js}, nil
}

// Publish mirrors one bus message. Failures are returned for logging; the
// in-process bus is the source of truth and never waits on the mirror.
func (m *Mirror) Publish(ctx context.Context, msg message.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("nats mirror marshal: %w", err)
	}
	subject := "company.bus." + msg.Topic
	if _, err := m.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("nats mirror publish %s: %w", subject, err)
	}
	return nil
}

// Close shuts down the NATS connection.
func (m *Mirror) Close() error {
	m.nc.Close()
	return nil
}
