// Package webhook forwards turn step events to an external presentation
// collaborator through QStash, so consumption can lag the turn without
// blocking it.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/pearlcafe/barista-agent/agent/contract"
	qstashx "github.com/pearlcafe/barista-agent/pkg/qstash"
)

type Config struct {
	Destination string `envconfig:"DESTINATION" split_words:"true" required:"true"`
}

type Sink struct {
	client      *qstashx.Client
	destination string
}

var _ contractx.EventSink = (*Sink)(nil)

func New(client *qstashx.Client, cfg Config) (*Sink, error) {
	if client == nil {
		return nil, errors.New("qstash client is required")
	}
	destination := strings.TrimSpace(cfg.Destination)
	if destination == "" {
		return nil, errors.New("webhook destination is required")
	}
	return &Sink{client: client, destination: destination}, nil
}

func (s *Sink) Publish(ctx context.Context, event contractx.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.client.Publish(ctx, s.destination, payload)
}
