package goposthog

import (
	"context"
	"fmt"
	"sync"

	"github.com/posthog/posthog-go"

	"github.com/sadewadee/dynamic-search/tlmt"
)

type service struct {
	client     posthog.Client
	distinctID string
	closeOnce  sync.Once
}

// New creates a PostHog-backed telemetry sink.
func New(apiKey, endpoint, distinctID string) (tlmt.Telemetry, error) {
	client, err := posthog.NewWithConfig(apiKey, posthog.Config{
		Endpoint: endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create posthog client: %w", err)
	}

	return &service{
		client:     client,
		distinctID: distinctID,
	}, nil
}

func (s *service) Send(_ context.Context, event tlmt.Event) error {
	props := posthog.NewProperties()
	for k, v := range event.Properties {
		props.Set(k, v)
	}

	return s.client.Enqueue(posthog.Capture{
		DistinctId: s.distinctID,
		Event:      event.Name,
		Properties: props,
	})
}

func (s *service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.client.Close()
	})
	return err
}
