package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// StatusPublisher publishes call status and campaign summary events.
type StatusPublisher struct {
	statusWriter  *kafka.Writer
	summaryWriter *kafka.Writer
}

// NewStatusPublisher constructs a publisher for the configured topics.
func NewStatusPublisher(k *Kafka, statusTopic, summaryTopic string) *StatusPublisher {
	return &StatusPublisher{
		statusWriter:  k.NewWriter(statusTopic),
		summaryWriter: k.NewWriter(summaryTopic),
	}
}

// PublishCallStatus emits a per-call status message.
func (p *StatusPublisher) PublishCallStatus(ctx context.Context, msg CallStatusMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("status publisher: marshal call status: %w", err)
	}
	record := kafka.Message{
		Key:   []byte(msg.CallID),
		Value: value,
		Time:  time.Now().UTC(),
	}
	if err := p.statusWriter.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("status publisher: write call status: %w", err)
	}
	return nil
}

// PublishSummary emits the end-of-run campaign summary.
func (p *StatusPublisher) PublishSummary(ctx context.Context, msg CampaignSummaryMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("status publisher: marshal summary: %w", err)
	}
	record := kafka.Message{
		Key:   msg.CampaignID[:],
		Value: value,
		Time:  time.Now().UTC(),
	}
	if err := p.summaryWriter.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("status publisher: write summary: %w", err)
	}
	return nil
}

// Close closes the underlying writers.
func (p *StatusPublisher) Close() error {
	var err error
	for _, w := range []*kafka.Writer{p.statusWriter, p.summaryWriter} {
		if w == nil {
			continue
		}
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
