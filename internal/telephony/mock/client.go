package mock

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/acme/simpledialer/internal/config"
	"github.com/acme/simpledialer/internal/telephony"
)

// Client simulates the telephony control protocol for development runs.
// Each accepted origination schedules a dial status event that becomes
// visible through NextEvent once the simulated call has run its course.
type Client struct {
	mu         sync.Mutex
	rng        *rand.Rand
	pending    []scheduledEvent
	answerRate float64
}

type scheduledEvent struct {
	dueAt   time.Time
	channel string
	event   telephony.StatusEvent
}

// NewClient constructs a simulated client.
func NewClient(cfg config.TelephonyConfig) *Client {
	return &Client{
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		answerRate: 0.7,
	}
}

// Originate accepts the request and schedules its outcome.
func (c *Client) Originate(ctx context.Context, req telephony.OriginateRequest) (telephony.OriginateResult, error) {
	select {
	case <-ctx.Done():
		return telephony.OriginateResult{}, ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ringing := time.Duration(2+c.rng.Intn(6)) * time.Second
	ev := telephony.StatusEvent{
		CallID: req.Variables["CALL_ID"],
		Status: c.pickStatus(),
	}

	now := time.Now().UTC()
	if ev.Status == "ANSWER" {
		answered := now.Add(ringing)
		talk := time.Duration(5+c.rng.Intn(40)) * time.Second
		hangup := answered.Add(talk)
		ev.AnswerTime = &answered
		ev.HangupTime = &hangup
		ev.Duration = int(talk / time.Second)
		ev.HangupCause = "Normal Clearing"
		ev.Voicemail = c.rng.Float64() < 0.2
		c.pending = append(c.pending, scheduledEvent{dueAt: hangup, channel: req.Channel, event: ev})
	} else {
		hangup := now.Add(ringing)
		ev.HangupTime = &hangup
		ev.HangupCause = ev.Status
		c.pending = append(c.pending, scheduledEvent{dueAt: hangup, channel: req.Channel, event: ev})
	}

	return telephony.OriginateResult{Accepted: true, Message: "Originate successfully queued"}, nil
}

// ChannelLive reports true while the channel's simulated call is still up.
func (c *Client) ChannelLive(ctx context.Context, channel string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	for _, s := range c.pending {
		if s.channel == channel && now.Before(s.dueAt) {
			return true, nil
		}
	}
	return false, nil
}

// NextEvent pops the next due event, if any.
func (c *Client) NextEvent() (*telephony.StatusEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	for i, s := range c.pending {
		if now.Before(s.dueAt) {
			continue
		}
		c.pending = append(c.pending[:i], c.pending[i+1:]...)
		ev := s.event
		return &ev, true
	}
	return nil, false
}

func (c *Client) pickStatus() string {
	roll := c.rng.Float64()
	switch {
	case roll < c.answerRate:
		return "ANSWER"
	case roll < c.answerRate+0.15:
		return "NOANSWER"
	case roll < c.answerRate+0.25:
		return "BUSY"
	default:
		return "CONGESTION"
	}
}

var _ telephony.Client = (*Client)(nil)
