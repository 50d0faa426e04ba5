package telephony

import (
	"context"
	"time"
)

// OriginateRequest describes one asynchronous origination through the
// control protocol. Variables are inherited by the spawned channel so the
// dialplan hook can report back with the same call identifier.
type OriginateRequest struct {
	Channel      string
	Context      string
	Exten        string
	Priority     int
	Timeout      time.Duration
	CallerIDNum  string
	CallerIDName string
	Variables    map[string]string
	Async        bool
}

// OriginateResult is the immediate protocol response. Accepted means the
// request was taken for origination, not that anyone answered.
type OriginateResult struct {
	Accepted bool
	Message  string
}

// StatusEvent is a dial status notification pushed by the call's own
// signaling path. A non-nil HangupTime marks the call terminally complete.
type StatusEvent struct {
	CallID      string
	Status      string
	Duration    int
	AnswerTime  *time.Time
	HangupTime  *time.Time
	HangupCause string
	Voicemail   bool
}

// Client abstracts the telephony control protocol. The wire implementation
// lives outside this module; the dialer only depends on this surface.
type Client interface {
	// Originate submits an asynchronous call request.
	Originate(ctx context.Context, req OriginateRequest) (OriginateResult, error)
	// ChannelLive reports whether the named channel is still up. Errors are
	// treated by callers as "not live".
	ChannelLive(ctx context.Context, channel string) (bool, error)
	// NextEvent returns the next pending status notification without
	// blocking. ok is false when none remain.
	NextEvent() (event *StatusEvent, ok bool)
}
