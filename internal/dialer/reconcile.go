package dialer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/acme/simpledialer/internal/domain"
	"github.com/acme/simpledialer/internal/queue"
	"github.com/acme/simpledialer/internal/repository"
	"github.com/acme/simpledialer/internal/telephony"
)

// reconcile drains pending notifications and sweeps stale ledger entries.
// Both halves are idempotent; it is invoked from every polling point.
func (d *Dialer) reconcile(ctx context.Context) {
	d.drainEvents(ctx)
	d.sweepStale(ctx)
}

// drainEvents pulls notifications until the client reports none pending.
func (d *Dialer) drainEvents(ctx context.Context) {
	for {
		event, ok := d.deps.Telephony.NextEvent()
		if !ok {
			return
		}
		d.applyEvent(ctx, event)
	}
}

func (d *Dialer) applyEvent(ctx context.Context, event *telephony.StatusEvent) {
	call, ok := d.ledger.get(event.CallID)
	if !ok {
		// Stale or foreign notification; not an error.
		d.log.Debug("discarding notification for unknown call", zap.String("call_id", event.CallID))
		return
	}

	if d.deps.Archive != nil {
		archived := repository.ArchivedEvent{
			CampaignID:  d.campaign.ID,
			CallID:      event.CallID,
			RawStatus:   event.Status,
			Duration:    event.Duration,
			AnswerTime:  event.AnswerTime,
			HangupTime:  event.HangupTime,
			HangupCause: event.HangupCause,
			Voicemail:   event.Voicemail,
			ReceivedAt:  time.Now().UTC(),
		}
		if err := d.deps.Archive.Append(ctx, archived); err != nil {
			d.log.Warn("archive append failed", zap.String("call_id", event.CallID), zap.Error(err))
		}
	}

	mapped := domain.NormalizeDialStatus(event.Status)
	d.log.Info("received call status",
		zap.String("call_id", event.CallID),
		zap.String("status", mapped),
		zap.Int("duration", event.Duration))

	result := domain.CallResult{
		Status:            mapped,
		Duration:          event.Duration,
		AnswerTime:        event.AnswerTime,
		HangupTime:        event.HangupTime,
		HangupCause:       event.HangupCause,
		VoicemailDetected: event.Voicemail,
	}
	if err := d.deps.CallLogs.UpdateResult(ctx, event.CallID, result); err != nil {
		d.log.Warn("call log update failed", zap.String("call_id", event.CallID), zap.Error(err))
	}

	contactStatus := domain.ContactStatusFailed
	if event.Status == "ANSWER" {
		contactStatus = domain.ContactStatusCalled
	}
	if err := d.deps.Contacts.SetStatus(ctx, call.ContactID, contactStatus); err != nil {
		d.log.Warn("contact update failed", zap.Stringer("contact_id", call.ContactID), zap.Error(err))
	}

	if event.HangupTime != nil {
		// The call is terminally complete; remove exactly once.
		d.ledger.remove(event.CallID)
		d.publishCallStatus(ctx, event.CallID, call, result)
	} else {
		// Status known but the channel is still structurally active; the
		// guard keeps the timeout sweep from overwriting it later.
		call.statusKnown = true
	}
}

// sweepStale removes ledger entries whose channel is gone or whose age
// exceeds the call lifetime ceiling. Calls that never produced an event get
// the fallback completed status: no terminal notification was ever observed,
// so the call is assumed functionally handled.
func (d *Dialer) sweepStale(ctx context.Context) {
	now := time.Now()
	for callID, call := range d.ledger.calls {
		live, err := d.deps.Telephony.ChannelLive(ctx, call.Channel)
		if err != nil {
			d.log.Warn("liveness query failed, treating channel as down",
				zap.String("channel", call.Channel), zap.Error(err))
			live = false
		}

		if live && now.Sub(call.StartTime) <= d.cfg.CallLifetime {
			continue
		}

		if !call.statusKnown {
			d.log.Info("call completed without notification, marking completed",
				zap.String("call_id", callID), zap.String("phone_number", call.PhoneNumber))
			if err := d.deps.CallLogs.UpdateStatus(ctx, callID, domain.CallStatusCompleted); err != nil {
				d.log.Warn("call log update failed", zap.String("call_id", callID), zap.Error(err))
			}
			if err := d.deps.Contacts.SetStatus(ctx, call.ContactID, domain.ContactStatusCalled); err != nil {
				d.log.Warn("contact update failed", zap.Stringer("contact_id", call.ContactID), zap.Error(err))
			}
			d.publishCallStatus(ctx, callID, call, domain.CallResult{Status: domain.CallStatusCompleted})
		}

		d.ledger.remove(callID)
	}
}

func (d *Dialer) publishCallStatus(ctx context.Context, callID string, call *activeCall, result domain.CallResult) {
	if d.deps.Publisher == nil {
		return
	}
	msg := queue.CallStatusMessage{
		CallID:            callID,
		CampaignID:        d.campaign.ID,
		ContactID:         call.ContactID,
		PhoneNumber:       call.PhoneNumber,
		Status:            result.Status,
		DurationSec:       result.Duration,
		AnswerTime:        result.AnswerTime,
		HangupTime:        result.HangupTime,
		HangupCause:       result.HangupCause,
		VoicemailDetected: result.VoicemailDetected,
		OccurredAt:        time.Now().UTC(),
	}
	if err := d.deps.Publisher.PublishCallStatus(ctx, msg); err != nil {
		d.log.Warn("status publish failed", zap.String("call_id", callID), zap.Error(err))
	}
}
