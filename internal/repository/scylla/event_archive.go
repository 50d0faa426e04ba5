package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/acme/simpledialer/internal/repository"
)

// EventArchive appends raw dial status notifications to Scylla for audit.
// The archive is write-only from this process; operators query it with the
// usual per-campaign, per-day partitioning.
type EventArchive struct {
	session *gocql.Session
}

// NewEventArchive creates a new archive.
func NewEventArchive(session *gocql.Session) *EventArchive {
	return &EventArchive{session: session}
}

// Append stores one notification.
func (a *EventArchive) Append(ctx context.Context, event repository.ArchivedEvent) error {
	received := event.ReceivedAt
	if received.IsZero() {
		received = time.Now().UTC()
	}
	bucket := bucketDate(received)

	if err := a.session.Query(`INSERT INTO call_events_by_campaign
		(campaign_id, bucket, received_at, call_id, raw_status, duration, answer_time, hangup_time, hangup_cause, voicemail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.CampaignID.String(), bucket, received, event.CallID, event.RawStatus,
		event.Duration, event.AnswerTime, event.HangupTime, event.HangupCause, event.Voicemail,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("event archive: insert: %w", err)
	}

	return nil
}

var _ repository.EventArchive = (*EventArchive)(nil)

func bucketDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
