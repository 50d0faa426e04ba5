package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/acme/simpledialer/internal/domain"
	apperrors "github.com/acme/simpledialer/pkg/errors"
)

var (
	// ErrNotFound indicates the entity was not located.
	ErrNotFound = apperrors.ErrNotFound
	// ErrConflict indicates a unique constraint violation.
	ErrConflict = apperrors.ErrConflict
)

// CampaignRepository manages campaign metadata persistence.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *domain.Campaign) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	List(ctx context.Context, limit int) ([]*domain.Campaign, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error
	MarkStarted(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error
}

// ContactRepository manages dialing targets. Status updates always bump the
// attempt counter and last-called timestamp, mirroring what the dialplan
// hook expects to find in the row.
type ContactRepository interface {
	BulkInsert(ctx context.Context, campaignID uuid.UUID, contacts []*domain.Contact) error
	ListPending(ctx context.Context, campaignID uuid.UUID) ([]*domain.Contact, error)
	SetStatus(ctx context.Context, contactID uuid.UUID, status domain.ContactStatus) error
	CountByStatus(ctx context.Context, campaignID uuid.UUID) (map[domain.ContactStatus]int64, error)
}

// CallLogRepository persists per-origination records. All writes are
// unconditional column overwrites keyed by call id: the row may be mutated
// concurrently by the dialplan hook.
type CallLogRepository interface {
	Insert(ctx context.Context, log *domain.CallLog) error
	UpdateStatus(ctx context.Context, callID string, status string) error
	UpdateResult(ctx context.Context, callID string, result domain.CallResult) error
	StatusBreakdown(ctx context.Context, campaignID uuid.UUID) ([]StatusCount, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]CallLogEntry, error)
}

// EventArchive appends raw protocol notifications for audit.
type EventArchive interface {
	Append(ctx context.Context, event ArchivedEvent) error
}

// StatusCount aggregates call logs sharing one status.
type StatusCount struct {
	Status         string
	Count          int64
	TotalDuration  int64
	VoicemailCount int64
}

// CallLogEntry is a call log row joined with its contact, for reporting.
type CallLogEntry struct {
	CallID      string
	PhoneNumber string
	ContactName string
	Status      string
	Duration    int
	CreatedAt   time.Time
}

// ArchivedEvent is the storage representation of one raw notification.
type ArchivedEvent struct {
	CampaignID  uuid.UUID
	CallID      string
	RawStatus   string
	Duration    int
	AnswerTime  *time.Time
	HangupTime  *time.Time
	HangupCause string
	Voicemail   bool
	ReceivedAt  time.Time
}
