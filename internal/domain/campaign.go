package domain

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus enumerates lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignStatusPending    CampaignStatus = "pending"
	CampaignStatusInProgress CampaignStatus = "in_progress"
	CampaignStatusCompleted  CampaignStatus = "completed"
	CampaignStatusFailed     CampaignStatus = "failed"
)

// ContactStatus enumerates outcomes for a dialing target.
type ContactStatus string

const (
	ContactStatusPending ContactStatus = "pending"
	ContactStatusCalled  ContactStatus = "called"
	ContactStatusFailed  ContactStatus = "failed"
)

// Campaign models one configured batch dialing run.
type Campaign struct {
	ID                uuid.UUID
	Name              string
	Description       string
	Trunk             string
	CallerID          string
	AudioFile         string
	MaxConcurrent     int
	DelayBetweenCalls time.Duration
	Status            CampaignStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
}

// Contact is a single phone number targeted by a campaign.
type Contact struct {
	ID           uuid.UUID
	CampaignID   uuid.UUID
	Name         string
	PhoneNumber  string
	Status       ContactStatus
	CallAttempts int
	LastCalled   *time.Time
	CreatedAt    time.Time
}

// CallLog is the persistent record of one origination attempt. The row is
// shared with the per-call dialplan hook, so every writer overwrites whole
// columns keyed by CallID and never assumes exclusive ownership.
type CallLog struct {
	CallID            string
	CampaignID        uuid.UUID
	ContactID         uuid.UUID
	PhoneNumber       string
	Status            string
	Duration          int
	AnswerTime        *time.Time
	HangupTime        *time.Time
	HangupCause       string
	VoicemailDetected bool
	CreatedAt         time.Time
}

// CallResult carries the mutable columns of a call log row that a status
// notification updates in place.
type CallResult struct {
	Status            string
	Duration          int
	AnswerTime        *time.Time
	HangupTime        *time.Time
	HangupCause       string
	VoicemailDetected bool
}
