package queue

import (
	"time"

	"github.com/google/uuid"
)

// CallStatusMessage announces the terminal status of one call.
type CallStatusMessage struct {
	CallID            string     `json:"call_id"`
	CampaignID        uuid.UUID  `json:"campaign_id"`
	ContactID         uuid.UUID  `json:"contact_id"`
	PhoneNumber       string     `json:"phone_number"`
	Status            string     `json:"status"`
	DurationSec       int        `json:"duration_sec"`
	AnswerTime        *time.Time `json:"answer_time,omitempty"`
	HangupTime        *time.Time `json:"hangup_time,omitempty"`
	HangupCause       string     `json:"hangup_cause,omitempty"`
	VoicemailDetected bool       `json:"voicemail_detected"`
	OccurredAt        time.Time  `json:"occurred_at"`
}

// CampaignSummaryMessage announces the end of a campaign run. ReportBase64
// carries the rendered plain-text report so the downstream mail relay can
// attach it without hitting our filesystem.
type CampaignSummaryMessage struct {
	CampaignID     uuid.UUID        `json:"campaign_id"`
	CampaignName   string           `json:"campaign_name"`
	Status         string           `json:"status"`
	TotalContacts  int64            `json:"total_contacts"`
	Successful     int64            `json:"successful_calls"`
	Failed         int64            `json:"failed_calls"`
	ByStatus       map[string]int64 `json:"by_status"`
	TotalDuration  int64            `json:"total_duration_sec"`
	AvgDuration    float64          `json:"avg_duration_sec"`
	VoicemailCount int64            `json:"voicemail_count"`
	SuccessRate    float64          `json:"success_rate"`
	ReportBase64   string           `json:"report_b64,omitempty"`
	CompletedAt    time.Time        `json:"completed_at"`
}
