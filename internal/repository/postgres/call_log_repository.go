package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/simpledialer/internal/domain"
	"github.com/acme/simpledialer/internal/repository"
)

// CallLogRepository implements repository.CallLogRepository using PostgreSQL.
// Every write overwrites explicit columns keyed by call_id: the dialplan hook
// races with us on the same rows, so there are no read-modify-write cycles.
type CallLogRepository struct {
	db *sqlx.DB
}

// NewCallLogRepository constructs the repository.
func NewCallLogRepository(db *sqlx.DB) *CallLogRepository {
	return &CallLogRepository{db: db}
}

// Insert creates the log row at origination time.
func (r *CallLogRepository) Insert(ctx context.Context, log *domain.CallLog) error {
	q := `INSERT INTO call_logs (
		call_id, campaign_id, contact_id, phone_number, status,
		duration, hangup_cause, voicemail_detected, created_at
	) VALUES (
		:call_id, :campaign_id, :contact_id, :phone_number, :status,
		:duration, :hangup_cause, :voicemail_detected, :created_at
	)`

	params := map[string]any{
		"call_id":            log.CallID,
		"campaign_id":        log.CampaignID,
		"contact_id":         log.ContactID,
		"phone_number":       log.PhoneNumber,
		"status":             log.Status,
		"duration":           log.Duration,
		"hangup_cause":       log.HangupCause,
		"voicemail_detected": log.VoicemailDetected,
		"created_at":         log.CreatedAt,
	}

	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		return fmt.Errorf("call log repo: insert: %w", err)
	}

	return nil
}

// UpdateStatus overwrites only the status column.
func (r *CallLogRepository) UpdateStatus(ctx context.Context, callID string, status string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE call_logs SET status = $1 WHERE call_id = $2`, status, callID); err != nil {
		return fmt.Errorf("call log repo: update status: %w", err)
	}
	return nil
}

// UpdateResult overwrites the result columns delivered by a notification.
func (r *CallLogRepository) UpdateResult(ctx context.Context, callID string, result domain.CallResult) error {
	q := `UPDATE call_logs SET
		status = :status,
		duration = :duration,
		answer_time = :answer_time,
		hangup_time = :hangup_time,
		hangup_cause = :hangup_cause,
		voicemail_detected = :voicemail_detected
	WHERE call_id = :call_id`

	params := map[string]any{
		"call_id":            callID,
		"status":             result.Status,
		"duration":           result.Duration,
		"answer_time":        result.AnswerTime,
		"hangup_time":        result.HangupTime,
		"hangup_cause":       result.HangupCause,
		"voicemail_detected": result.VoicemailDetected,
	}

	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		return fmt.Errorf("call log repo: update result: %w", err)
	}
	return nil
}

// StatusBreakdown aggregates call logs per status for a campaign.
func (r *CallLogRepository) StatusBreakdown(ctx context.Context, campaignID uuid.UUID) ([]repository.StatusCount, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT status, COUNT(*) AS count,
		COALESCE(SUM(duration), 0) AS total_duration,
		COALESCE(SUM(CASE WHEN voicemail_detected THEN 1 ELSE 0 END), 0) AS voicemail_count
		FROM call_logs WHERE campaign_id = $1 GROUP BY status`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("call log repo: status breakdown: %w", err)
	}
	defer rows.Close()

	var results []repository.StatusCount
	for rows.Next() {
		var rec struct {
			Status         string `db:"status"`
			Count          int64  `db:"count"`
			TotalDuration  int64  `db:"total_duration"`
			VoicemailCount int64  `db:"voicemail_count"`
		}
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("call log repo: scan breakdown: %w", err)
		}
		results = append(results, repository.StatusCount{
			Status:         rec.Status,
			Count:          rec.Count,
			TotalDuration:  rec.TotalDuration,
			VoicemailCount: rec.VoicemailCount,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("call log repo: rows err: %w", err)
	}

	return results, nil
}

// ListByCampaign returns call logs joined with their contacts in creation order.
func (r *CallLogRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]repository.CallLogEntry, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT cl.call_id, cl.phone_number, c.name AS contact_name,
		cl.status, cl.duration, cl.created_at
		FROM call_logs cl
		JOIN contacts c ON cl.contact_id = c.id
		WHERE cl.campaign_id = $1
		ORDER BY cl.created_at ASC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("call log repo: list by campaign: %w", err)
	}
	defer rows.Close()

	var results []repository.CallLogEntry
	for rows.Next() {
		var rec struct {
			CallID      string    `db:"call_id"`
			PhoneNumber string    `db:"phone_number"`
			ContactName string    `db:"contact_name"`
			Status      string    `db:"status"`
			Duration    int       `db:"duration"`
			CreatedAt   time.Time `db:"created_at"`
		}
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("call log repo: scan entry: %w", err)
		}
		results = append(results, repository.CallLogEntry(rec))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("call log repo: rows err: %w", err)
	}

	return results, nil
}

var _ repository.CallLogRepository = (*CallLogRepository)(nil)
