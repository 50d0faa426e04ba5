package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/simpledialer/internal/domain"
	"github.com/acme/simpledialer/internal/repository"
)

// CampaignRepository implements repository.CampaignRepository using PostgreSQL.
type CampaignRepository struct {
	db *sqlx.DB
}

// NewCampaignRepository constructs a new repository.
func NewCampaignRepository(db *sqlx.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

const campaignColumns = `id, name, description, trunk, caller_id, audio_file,
	max_concurrent, delay_between_calls_sec, status,
	created_at, updated_at, started_at, completed_at`

// Create inserts a new campaign.
func (r *CampaignRepository) Create(ctx context.Context, campaign *domain.Campaign) error {
	q := `INSERT INTO campaigns (
		id, name, description, trunk, caller_id, audio_file,
		max_concurrent, delay_between_calls_sec, status, created_at, updated_at
	) VALUES (
		:id, :name, :description, :trunk, :caller_id, :audio_file,
		:max_concurrent, :delay_between_calls_sec, :status, :created_at, :updated_at
	)`

	params := map[string]any{
		"id":                      campaign.ID,
		"name":                    campaign.Name,
		"description":             campaign.Description,
		"trunk":                   campaign.Trunk,
		"caller_id":               campaign.CallerID,
		"audio_file":              campaign.AudioFile,
		"max_concurrent":          campaign.MaxConcurrent,
		"delay_between_calls_sec": int(campaign.DelayBetweenCalls / time.Second),
		"status":                  campaign.Status,
		"created_at":              campaign.CreatedAt,
		"updated_at":              campaign.UpdatedAt,
	}

	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		return fmt.Errorf("campaign repo: insert: %w", err)
	}

	return nil
}

// Get fetches a campaign by id.
func (r *CampaignRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	row := r.db.QueryRowxContext(ctx, q, id)
	var record campaignRecord
	if err := row.StructScan(&record); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("campaign repo: get: %w", err)
	}

	campaign := record.toDomain()
	return &campaign, nil
}

// List returns campaigns, newest first.
func (r *CampaignRepository) List(ctx context.Context, limit int) ([]*domain.Campaign, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryxContext(ctx, `SELECT `+campaignColumns+`
		FROM campaigns ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("campaign repo: list: %w", err)
	}
	defer rows.Close()

	var results []*domain.Campaign
	for rows.Next() {
		var record campaignRecord
		if err := rows.StructScan(&record); err != nil {
			return nil, fmt.Errorf("campaign repo: scan: %w", err)
		}
		campaign := record.toDomain()
		results = append(results, &campaign)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("campaign repo: rows err: %w", err)
	}

	return results, nil
}

// UpdateStatus updates campaign status.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("campaign repo: update status: %w", err)
	}
	return requireRow(res, "campaign repo")
}

// MarkStarted transitions the campaign into in_progress and stamps started_at.
func (r *CampaignRepository) MarkStarted(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE campaigns
		SET status = $1, started_at = NOW(), updated_at = NOW() WHERE id = $2`,
		domain.CampaignStatusInProgress, id)
	if err != nil {
		return fmt.Errorf("campaign repo: mark started: %w", err)
	}
	return requireRow(res, "campaign repo")
}

// MarkCompleted stamps completed_at along with the terminal status.
func (r *CampaignRepository) MarkCompleted(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE campaigns
		SET status = $1, completed_at = NOW(), updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("campaign repo: mark completed: %w", err)
	}
	return requireRow(res, "campaign repo")
}

func requireRow(res sql.Result, scope string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", scope, err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type campaignRecord struct {
	ID                   uuid.UUID      `db:"id"`
	Name                 string         `db:"name"`
	Description          sql.NullString `db:"description"`
	Trunk                string         `db:"trunk"`
	CallerID             string         `db:"caller_id"`
	AudioFile            string         `db:"audio_file"`
	MaxConcurrent        int            `db:"max_concurrent"`
	DelayBetweenCallsSec int            `db:"delay_between_calls_sec"`
	Status               string         `db:"status"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
	StartedAt            *time.Time     `db:"started_at"`
	CompletedAt          *time.Time     `db:"completed_at"`
}

func (r campaignRecord) toDomain() domain.Campaign {
	return domain.Campaign{
		ID:                r.ID,
		Name:              r.Name,
		Description:       r.Description.String,
		Trunk:             r.Trunk,
		CallerID:          r.CallerID,
		AudioFile:         r.AudioFile,
		MaxConcurrent:     r.MaxConcurrent,
		DelayBetweenCalls: time.Duration(r.DelayBetweenCallsSec) * time.Second,
		Status:            domain.CampaignStatus(r.Status),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		StartedAt:         r.StartedAt,
		CompletedAt:       r.CompletedAt,
	}
}
