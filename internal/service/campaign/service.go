package campaign

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/acme/simpledialer/internal/domain"
	"github.com/acme/simpledialer/internal/repository"
	apperrors "github.com/acme/simpledialer/pkg/errors"
)

// Service orchestrates campaign lifecycle operations for the admin API.
type Service struct {
	repo     repository.CampaignRepository
	contacts repository.ContactRepository
	callLogs repository.CallLogRepository
}

// NewService constructs a campaign service.
func NewService(
	repo repository.CampaignRepository,
	contacts repository.ContactRepository,
	callLogs repository.CallLogRepository,
) *Service {
	return &Service{repo: repo, contacts: contacts, callLogs: callLogs}
}

// CreateCampaignInput captures campaign creation parameters.
type CreateCampaignInput struct {
	Name              string
	Description       string
	Trunk             string
	CallerID          string
	AudioFile         string
	MaxConcurrent     int
	DelayBetweenCalls time.Duration
	Contacts          []ContactInput
}

// ContactInput expresses one dialing target.
type ContactInput struct {
	Name        string
	PhoneNumber string
}

// Create provisions a new campaign with its initial contact list.
func (s *Service) Create(ctx context.Context, input CreateCampaignInput) (*domain.Campaign, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	campaign := &domain.Campaign{
		ID:                uuid.New(),
		Name:              input.Name,
		Description:       input.Description,
		Trunk:             input.Trunk,
		CallerID:          input.CallerID,
		AudioFile:         input.AudioFile,
		MaxConcurrent:     input.MaxConcurrent,
		DelayBetweenCalls: input.DelayBetweenCalls,
		Status:            domain.CampaignStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, fmt.Errorf("campaign service: create campaign: %w", err)
	}

	if len(input.Contacts) > 0 {
		if err := s.AddContacts(ctx, campaign.ID, input.Contacts); err != nil {
			return nil, err
		}
	}

	return campaign, nil
}

// Get retrieves a campaign by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// List returns campaigns.
func (s *Service) List(ctx context.Context, limit int) ([]*domain.Campaign, error) {
	return s.repo.List(ctx, limit)
}

// AddContacts appends dialing targets to a campaign.
func (s *Service) AddContacts(ctx context.Context, campaignID uuid.UUID, inputs []ContactInput) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: no contacts provided", apperrors.ErrValidation)
	}

	now := time.Now().UTC()
	records := make([]*domain.Contact, 0, len(inputs))
	for _, in := range inputs {
		if strings.TrimSpace(in.PhoneNumber) == "" {
			return fmt.Errorf("%w: contact phone number is required", apperrors.ErrValidation)
		}
		records = append(records, &domain.Contact{
			ID:          uuid.New(),
			CampaignID:  campaignID,
			Name:        in.Name,
			PhoneNumber: strings.TrimSpace(in.PhoneNumber),
			Status:      domain.ContactStatusPending,
			CreatedAt:   now,
		})
	}

	if err := s.contacts.BulkInsert(ctx, campaignID, records); err != nil {
		return fmt.Errorf("campaign service: store contacts: %w", err)
	}
	return nil
}

// Stats aggregates the campaign's contact and call-log breakdowns.
type Stats struct {
	Contacts map[domain.ContactStatus]int64
	Calls    []repository.StatusCount
}

// GetStats computes current aggregates for a campaign.
func (s *Service) GetStats(ctx context.Context, campaignID uuid.UUID) (*Stats, error) {
	if _, err := s.repo.Get(ctx, campaignID); err != nil {
		return nil, err
	}

	contacts, err := s.contacts.CountByStatus(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("campaign service: contact counts: %w", err)
	}
	calls, err := s.callLogs.StatusBreakdown(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("campaign service: call breakdown: %w", err)
	}

	return &Stats{Contacts: contacts, Calls: calls}, nil
}

func validateCreateInput(input CreateCampaignInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: campaign name is required", apperrors.ErrValidation)
	}
	if strings.TrimSpace(input.Trunk) == "" {
		return fmt.Errorf("%w: trunk is required", apperrors.ErrValidation)
	}
	if strings.TrimSpace(input.CallerID) == "" {
		return fmt.Errorf("%w: caller id is required", apperrors.ErrValidation)
	}
	if input.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: max_concurrent must be positive", apperrors.ErrValidation)
	}
	if input.DelayBetweenCalls < 0 {
		return fmt.Errorf("%w: delay_between_calls must not be negative", apperrors.ErrValidation)
	}
	for _, c := range input.Contacts {
		if strings.TrimSpace(c.PhoneNumber) == "" {
			return fmt.Errorf("%w: contact phone number is required", apperrors.ErrValidation)
		}
	}
	return nil
}
