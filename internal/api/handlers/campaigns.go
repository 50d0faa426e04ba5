package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/simpledialer/internal/domain"
	campaignsvc "github.com/acme/simpledialer/internal/service/campaign"
)

type createCampaignRequest struct {
	Name              string           `json:"name"`
	Description       string           `json:"description"`
	Trunk             string           `json:"trunk"`
	CallerID          string           `json:"caller_id"`
	AudioFile         string           `json:"audio_file"`
	MaxConcurrent     int              `json:"max_concurrent"`
	DelayBetweenCalls int              `json:"delay_between_calls_sec"`
	Contacts          []contactRequest `json:"contacts"`
}

type contactRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

type addContactsRequest struct {
	Contacts []contactRequest `json:"contacts"`
}

type campaignResponse struct {
	ID                uuid.UUID             `json:"id"`
	Name              string                `json:"name"`
	Description       string                `json:"description"`
	Trunk             string                `json:"trunk"`
	CallerID          string                `json:"caller_id"`
	AudioFile         string                `json:"audio_file"`
	MaxConcurrent     int                   `json:"max_concurrent"`
	DelayBetweenCalls int                   `json:"delay_between_calls_sec"`
	Status            domain.CampaignStatus `json:"status"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
	StartedAt         *time.Time            `json:"started_at,omitempty"`
	CompletedAt       *time.Time            `json:"completed_at,omitempty"`
}

type campaignStatsResponse struct {
	Contacts map[string]int64      `json:"contacts"`
	Calls    []callStatusBreakdown `json:"calls"`
}

type callStatusBreakdown struct {
	Status         string `json:"status"`
	Count          int64  `json:"count"`
	TotalDuration  int64  `json:"total_duration_sec"`
	VoicemailCount int64  `json:"voicemail_count"`
}

func (h *HandlerSet) createCampaign(ctx *fiber.Ctx) error {
	var req createCampaignRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	input := campaignsvc.CreateCampaignInput{
		Name:              req.Name,
		Description:       req.Description,
		Trunk:             req.Trunk,
		CallerID:          req.CallerID,
		AudioFile:         req.AudioFile,
		MaxConcurrent:     req.MaxConcurrent,
		DelayBetweenCalls: time.Duration(req.DelayBetweenCalls) * time.Second,
		Contacts:          toContactInputs(req.Contacts),
	}

	campaign, err := h.campaigns.Create(ctx.Context(), input)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusCreated).JSON(toCampaignResponse(campaign))
}

func (h *HandlerSet) listCampaigns(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", 50)

	campaigns, err := h.campaigns.List(ctx.Context(), limit)
	if err != nil {
		return translateError(err)
	}

	out := make([]campaignResponse, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, toCampaignResponse(c))
	}
	return ctx.JSON(fiber.Map{"campaigns": out})
}

func (h *HandlerSet) getCampaign(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	campaign, err := h.campaigns.Get(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}

	return ctx.JSON(toCampaignResponse(campaign))
}

func (h *HandlerSet) addContacts(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	var req addContactsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	if _, err := h.campaigns.Get(ctx.Context(), id); err != nil {
		return translateError(err)
	}

	if err := h.campaigns.AddContacts(ctx.Context(), id, toContactInputs(req.Contacts)); err != nil {
		return translateError(err)
	}

	return ctx.SendStatus(http.StatusNoContent)
}

// startCampaign launches the campaign run inside this process. The run lock
// in Redis rejects a second runner; the status check here just gives a
// friendlier error for the common case.
func (h *HandlerSet) startCampaign(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	campaign, err := h.campaigns.Get(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}
	if campaign.Status == domain.CampaignStatusInProgress {
		return fiber.NewError(http.StatusConflict, "campaign is already running")
	}

	d, err := h.container.NewDialer()
	if err != nil {
		return translateError(err)
	}

	go func() {
		if err := d.Run(context.Background(), id); err != nil {
			h.container.Logger.Error("campaign run failed",
				zap.Stringer("campaign_id", id), zap.Error(err))
		}
	}()

	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{"status": "started"})
}

func (h *HandlerSet) stopCampaign(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	if _, err := h.campaigns.Get(ctx.Context(), id); err != nil {
		return translateError(err)
	}

	if err := h.container.Signal().RequestStop(ctx.Context(), id); err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{"status": "stop requested"})
}

func (h *HandlerSet) campaignStats(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	stats, err := h.campaigns.GetStats(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}

	resp := campaignStatsResponse{Contacts: make(map[string]int64, len(stats.Contacts))}
	for status, count := range stats.Contacts {
		resp.Contacts[string(status)] = count
	}
	for _, row := range stats.Calls {
		resp.Calls = append(resp.Calls, callStatusBreakdown{
			Status:         row.Status,
			Count:          row.Count,
			TotalDuration:  row.TotalDuration,
			VoicemailCount: row.VoicemailCount,
		})
	}

	return ctx.JSON(resp)
}

func toContactInputs(reqs []contactRequest) []campaignsvc.ContactInput {
	out := make([]campaignsvc.ContactInput, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, campaignsvc.ContactInput{Name: r.Name, PhoneNumber: r.PhoneNumber})
	}
	return out
}

func toCampaignResponse(c *domain.Campaign) campaignResponse {
	return campaignResponse{
		ID:                c.ID,
		Name:              c.Name,
		Description:       c.Description,
		Trunk:             c.Trunk,
		CallerID:          c.CallerID,
		AudioFile:         c.AudioFile,
		MaxConcurrent:     c.MaxConcurrent,
		DelayBetweenCalls: int(c.DelayBetweenCalls / time.Second),
		Status:            c.Status,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
		StartedAt:         c.StartedAt,
		CompletedAt:       c.CompletedAt,
	}
}
