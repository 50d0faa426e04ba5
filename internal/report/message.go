package report

import (
	"time"

	"github.com/acme/simpledialer/internal/domain"
	"github.com/acme/simpledialer/internal/queue"
	"github.com/acme/simpledialer/internal/service/common"
)

// SummaryMessage packages a summary and the rendered report for the
// downstream notification consumers.
func SummaryMessage(campaign *domain.Campaign, summary *Summary, rendered string) queue.CampaignSummaryMessage {
	byStatus := make(map[string]int64, len(summary.ByStatus))
	for status, count := range summary.ByStatus {
		byStatus[status] = count
	}

	return queue.CampaignSummaryMessage{
		CampaignID:     campaign.ID,
		CampaignName:   campaign.Name,
		Status:         string(campaign.Status),
		TotalContacts:  summary.TotalContacts,
		Successful:     summary.Successful,
		Failed:         summary.Failed,
		ByStatus:       byStatus,
		TotalDuration:  summary.TotalDuration,
		AvgDuration:    summary.AvgDuration,
		VoicemailCount: summary.VoicemailCount,
		SuccessRate:    summary.SuccessRate,
		ReportBase64:   common.EncodeBase64([]byte(rendered)),
		CompletedAt:    time.Now().UTC(),
	}
}
