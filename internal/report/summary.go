package report

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/acme/simpledialer/internal/domain"
	"github.com/acme/simpledialer/internal/repository"
)

// RunCounts are the dispatcher's own tallies for one campaign run.
type RunCounts struct {
	Total      int64
	Successful int64
	Failed     int64
}

// Summary aggregates the outcome of a campaign run.
type Summary struct {
	TotalContacts  int64
	Successful     int64
	Failed         int64
	ByStatus       map[string]int64
	ContactCounts  map[domain.ContactStatus]int64
	TotalDuration  int64
	AvgDuration    float64
	VoicemailCount int64
	SuccessRate    float64
	GeneratedAt    time.Time
}

// Builder computes summaries from the store.
type Builder struct {
	contacts repository.ContactRepository
	callLogs repository.CallLogRepository
}

// NewBuilder constructs a summary builder.
func NewBuilder(contacts repository.ContactRepository, callLogs repository.CallLogRepository) *Builder {
	return &Builder{contacts: contacts, callLogs: callLogs}
}

// Build computes the summary for a finished campaign run.
func (b *Builder) Build(ctx context.Context, campaign *domain.Campaign, counts RunCounts) (*Summary, error) {
	breakdown, err := b.callLogs.StatusBreakdown(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("report: status breakdown: %w", err)
	}

	contactCounts, err := b.contacts.CountByStatus(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("report: contact counts: %w", err)
	}

	summary := &Summary{
		TotalContacts: counts.Total,
		Successful:    counts.Successful,
		Failed:        counts.Failed,
		ByStatus:      make(map[string]int64, len(breakdown)),
		ContactCounts: contactCounts,
		GeneratedAt:   time.Now().UTC(),
	}

	for _, row := range breakdown {
		summary.ByStatus[row.Status] = row.Count
		summary.TotalDuration += row.TotalDuration
		summary.VoicemailCount += row.VoicemailCount
	}

	answered := summary.ByStatus[domain.CallStatusAnswered]
	summary.SuccessRate = SuccessRate(answered, counts.Total)
	if answered > 0 {
		summary.AvgDuration = round1(float64(summary.TotalDuration) / float64(answered))
	}

	return summary, nil
}

// SuccessRate is the percentage of attempted contacts that answered,
// rounded to one decimal place.
func SuccessRate(answered, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return round1(float64(answered) / float64(total) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
