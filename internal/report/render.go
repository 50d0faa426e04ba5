package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/acme/simpledialer/internal/domain"
	"github.com/acme/simpledialer/internal/repository"
)

// Render produces the plain-text campaign report, the same artifact the
// mail relay forwards to campaign owners.
func Render(campaign *domain.Campaign, summary *Summary, logs []repository.CallLogEntry) string {
	var b strings.Builder

	b.WriteString("SIMPLE DIALER CAMPAIGN REPORT\n")
	b.WriteString("================================\n\n")
	fmt.Fprintf(&b, "Campaign: %s\n", campaign.Name)
	fmt.Fprintf(&b, "Description: %s\n", campaign.Description)
	fmt.Fprintf(&b, "Status: %s\n", campaign.Status)
	fmt.Fprintf(&b, "Generated: %s\n\n", summary.GeneratedAt.Format("2006-01-02 15:04:05"))

	b.WriteString("STATISTICS\n")
	b.WriteString("----------\n")
	fmt.Fprintf(&b, "Total Contacts: %d\n\n", summary.TotalContacts)

	b.WriteString("Call Status Breakdown:\n")
	fmt.Fprintf(&b, "  Answered: %d\n", summary.ByStatus["answered"])
	fmt.Fprintf(&b, "  No Answer: %d\n", summary.ByStatus["no-answer"])
	fmt.Fprintf(&b, "  Busy: %d\n", summary.ByStatus["busy"])
	fmt.Fprintf(&b, "  Congestion: %d\n", summary.ByStatus["congestion"])
	fmt.Fprintf(&b, "  Unavailable: %d\n", summary.ByStatus["unavailable"])
	fmt.Fprintf(&b, "  Cancelled: %d\n", summary.ByStatus["cancelled"])
	fmt.Fprintf(&b, "  Other: %d\n\n", summary.ByStatus[domain.CallStatusCompleted])

	b.WriteString("Call Metrics:\n")
	fmt.Fprintf(&b, "  Total Duration: %s\n", formatDuration(summary.TotalDuration))
	fmt.Fprintf(&b, "  Average Duration: %.1f seconds\n", summary.AvgDuration)
	fmt.Fprintf(&b, "  Voicemails Detected: %d\n", summary.VoicemailCount)
	fmt.Fprintf(&b, "  Success Rate: %.1f%%\n\n", summary.SuccessRate)

	if len(summary.ContactCounts) > 0 {
		b.WriteString("CONTACT STATUS BREAKDOWN\n")
		b.WriteString("------------------------\n")
		for _, status := range []domain.ContactStatus{
			domain.ContactStatusCalled, domain.ContactStatusFailed, domain.ContactStatusPending,
		} {
			if count, ok := summary.ContactCounts[status]; ok {
				fmt.Fprintf(&b, "%s: %d\n", capitalize(string(status)), count)
			}
		}
		b.WriteString("\n")
	}

	if len(logs) > 0 {
		b.WriteString("CALL LOGS\n")
		b.WriteString("---------\n")
		for _, log := range logs {
			fmt.Fprintf(&b, "%s - %s (%s) - %s\n",
				log.CreatedAt.Format("2006-01-02 15:04:05"),
				log.PhoneNumber, log.ContactName, capitalize(log.Status))
		}
	}

	return b.String()
}

func formatDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
