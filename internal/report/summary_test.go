package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/acme/simpledialer/internal/domain"
	"github.com/acme/simpledialer/internal/repository"
)

type fakeContacts struct {
	counts map[domain.ContactStatus]int64
}

func (f *fakeContacts) BulkInsert(ctx context.Context, campaignID uuid.UUID, contacts []*domain.Contact) error {
	return nil
}

func (f *fakeContacts) ListPending(ctx context.Context, campaignID uuid.UUID) ([]*domain.Contact, error) {
	return nil, nil
}

func (f *fakeContacts) SetStatus(ctx context.Context, contactID uuid.UUID, status domain.ContactStatus) error {
	return nil
}

func (f *fakeContacts) CountByStatus(ctx context.Context, campaignID uuid.UUID) (map[domain.ContactStatus]int64, error) {
	return f.counts, nil
}

type fakeCallLogs struct {
	breakdown []repository.StatusCount
	entries   []repository.CallLogEntry
}

func (f *fakeCallLogs) Insert(ctx context.Context, log *domain.CallLog) error { return nil }

func (f *fakeCallLogs) UpdateStatus(ctx context.Context, callID string, status string) error {
	return nil
}

func (f *fakeCallLogs) UpdateResult(ctx context.Context, callID string, result domain.CallResult) error {
	return nil
}

func (f *fakeCallLogs) StatusBreakdown(ctx context.Context, campaignID uuid.UUID) ([]repository.StatusCount, error) {
	return f.breakdown, nil
}

func (f *fakeCallLogs) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]repository.CallLogEntry, error) {
	return f.entries, nil
}

func TestSuccessRate(t *testing.T) {
	cases := []struct {
		answered, total int64
		want            float64
	}{
		{4, 10, 40.0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{10, 10, 100.0},
		{0, 5, 0},
		{0, 0, 0},
		{3, -1, 0},
	}

	for _, tc := range cases {
		if got := SuccessRate(tc.answered, tc.total); got != tc.want {
			t.Errorf("SuccessRate(%d, %d) = %v, want %v", tc.answered, tc.total, got, tc.want)
		}
	}
}

func TestBuilderBuild(t *testing.T) {
	campaign := &domain.Campaign{ID: uuid.New(), Name: "reminders"}

	contacts := &fakeContacts{counts: map[domain.ContactStatus]int64{
		domain.ContactStatusCalled: 3,
		domain.ContactStatusFailed: 1,
	}}
	callLogs := &fakeCallLogs{breakdown: []repository.StatusCount{
		{Status: "answered", Count: 3, TotalDuration: 120, VoicemailCount: 1},
		{Status: "busy", Count: 1},
	}}

	builder := NewBuilder(contacts, callLogs)
	summary, err := builder.Build(context.Background(), campaign, RunCounts{Total: 4, Successful: 4})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if summary.TotalContacts != 4 {
		t.Errorf("total contacts = %d, want 4", summary.TotalContacts)
	}
	if summary.ByStatus["answered"] != 3 || summary.ByStatus["busy"] != 1 {
		t.Errorf("status counts = %v", summary.ByStatus)
	}
	if summary.TotalDuration != 120 {
		t.Errorf("total duration = %d, want 120", summary.TotalDuration)
	}
	if summary.AvgDuration != 40.0 {
		t.Errorf("avg duration = %v, want 40.0", summary.AvgDuration)
	}
	if summary.VoicemailCount != 1 {
		t.Errorf("voicemail count = %d, want 1", summary.VoicemailCount)
	}
	if summary.SuccessRate != 75.0 {
		t.Errorf("success rate = %v, want 75.0", summary.SuccessRate)
	}
	if summary.ContactCounts[domain.ContactStatusCalled] != 3 {
		t.Errorf("contact counts = %v", summary.ContactCounts)
	}
}

func TestRender(t *testing.T) {
	campaign := &domain.Campaign{
		ID:          uuid.New(),
		Name:        "reminders",
		Description: "weekly appointment reminders",
		Status:      domain.CampaignStatusCompleted,
	}
	summary := &Summary{
		TotalContacts: 4,
		ByStatus:      map[string]int64{"answered": 3, "busy": 1},
		ContactCounts: map[domain.ContactStatus]int64{domain.ContactStatusCalled: 3},
		TotalDuration: 3725,
		AvgDuration:   40.0,
		SuccessRate:   75.0,
		GeneratedAt:   time.Date(2026, 2, 3, 9, 30, 0, 0, time.UTC),
	}
	logs := []repository.CallLogEntry{
		{PhoneNumber: "+15550002222", ContactName: "Alice", Status: "answered",
			CreatedAt: time.Date(2026, 2, 3, 9, 15, 0, 0, time.UTC)},
	}

	out := Render(campaign, summary, logs)

	for _, want := range []string{
		"SIMPLE DIALER CAMPAIGN REPORT",
		"Campaign: reminders",
		"Total Contacts: 4",
		"Answered: 3",
		"Busy: 1",
		"Total Duration: 01:02:05",
		"Success Rate: 75.0%",
		"Called: 3",
		"+15550002222 (Alice) - Answered",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\n%s", want, out)
		}
	}
}
