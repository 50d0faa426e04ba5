package dialer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/simpledialer/internal/config"
	"github.com/acme/simpledialer/internal/domain"
	"github.com/acme/simpledialer/internal/queue"
	"github.com/acme/simpledialer/internal/repository"
	"github.com/acme/simpledialer/internal/telephony"
	"github.com/acme/simpledialer/pkg/logger"
)

type fakeCampaigns struct {
	campaign      *domain.Campaign
	started       bool
	completedWith domain.CampaignStatus
}

func (f *fakeCampaigns) Create(ctx context.Context, campaign *domain.Campaign) error { return nil }

func (f *fakeCampaigns) Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	if f.campaign == nil || f.campaign.ID != id {
		return nil, repository.ErrNotFound
	}
	return f.campaign, nil
}

func (f *fakeCampaigns) List(ctx context.Context, limit int) ([]*domain.Campaign, error) {
	return nil, nil
}

func (f *fakeCampaigns) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	return nil
}

func (f *fakeCampaigns) MarkStarted(ctx context.Context, id uuid.UUID) error {
	f.started = true
	return nil
}

func (f *fakeCampaigns) MarkCompleted(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	f.completedWith = status
	return nil
}

type fakeContacts struct {
	pending  []*domain.Contact
	statuses map[uuid.UUID]domain.ContactStatus
}

func (f *fakeContacts) BulkInsert(ctx context.Context, campaignID uuid.UUID, contacts []*domain.Contact) error {
	f.pending = append(f.pending, contacts...)
	return nil
}

func (f *fakeContacts) ListPending(ctx context.Context, campaignID uuid.UUID) ([]*domain.Contact, error) {
	return f.pending, nil
}

func (f *fakeContacts) SetStatus(ctx context.Context, contactID uuid.UUID, status domain.ContactStatus) error {
	if f.statuses == nil {
		f.statuses = make(map[uuid.UUID]domain.ContactStatus)
	}
	f.statuses[contactID] = status
	return nil
}

func (f *fakeContacts) CountByStatus(ctx context.Context, campaignID uuid.UUID) (map[domain.ContactStatus]int64, error) {
	counts := make(map[domain.ContactStatus]int64)
	for _, contact := range f.pending {
		status, ok := f.statuses[contact.ID]
		if !ok {
			status = domain.ContactStatusPending
		}
		counts[status]++
	}
	return counts, nil
}

type fakeCallLogs struct {
	logs map[string]*domain.CallLog
}

func (f *fakeCallLogs) Insert(ctx context.Context, log *domain.CallLog) error {
	if f.logs == nil {
		f.logs = make(map[string]*domain.CallLog)
	}
	f.logs[log.CallID] = log
	return nil
}

func (f *fakeCallLogs) UpdateStatus(ctx context.Context, callID string, status string) error {
	if log, ok := f.logs[callID]; ok {
		log.Status = status
	}
	return nil
}

func (f *fakeCallLogs) UpdateResult(ctx context.Context, callID string, result domain.CallResult) error {
	if log, ok := f.logs[callID]; ok {
		log.Status = result.Status
		log.Duration = result.Duration
		log.AnswerTime = result.AnswerTime
		log.HangupTime = result.HangupTime
		log.HangupCause = result.HangupCause
		log.VoicemailDetected = result.VoicemailDetected
	}
	return nil
}

func (f *fakeCallLogs) StatusBreakdown(ctx context.Context, campaignID uuid.UUID) ([]repository.StatusCount, error) {
	byStatus := make(map[string]*repository.StatusCount)
	for _, log := range f.logs {
		row, ok := byStatus[log.Status]
		if !ok {
			row = &repository.StatusCount{Status: log.Status}
			byStatus[log.Status] = row
		}
		row.Count++
		row.TotalDuration += int64(log.Duration)
		if log.VoicemailDetected {
			row.VoicemailCount++
		}
	}
	rows := make([]repository.StatusCount, 0, len(byStatus))
	for _, row := range byStatus {
		rows = append(rows, *row)
	}
	return rows, nil
}

func (f *fakeCallLogs) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]repository.CallLogEntry, error) {
	return nil, nil
}

// fakeClient scripts the control protocol: the first rejects originations
// fail, accepted ones optionally queue a notification built from the
// request itself.
type fakeClient struct {
	requests    []telephony.OriginateRequest
	rejects     int
	onOriginate func(req telephony.OriginateRequest)
	onAccept    func(req telephony.OriginateRequest) *telephony.StatusEvent
	events      []*telephony.StatusEvent
	live        map[string]bool
	allLive     bool
}

func (f *fakeClient) Originate(ctx context.Context, req telephony.OriginateRequest) (telephony.OriginateResult, error) {
	if f.onOriginate != nil {
		f.onOriginate(req)
	}
	f.requests = append(f.requests, req)
	if len(f.requests) <= f.rejects {
		return telephony.OriginateResult{Accepted: false, Message: "no free channels"}, nil
	}
	if f.onAccept != nil {
		if event := f.onAccept(req); event != nil {
			f.events = append(f.events, event)
		}
	}
	return telephony.OriginateResult{Accepted: true}, nil
}

func (f *fakeClient) ChannelLive(ctx context.Context, channel string) (bool, error) {
	return f.allLive || f.live[channel], nil
}

func (f *fakeClient) NextEvent() (*telephony.StatusEvent, bool) {
	if len(f.events) == 0 {
		return nil, false
	}
	event := f.events[0]
	f.events = f.events[1:]
	return event, true
}

type fakeSignal struct {
	stopAfter int // StopRequested turns true after this many checks; 0 = never
	checks    int
	cleared   int
	released  bool
}

func (f *fakeSignal) StopRequested(ctx context.Context, campaignID uuid.UUID) bool {
	f.checks++
	return f.stopAfter > 0 && f.checks > f.stopAfter
}

func (f *fakeSignal) ClearStop(ctx context.Context, campaignID uuid.UUID) error {
	f.cleared++
	return nil
}

func (f *fakeSignal) AcquireRun(ctx context.Context, campaignID uuid.UUID) (bool, error) {
	return true, nil
}

func (f *fakeSignal) ReleaseRun(ctx context.Context, campaignID uuid.UUID) error {
	f.released = true
	return nil
}

type fakePublisher struct {
	statuses  []queue.CallStatusMessage
	summaries []queue.CampaignSummaryMessage
}

func (f *fakePublisher) PublishCallStatus(ctx context.Context, msg queue.CallStatusMessage) error {
	f.statuses = append(f.statuses, msg)
	return nil
}

func (f *fakePublisher) PublishSummary(ctx context.Context, msg queue.CampaignSummaryMessage) error {
	f.summaries = append(f.summaries, msg)
	return nil
}

func testCampaign(maxConcurrent int) *domain.Campaign {
	return &domain.Campaign{
		ID:            uuid.New(),
		Name:          "appointment reminders",
		CallerID:      `"Acme" <+15550001111>`,
		AudioFile:     "reminder-announcement",
		MaxConcurrent: maxConcurrent,
		Status:        domain.CampaignStatusPending,
	}
}

func testContacts(campaignID uuid.UUID, n int) []*domain.Contact {
	contacts := make([]*domain.Contact, n)
	for i := range contacts {
		contacts[i] = &domain.Contact{
			ID:          uuid.New(),
			CampaignID:  campaignID,
			PhoneNumber: "+1555000" + uuid.NewString()[:4],
			Status:      domain.ContactStatusPending,
		}
	}
	return contacts
}

func testConfigs() (config.DialerConfig, config.TelephonyConfig) {
	return config.DialerConfig{
			SlotPollInterval: time.Millisecond,
			FinalizeInterval: time.Millisecond,
			CallLifetime:     time.Minute,
			FinalizeTimeout:  250 * time.Millisecond,
		}, config.TelephonyConfig{
			RequestTimeout:   time.Second,
			DialContext:      "simpledialer-outbound",
			LocalContext:     "from-internal",
			OriginateTimeout: 30 * time.Second,
		}
}

func hangupEvent(req telephony.OriginateRequest, status string, duration int) *telephony.StatusEvent {
	hangup := time.Now().UTC()
	answer := hangup.Add(-time.Duration(duration) * time.Second)
	return &telephony.StatusEvent{
		CallID:     req.Variables["CALL_ID"],
		Status:     status,
		Duration:   duration,
		AnswerTime: &answer,
		HangupTime: &hangup,
	}
}

func TestRunAnsweredCalls(t *testing.T) {
	campaign := testCampaign(1)
	contacts := testContacts(campaign.ID, 2)

	campaigns := &fakeCampaigns{campaign: campaign}
	contactRepo := &fakeContacts{pending: contacts}
	callLogs := &fakeCallLogs{}
	client := &fakeClient{onAccept: func(req telephony.OriginateRequest) *telephony.StatusEvent {
		return hangupEvent(req, "ANSWER", 42)
	}}
	signal := &fakeSignal{}
	publisher := &fakePublisher{}

	dialerCfg, telephonyCfg := testConfigs()
	d := New(Deps{
		Campaigns: campaigns,
		Contacts:  contactRepo,
		CallLogs:  callLogs,
		Telephony: client,
		Signal:    signal,
		Publisher: publisher,
	}, dialerCfg, telephonyCfg, &logger.Logger{Logger: zap.NewNop()})

	if err := d.Run(context.Background(), campaign.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !campaigns.started {
		t.Error("campaign was never marked started")
	}
	if campaigns.completedWith != domain.CampaignStatusCompleted {
		t.Errorf("terminal status = %q, want %q", campaigns.completedWith, domain.CampaignStatusCompleted)
	}
	if len(client.requests) != 2 {
		t.Fatalf("originations = %d, want 2", len(client.requests))
	}
	if d.ledger.size() != 0 {
		t.Errorf("ledger not empty after run: %d entries", d.ledger.size())
	}
	for _, contact := range contacts {
		if got := contactRepo.statuses[contact.ID]; got != domain.ContactStatusCalled {
			t.Errorf("contact %s status = %q, want %q", contact.ID, got, domain.ContactStatusCalled)
		}
	}
	for _, log := range callLogs.logs {
		if log.Status != "answered" || log.Duration != 42 {
			t.Errorf("call log %s = %q/%d, want answered/42", log.CallID, log.Status, log.Duration)
		}
	}
	if len(publisher.statuses) != 2 {
		t.Errorf("status messages = %d, want 2", len(publisher.statuses))
	}
	if len(publisher.summaries) != 1 {
		t.Fatalf("summary messages = %d, want 1", len(publisher.summaries))
	}
	if got := publisher.summaries[0].SuccessRate; got != 100.0 {
		t.Errorf("summary success rate = %v, want 100.0", got)
	}
	if !signal.released {
		t.Error("run lock was not released")
	}
}

// A rejected origination must not consume a concurrency slot; every
// following contact still gets attempted.
func TestRunOriginationRejected(t *testing.T) {
	campaign := testCampaign(1)
	contacts := testContacts(campaign.ID, 2)

	campaigns := &fakeCampaigns{campaign: campaign}
	contactRepo := &fakeContacts{pending: contacts}
	callLogs := &fakeCallLogs{}
	client := &fakeClient{
		rejects: 1,
		onAccept: func(req telephony.OriginateRequest) *telephony.StatusEvent {
			return hangupEvent(req, "ANSWER", 5)
		},
	}

	dialerCfg, telephonyCfg := testConfigs()
	d := New(Deps{
		Campaigns: campaigns,
		Contacts:  contactRepo,
		CallLogs:  callLogs,
		Telephony: client,
		Signal:    &fakeSignal{},
	}, dialerCfg, telephonyCfg, &logger.Logger{Logger: zap.NewNop()})

	if err := d.Run(context.Background(), campaign.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(client.requests) != 2 {
		t.Fatalf("originations = %d, want 2", len(client.requests))
	}
	if got := contactRepo.statuses[contacts[0].ID]; got != domain.ContactStatusFailed {
		t.Errorf("rejected contact status = %q, want %q", got, domain.ContactStatusFailed)
	}
	if got := contactRepo.statuses[contacts[1].ID]; got != domain.ContactStatusCalled {
		t.Errorf("accepted contact status = %q, want %q", got, domain.ContactStatusCalled)
	}

	var failed int
	for _, log := range callLogs.logs {
		if log.Status == domain.CallStatusFailed {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("failed call logs = %d, want 1", failed)
	}
}

// A call that never produces a notification is swept once its channel is
// gone, with the fallback completed status.
func TestRunSweepFallback(t *testing.T) {
	campaign := testCampaign(1)
	contacts := testContacts(campaign.ID, 1)

	campaigns := &fakeCampaigns{campaign: campaign}
	contactRepo := &fakeContacts{pending: contacts}
	callLogs := &fakeCallLogs{}
	client := &fakeClient{} // accepts, never notifies, channel never live
	publisher := &fakePublisher{}

	dialerCfg, telephonyCfg := testConfigs()
	d := New(Deps{
		Campaigns: campaigns,
		Contacts:  contactRepo,
		CallLogs:  callLogs,
		Telephony: client,
		Signal:    &fakeSignal{},
		Publisher: publisher,
	}, dialerCfg, telephonyCfg, &logger.Logger{Logger: zap.NewNop()})

	if err := d.Run(context.Background(), campaign.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var log *domain.CallLog
	for _, l := range callLogs.logs {
		log = l
	}
	if log == nil {
		t.Fatal("no call log written")
	}
	if log.Status != domain.CallStatusCompleted {
		t.Errorf("call log status = %q, want %q", log.Status, domain.CallStatusCompleted)
	}
	if got := contactRepo.statuses[contacts[0].ID]; got != domain.ContactStatusCalled {
		t.Errorf("contact status = %q, want %q", got, domain.ContactStatusCalled)
	}
	if d.ledger.size() != 0 {
		t.Errorf("ledger not empty after run: %d entries", d.ledger.size())
	}
	if len(publisher.statuses) != 1 || publisher.statuses[0].Status != domain.CallStatusCompleted {
		t.Errorf("expected one fallback status message, got %+v", publisher.statuses)
	}
	if campaigns.completedWith != domain.CampaignStatusCompleted {
		t.Errorf("terminal status = %q, want %q", campaigns.completedWith, domain.CampaignStatusCompleted)
	}
}

// The stop marker halts dispatch between contacts; untried contacts stay
// pending and the campaign still reaches its terminal status.
func TestRunStopRequested(t *testing.T) {
	campaign := testCampaign(5)
	contacts := testContacts(campaign.ID, 3)

	campaigns := &fakeCampaigns{campaign: campaign}
	contactRepo := &fakeContacts{pending: contacts}
	callLogs := &fakeCallLogs{}
	client := &fakeClient{onAccept: func(req telephony.OriginateRequest) *telephony.StatusEvent {
		return hangupEvent(req, "ANSWER", 10)
	}}
	signal := &fakeSignal{stopAfter: 1}

	dialerCfg, telephonyCfg := testConfigs()
	d := New(Deps{
		Campaigns: campaigns,
		Contacts:  contactRepo,
		CallLogs:  callLogs,
		Telephony: client,
		Signal:    signal,
	}, dialerCfg, telephonyCfg, &logger.Logger{Logger: zap.NewNop()})

	if err := d.Run(context.Background(), campaign.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(client.requests) != 1 {
		t.Fatalf("originations = %d, want 1", len(client.requests))
	}
	if signal.cleared != 1 {
		t.Errorf("stale stop marker cleared %d times, want 1", signal.cleared)
	}
	if _, ok := contactRepo.statuses[contacts[1].ID]; ok {
		t.Error("stopped run touched an undialed contact")
	}
	if _, ok := contactRepo.statuses[contacts[2].ID]; ok {
		t.Error("stopped run touched an undialed contact")
	}
	if campaigns.completedWith != domain.CampaignStatusCompleted {
		t.Errorf("terminal status = %q, want %q", campaigns.completedWith, domain.CampaignStatusCompleted)
	}
}

// A status notification without a hangup timestamp marks the entry as
// reported; the sweep must then remove it without overwriting the status.
func TestSweepKeepsReportedStatus(t *testing.T) {
	campaign := testCampaign(1)
	contacts := testContacts(campaign.ID, 1)

	campaigns := &fakeCampaigns{campaign: campaign}
	contactRepo := &fakeContacts{pending: contacts}
	callLogs := &fakeCallLogs{}
	client := &fakeClient{onAccept: func(req telephony.OriginateRequest) *telephony.StatusEvent {
		answer := time.Now().UTC()
		return &telephony.StatusEvent{
			CallID:     req.Variables["CALL_ID"],
			Status:     "ANSWER",
			Duration:   17,
			AnswerTime: &answer,
			// No HangupTime: the channel is still structurally up.
		}
	}}
	publisher := &fakePublisher{}

	dialerCfg, telephonyCfg := testConfigs()
	d := New(Deps{
		Campaigns: campaigns,
		Contacts:  contactRepo,
		CallLogs:  callLogs,
		Telephony: client,
		Signal:    &fakeSignal{},
		Publisher: publisher,
	}, dialerCfg, telephonyCfg, &logger.Logger{Logger: zap.NewNop()})

	if err := d.Run(context.Background(), campaign.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var log *domain.CallLog
	for _, l := range callLogs.logs {
		log = l
	}
	if log == nil {
		t.Fatal("no call log written")
	}
	if log.Status != "answered" {
		t.Errorf("call log status = %q, want answered (sweep must not overwrite)", log.Status)
	}
	if log.Duration != 17 {
		t.Errorf("call log duration = %d, want 17", log.Duration)
	}
	if d.ledger.size() != 0 {
		t.Errorf("ledger not empty after run: %d entries", d.ledger.size())
	}
	// Neither half saw a hangup, so no status message is emitted.
	if len(publisher.statuses) != 0 {
		t.Errorf("status messages = %d, want 0", len(publisher.statuses))
	}
}

// cancelOnLivenessClient cancels the run context from the liveness probe,
// simulating shutdown arriving while the gate is waiting on a full ledger.
type cancelOnLivenessClient struct {
	fakeClient
	cancel context.CancelFunc
}

func (c *cancelOnLivenessClient) ChannelLive(ctx context.Context, channel string) (bool, error) {
	c.cancel()
	return true, nil
}

// Cancellation while the gate is waiting must end dispatch without another
// origination; the concurrency ceiling holds at every gate decision.
func TestRunCancelledDuringSlotWait(t *testing.T) {
	campaign := testCampaign(1)
	contacts := testContacts(campaign.ID, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	campaigns := &fakeCampaigns{campaign: campaign}
	contactRepo := &fakeContacts{pending: contacts}
	callLogs := &fakeCallLogs{}
	client := &cancelOnLivenessClient{cancel: cancel} // accepts, never notifies

	dialerCfg, telephonyCfg := testConfigs()
	d := New(Deps{
		Campaigns: campaigns,
		Contacts:  contactRepo,
		CallLogs:  callLogs,
		Telephony: client,
		Signal:    &fakeSignal{},
	}, dialerCfg, telephonyCfg, &logger.Logger{Logger: zap.NewNop()})

	var activeAtOriginate []int
	client.onOriginate = func(req telephony.OriginateRequest) {
		activeAtOriginate = append(activeAtOriginate, d.ledger.size())
	}

	if err := d.Run(ctx, campaign.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for i, active := range activeAtOriginate {
		if active >= campaign.MaxConcurrent {
			t.Errorf("origination %d dispatched with %d active calls, ceiling is %d",
				i+1, active, campaign.MaxConcurrent)
		}
	}
	if len(client.requests) != 1 {
		t.Fatalf("originations = %d, want 1 after cancellation during slot wait", len(client.requests))
	}
	if _, ok := contactRepo.statuses[contacts[1].ID]; ok {
		t.Error("cancelled run touched an undialed contact")
	}
	if campaigns.completedWith != domain.CampaignStatusCompleted {
		t.Errorf("terminal status = %q, want %q", campaigns.completedWith, domain.CampaignStatusCompleted)
	}
}

// A call past its lifetime is swept even while its channel still reports
// live, with the fallback completed status.
func TestSweepRemovesExpiredLiveCall(t *testing.T) {
	campaign := testCampaign(1)
	contacts := testContacts(campaign.ID, 1)

	campaigns := &fakeCampaigns{campaign: campaign}
	contactRepo := &fakeContacts{pending: contacts}
	callLogs := &fakeCallLogs{}
	client := &fakeClient{allLive: true} // accepts, never notifies, never hangs up
	publisher := &fakePublisher{}

	dialerCfg, telephonyCfg := testConfigs()
	dialerCfg.CallLifetime = time.Microsecond
	d := New(Deps{
		Campaigns: campaigns,
		Contacts:  contactRepo,
		CallLogs:  callLogs,
		Telephony: client,
		Signal:    &fakeSignal{},
		Publisher: publisher,
	}, dialerCfg, telephonyCfg, &logger.Logger{Logger: zap.NewNop()})

	if err := d.Run(context.Background(), campaign.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var log *domain.CallLog
	for _, l := range callLogs.logs {
		log = l
	}
	if log == nil {
		t.Fatal("no call log written")
	}
	if log.Status != domain.CallStatusCompleted {
		t.Errorf("call log status = %q, want %q", log.Status, domain.CallStatusCompleted)
	}
	if got := contactRepo.statuses[contacts[0].ID]; got != domain.ContactStatusCalled {
		t.Errorf("contact status = %q, want %q", got, domain.ContactStatusCalled)
	}
	if d.ledger.size() != 0 {
		t.Errorf("ledger not empty after run: %d entries", d.ledger.size())
	}
	if len(publisher.statuses) != 1 || publisher.statuses[0].Status != domain.CallStatusCompleted {
		t.Errorf("expected one fallback status message, got %+v", publisher.statuses)
	}
}

// A stop arriving while the gate is waiting ends dispatch without another
// origination.
func TestStopRequestedDuringSlotWait(t *testing.T) {
	campaign := testCampaign(1)
	contacts := testContacts(campaign.ID, 2)

	campaigns := &fakeCampaigns{campaign: campaign}
	contactRepo := &fakeContacts{pending: contacts}
	callLogs := &fakeCallLogs{}
	client := &fakeClient{allLive: true} // first call never completes
	signal := &fakeSignal{stopAfter: 2}  // turns true on the gate's retry check

	dialerCfg, telephonyCfg := testConfigs()
	d := New(Deps{
		Campaigns: campaigns,
		Contacts:  contactRepo,
		CallLogs:  callLogs,
		Telephony: client,
		Signal:    signal,
	}, dialerCfg, telephonyCfg, &logger.Logger{Logger: zap.NewNop()})

	if err := d.Run(context.Background(), campaign.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(client.requests) != 1 {
		t.Fatalf("originations = %d, want 1 after stop during slot wait", len(client.requests))
	}
	if _, ok := contactRepo.statuses[contacts[1].ID]; ok {
		t.Error("stopped run touched an undialed contact")
	}
	if campaigns.completedWith != domain.CampaignStatusCompleted {
		t.Errorf("terminal status = %q, want %q", campaigns.completedWith, domain.CampaignStatusCompleted)
	}
}

func TestRunUnknownCampaign(t *testing.T) {
	dialerCfg, telephonyCfg := testConfigs()
	d := New(Deps{
		Campaigns: &fakeCampaigns{},
		Contacts:  &fakeContacts{},
		CallLogs:  &fakeCallLogs{},
		Telephony: &fakeClient{},
	}, dialerCfg, telephonyCfg, &logger.Logger{Logger: zap.NewNop()})

	if err := d.Run(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error for unknown campaign")
	}
}
