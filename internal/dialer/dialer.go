package dialer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/simpledialer/internal/config"
	"github.com/acme/simpledialer/internal/domain"
	"github.com/acme/simpledialer/internal/queue"
	"github.com/acme/simpledialer/internal/report"
	"github.com/acme/simpledialer/internal/repository"
	"github.com/acme/simpledialer/internal/telephony"
	"github.com/acme/simpledialer/pkg/logger"
)

// RunSignal is the external stop marker and run lock, polled cooperatively.
type RunSignal interface {
	StopRequested(ctx context.Context, campaignID uuid.UUID) bool
	ClearStop(ctx context.Context, campaignID uuid.UUID) error
	AcquireRun(ctx context.Context, campaignID uuid.UUID) (bool, error)
	ReleaseRun(ctx context.Context, campaignID uuid.UUID) error
}

// Publisher emits status and summary events for downstream consumers.
type Publisher interface {
	PublishCallStatus(ctx context.Context, msg queue.CallStatusMessage) error
	PublishSummary(ctx context.Context, msg queue.CampaignSummaryMessage) error
}

// ReportSink persists rendered report artifacts.
type ReportSink interface {
	Save(campaignID uuid.UUID, content string) (string, error)
	CleanupOld() (int, error)
}

// Deps are the collaborators one campaign run needs. Archive, Publisher and
// Reports are optional; everything else is required.
type Deps struct {
	Campaigns repository.CampaignRepository
	Contacts  repository.ContactRepository
	CallLogs  repository.CallLogRepository
	Archive   repository.EventArchive
	Telephony telephony.Client
	Signal    RunSignal
	Publisher Publisher
	Reports   ReportSink
}

// Dialer runs one campaign to completion: concurrency-bounded dispatch over
// the pending contact snapshot, cooperative reconciliation of asynchronous
// completions, and a bounded finalizer. The whole run is a single
// cooperative flow; the ledger is never mutated from another goroutine.
type Dialer struct {
	deps         Deps
	cfg          config.DialerConfig
	telephonyCfg config.TelephonyConfig
	log          *logger.Logger

	campaign *domain.Campaign
	ledger   *ledger
}

// New constructs a dialer.
func New(deps Deps, cfg config.DialerConfig, telephonyCfg config.TelephonyConfig, log *logger.Logger) *Dialer {
	return &Dialer{
		deps:         deps,
		cfg:          cfg,
		telephonyCfg: telephonyCfg,
		log:          log,
		ledger:       newLedger(),
	}
}

// Run executes the campaign identified by campaignID. Setup failures return
// an error before any dispatch; after the first origination the run always
// reaches a terminal campaign status.
func (d *Dialer) Run(ctx context.Context, campaignID uuid.UUID) error {
	campaign, err := d.deps.Campaigns.Get(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("dialer: load campaign %s: %w", campaignID, err)
	}
	d.campaign = campaign
	d.log = &logger.Logger{Logger: d.log.With(
		zap.Stringer("campaign_id", campaign.ID),
		zap.String("campaign", campaign.Name))}

	if d.deps.Signal != nil {
		acquired, err := d.deps.Signal.AcquireRun(ctx, campaign.ID)
		if err != nil {
			return fmt.Errorf("dialer: acquire run lock: %w", err)
		}
		if !acquired {
			return fmt.Errorf("dialer: campaign %s already has an active run", campaign.ID)
		}
		defer func() {
			if err := d.deps.Signal.ReleaseRun(context.WithoutCancel(ctx), campaign.ID); err != nil {
				d.log.Warn("run lock release failed", zap.Error(err))
			}
		}()

		// A marker left behind by a previous run would stop us immediately.
		if err := d.deps.Signal.ClearStop(ctx, campaign.ID); err != nil {
			return fmt.Errorf("dialer: clear stale stop marker: %w", err)
		}
	}

	contacts, err := d.deps.Contacts.ListPending(ctx, campaign.ID)
	if err != nil {
		return fmt.Errorf("dialer: load contacts: %w", err)
	}

	if err := d.deps.Campaigns.MarkStarted(ctx, campaign.ID); err != nil {
		return fmt.Errorf("dialer: mark campaign started: %w", err)
	}

	tracer := otel.Tracer("simpledialer.run")
	runCtx, span := tracer.Start(ctx, "campaign.run", trace.WithAttributes(
		attribute.String("campaign.id", campaign.ID.String()),
		attribute.Int("campaign.contacts", len(contacts)),
		attribute.Int("campaign.max_concurrent", campaign.MaxConcurrent),
	))
	defer span.End()

	d.log.Info("starting campaign",
		zap.Int("contacts", len(contacts)),
		zap.Int("max_concurrent", campaign.MaxConcurrent),
		zap.Duration("delay_between_calls", campaign.DelayBetweenCalls))

	counts := d.dispatch(runCtx, contacts)

	// Finalization must reach a terminal state even if the surrounding
	// process is shutting down.
	d.finalize(context.WithoutCancel(runCtx), counts)
	return nil
}

// dispatch iterates the contact snapshot in order, one origination per
// contact, honoring the stop marker once per iteration.
func (d *Dialer) dispatch(ctx context.Context, contacts []*domain.Contact) report.RunCounts {
	counts := report.RunCounts{Total: int64(len(contacts))}

	for i, contact := range contacts {
		if ctx.Err() != nil {
			d.log.Info("context cancelled, terminating dispatch")
			break
		}
		if d.deps.Signal != nil && d.deps.Signal.StopRequested(ctx, d.campaign.ID) {
			d.log.Info("stop signal received, terminating campaign")
			break
		}

		if !d.waitForSlot(ctx) {
			d.log.Info("slot wait interrupted, terminating dispatch")
			break
		}

		d.log.Info("calling contact",
			zap.Int("position", i+1),
			zap.Int("total", len(contacts)),
			zap.String("phone_number", contact.PhoneNumber))

		if d.placeCall(ctx, contact) {
			counts.Successful++
		} else {
			counts.Failed++
		}

		if i < len(contacts)-1 {
			sleepCtx(ctx, d.campaign.DelayBetweenCalls)
		}
	}

	return counts
}

// waitForSlot blocks until the ledger drops below the concurrency ceiling,
// reconciling on every retry so freed slots become visible. Returns false
// when the context ended or a stop arrived while waiting; the caller must
// not originate then, the ceiling still holds.
func (d *Dialer) waitForSlot(ctx context.Context) bool {
	for d.ledger.size() >= d.campaign.MaxConcurrent {
		if d.deps.Signal != nil && d.deps.Signal.StopRequested(ctx, d.campaign.ID) {
			d.log.Info("stop signal received while waiting for slot")
			return false
		}
		d.log.Info("waiting for available slot",
			zap.Int("active", d.ledger.size()),
			zap.Int("max_concurrent", d.campaign.MaxConcurrent))
		if !sleepCtx(ctx, d.cfg.SlotPollInterval) {
			return false
		}
		d.reconcile(ctx)
	}
	return ctx.Err() == nil
}

// placeCall originates one call. Acceptance means "taken for origination";
// the outcome arrives later as a notification or falls to the sweep.
func (d *Dialer) placeCall(ctx context.Context, contact *domain.Contact) bool {
	now := time.Now().UTC()
	callID := newCallID(d.campaign.ID, contact.ID, now)
	req := d.buildOriginate(d.campaign, contact, callID)

	reqCtx, cancel := context.WithTimeout(ctx, d.telephonyCfg.RequestTimeout)
	result, err := d.deps.Telephony.Originate(reqCtx, req)
	cancel()

	accepted := err == nil && result.Accepted
	logStatus := domain.CallStatusInitiated
	if !accepted {
		logStatus = domain.CallStatusFailed
		d.log.Warn("origination rejected",
			zap.String("phone_number", contact.PhoneNumber),
			zap.String("message", result.Message),
			zap.Error(err))
	}

	callLog := &domain.CallLog{
		CallID:      callID,
		CampaignID:  d.campaign.ID,
		ContactID:   contact.ID,
		PhoneNumber: contact.PhoneNumber,
		Status:      logStatus,
		CreatedAt:   now,
	}
	if err := d.deps.CallLogs.Insert(ctx, callLog); err != nil {
		d.log.Warn("call log insert failed", zap.String("call_id", callID), zap.Error(err))
	}

	contactStatus := domain.ContactStatusFailed
	if accepted {
		contactStatus = domain.ContactStatusCalled
		d.ledger.insert(callID, &activeCall{
			ContactID:   contact.ID,
			PhoneNumber: contact.PhoneNumber,
			Channel:     req.Channel,
			StartTime:   now,
		})
	}
	if err := d.deps.Contacts.SetStatus(ctx, contact.ID, contactStatus); err != nil {
		d.log.Warn("contact update failed", zap.Stringer("contact_id", contact.ID), zap.Error(err))
	}

	return accepted
}

// finalize drains remaining in-flight calls under a bound, force-completes
// stragglers, records the terminal campaign status and hands the summary to
// the reporting collaborators. Runs exactly once per campaign run.
func (d *Dialer) finalize(ctx context.Context, counts report.RunCounts) {
	d.log.Info("waiting for remaining calls to complete", zap.Int("active", d.ledger.size()))

	deadline := time.Now().Add(d.cfg.FinalizeTimeout)
	for d.ledger.size() > 0 && time.Now().Before(deadline) {
		sleepCtx(ctx, d.cfg.FinalizeInterval)
		d.reconcile(ctx)
		if n := d.ledger.size(); n > 0 {
			d.log.Info("still waiting for active calls", zap.Int("active", n))
		}
	}

	if d.ledger.size() > 0 {
		d.log.Info("finalize bound reached, force completing remaining calls",
			zap.Int("active", d.ledger.size()))
		for callID, call := range d.ledger.calls {
			if err := d.deps.Contacts.SetStatus(ctx, call.ContactID, domain.ContactStatusCalled); err != nil {
				d.log.Warn("contact update failed", zap.Stringer("contact_id", call.ContactID), zap.Error(err))
			}
			d.ledger.remove(callID)
		}
	}

	if err := d.deps.Campaigns.MarkCompleted(ctx, d.campaign.ID, domain.CampaignStatusCompleted); err != nil {
		d.log.Warn("campaign status update failed", zap.Error(err))
	}
	d.campaign.Status = domain.CampaignStatusCompleted

	d.log.Info("campaign completed",
		zap.Int64("successful", counts.Successful),
		zap.Int64("failed", counts.Failed))

	d.emitReport(ctx, counts)
}

func (d *Dialer) emitReport(ctx context.Context, counts report.RunCounts) {
	builder := report.NewBuilder(d.deps.Contacts, d.deps.CallLogs)
	summary, err := builder.Build(ctx, d.campaign, counts)
	if err != nil {
		d.log.Warn("summary computation failed", zap.Error(err))
		return
	}

	logs, err := d.deps.CallLogs.ListByCampaign(ctx, d.campaign.ID)
	if err != nil {
		d.log.Warn("call log listing failed", zap.Error(err))
	}
	rendered := report.Render(d.campaign, summary, logs)

	if d.deps.Reports != nil {
		if path, err := d.deps.Reports.Save(d.campaign.ID, rendered); err != nil {
			d.log.Warn("report save failed", zap.Error(err))
		} else {
			d.log.Info("campaign report saved", zap.String("path", path))
		}
		if deleted, err := d.deps.Reports.CleanupOld(); err != nil {
			d.log.Warn("report cleanup failed", zap.Error(err))
		} else if deleted > 0 {
			d.log.Info("cleaned up old reports", zap.Int("deleted", deleted))
		}
	}

	if d.deps.Publisher != nil {
		msg := report.SummaryMessage(d.campaign, summary, rendered)
		if err := d.deps.Publisher.PublishSummary(ctx, msg); err != nil {
			d.log.Warn("summary publish failed", zap.Error(err))
		}
	}
}

// sleepCtx sleeps for d unless the context ends first. Returns false when
// the context ended.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
