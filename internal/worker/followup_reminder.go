package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/headstart-tech/admissions-api/internal/model"
	"github.com/headstart-tech/admissions-api/internal/repository"
	"github.com/headstart-tech/admissions-api/internal/tenant"
	"github.com/headstart-tech/admissions-api/pkg/logger"
)

// Notifier is implemented by *notification.Service.
type Notifier interface {
	WriteAndPublish(ctx context.Context, in model.EventInput)
}

// TenantResolver is implemented by *tenant.Resolver.
type TenantResolver interface {
	Resolve(ctx context.Context, universityID string) (tenant.Settings, error)
}

type FollowupReminderConfig struct {
	Schedule     string
	Lookahead    time.Duration
	UniversityID string
}

// FollowupReminderWorker sends a "Followup reminder" notification for every open
// follow-up coming due within the lookahead, once per follow-up.
type FollowupReminderWorker struct {
	repo     repository.FollowupRepository
	notifier Notifier
	tenants  TenantResolver
	config   FollowupReminderConfig
	logger   *logger.Logger
	now      func() time.Time
}

func NewFollowupReminderWorker(repo repository.FollowupRepository, notifier Notifier, tenants TenantResolver, config FollowupReminderConfig, log *logger.Logger) *FollowupReminderWorker {
	if config.Lookahead <= 0 {
		config.Lookahead = 15 * time.Minute
	}
	return &FollowupReminderWorker{
		repo:     repo,
		notifier: notifier,
		tenants:  tenants,
		config:   config,
		logger:   log.WithFields(map[string]interface{}{"worker": "followup_reminder"}),
		now:      time.Now,
	}
}

// Start runs the worker on its cron schedule until ctx is done. Overlapping runs
// are skipped.
func (w *FollowupReminderWorker) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.Recover(w.logger), cron.SkipIfStillRunning(w.logger)))
	if _, err := c.AddFunc(w.config.Schedule, func() {
		if err := w.RunOnce(ctx); err != nil {
			w.logger.Error(err, "followup reminder run failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid followup schedule %q: %w", w.config.Schedule, err)
	}

	w.logger.Info("Worker started", "schedule", w.config.Schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	w.logger.Info("Worker shutting down")
	return nil
}

// RunOnce reminds every follow-up due between now and now+Lookahead. A follow-up
// whose reminder cannot be marked is retried on the next run.
func (w *FollowupReminderWorker) RunOnce(ctx context.Context) error {
	settings, err := w.tenants.Resolve(ctx, w.config.UniversityID)
	if err != nil {
		return fmt.Errorf("failed to resolve university %s: %w", w.config.UniversityID, err)
	}
	ctx = tenant.WithSettings(ctx, settings)

	now := w.now().UTC()
	due, err := w.repo.FindDue(ctx, now, now.Add(w.config.Lookahead))
	if err != nil {
		return err
	}

	sent := 0
	for _, f := range due {
		at := f.FollowupAt
		in := model.EventInput{
			Kind:      model.KindFollowupReminder,
			StudentID: f.StudentID.Hex(),
			Payload:   model.EventPayload{FollowupAt: &at},
		}
		if !f.ApplicationID.IsZero() {
			in.ApplicationID = f.ApplicationID.Hex()
		}
		if !f.AssignedTo.IsZero() {
			in.RecipientOverride = f.AssignedTo.Hex()
		}

		w.notifier.WriteAndPublish(ctx, in)
		if err := w.repo.MarkReminded(ctx, f.ID); err != nil {
			w.logger.Warn(err, "failed to mark followup reminded", "followup_id", f.ID.Hex())
			continue
		}
		sent++
	}

	if len(due) > 0 {
		w.logger.Info("followup reminders sent", "due", len(due), "sent", sent)
	}
	return nil
}
