// Package reminder emails case owners about deadlines that are coming due.
package reminder

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"casedesk/api/internal/email"
	"casedesk/api/internal/listing"
	"casedesk/api/internal/store"
)

type Store interface {
	DeadlinesDueForReminder(ctx context.Context, now time.Time, window time.Duration) ([]store.DeadlineReminder, error)
	MarkDeadlineReminded(ctx context.Context, id string, at time.Time) error
}

type Mailer interface {
	IsConfigured() bool
	SendDeadlineReminder(to string, data email.DeadlineReminderData) error
}

type Config struct {
	Interval time.Duration
	Window   time.Duration
	AppURL   string
}

// Job sends one reminder per deadline. A deadline is marked reminded only
// after its email went out, so a failed send is retried on the next run.
type Job struct {
	store  Store
	mailer Mailer
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func New(store Store, mailer Mailer, cfg Config, logger *zap.Logger) *Job {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.Window <= 0 {
		cfg.Window = 48 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{store: store, mailer: mailer, cfg: cfg, logger: logger, now: time.Now}
}

// RunOnce sends every pending reminder and returns how many were sent.
func (j *Job) RunOnce(ctx context.Context) (int, error) {
	if !j.mailer.IsConfigured() {
		j.logger.Debug("email not configured, skipping deadline reminders")
		return 0, nil
	}
	now := j.now()
	due, err := j.store.DeadlinesDueForReminder(ctx, now, j.cfg.Window)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, item := range due {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		data := email.DeadlineReminderData{
			UserName: item.OwnerName,
			CaseCode: item.CaseCode,
			Title:    item.Title,
			DueAt:    listing.FormatDateTime(&item.DueAt),
			CaseURL:  j.caseURL(item.CaseID),
		}
		if err := j.mailer.SendDeadlineReminder(item.OwnerEmail, data); err != nil {
			j.logger.Warn("deadline reminder failed",
				zap.String("deadline_id", item.ID),
				zap.String("case_code", item.CaseCode),
				zap.Error(err))
			continue
		}
		if err := j.store.MarkDeadlineReminded(ctx, item.ID, now); err != nil {
			j.logger.Error("mark deadline reminded", zap.String("deadline_id", item.ID), zap.Error(err))
			continue
		}
		sent++
	}
	if sent > 0 {
		j.logger.Info("deadline reminders sent", zap.Int("sent", sent), zap.Int("due", len(due)))
	}
	return sent, nil
}

// Run calls RunOnce immediately and then on every interval until ctx is done.
func (j *Job) Run(ctx context.Context) {
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
			j.logger.Error("deadline reminder run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (j *Job) caseURL(caseID string) string {
	return strings.TrimRight(j.cfg.AppURL, "/") + "/cases/" + caseID
}
