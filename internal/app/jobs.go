package app

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/talkincode/storefront/internal/relations"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

const auditTimeout = 10 * time.Minute

// initJob registers the scheduled jobs. The scheduler is started by
// StartBackgroundJobs.
func (a *Application) initJob() error {
	loc, err := time.LoadLocation(a.appConfig.System.Location)
	if err != nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	schedule := a.appConfig.System.AuditCron
	if schedule == "" {
		zap.L().Info("integrity audit schedule disabled")
		return nil
	}
	if _, err := a.sched.AddFunc(schedule, a.SchedIntegrityAuditTask); err != nil {
		return errors.Wrapf(err, "invalid system.audit_cron %q", schedule)
	}
	return nil
}

// SchedIntegrityAuditTask runs the reference integrity audit
func (a *Application) SchedIntegrityAuditTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	report, err := a.RunAudit(ctx)
	if err != nil {
		zap.L().Error("scheduled integrity audit failed", zap.Error(err))
		return
	}
	if len(report.Findings) > 0 {
		zap.L().Warn("integrity audit found inconsistencies",
			zap.Int("dangling", report.Dangling()),
			zap.Int("orphans", report.Orphans()))
	}
}

// subscribeAuditLog writes every relationship event to the log.
func (a *Application) subscribeAuditLog() {
	logEvent := func(ev relations.Event) {
		zap.L().Info("relationship changed",
			zap.String("namespace", "audit"),
			zap.String("topic", ev.Topic),
			zap.Int64("parent_id", ev.ParentID),
			zap.Int64("child_id", ev.ChildID),
			zap.Int64("count", ev.Count))
	}
	for _, topic := range relations.Topics {
		if err := a.bus.Subscribe(topic, logEvent); err != nil {
			zap.L().Error("subscribe audit log", zap.String("topic", topic), zap.Error(err))
		}
	}
}
