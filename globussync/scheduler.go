package globussync

import (
	"context"
	"errors"
	"time"

	"github.com/gestaofrota/globus_backend/models"
	"github.com/gestaofrota/globus_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Scheduler runs the trailing-window sync for every domain on a fixed
// interval. Each tick syncs domains sequentially; the scope guard makes
// overlap with a manual run for the same domain harmless.
type Scheduler struct {
	Orchestrator *Orchestrator
	Logger       *logrus.Logger
	SchedulerID  string

	Interval   time.Duration
	WindowDays int
}

func NewScheduler(orchestrator *Orchestrator, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		Orchestrator: orchestrator,
		Logger:       logger,
		SchedulerID:  uuid.NewString(),
		Interval:     time.Duration(utils.IntFromEnv("SYNC_SCHEDULE_MINUTES", 30)) * time.Minute,
		WindowDays:   utils.IntFromEnv("SYNC_WINDOW_DAYS", 7),
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.Logger.WithFields(logrus.Fields{
		"module":      "globussync",
		"schedulerId": s.SchedulerID,
		"interval":    s.Interval.String(),
	}).Info("sync scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.Logger.WithFields(logrus.Fields{
				"module":      "globussync",
				"schedulerId": s.SchedulerID,
			}).Info("sync scheduler stopped")
			return
		case <-time.After(s.Interval):
		}
		s.tick(ctx)
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()
	tickCtx := utils.SetTriggeredByInContext(ctx, models.SyncTriggeredScheduled)
	tickCtx = utils.SetCorrelationIdInContext(tickCtx, uuid.NewString())

	for _, dominio := range models.AllDominios() {
		if ctx.Err() != nil {
			return
		}
		scope := Scope{
			Dominio: dominio,
			Inicio:  now.AddDate(0, 0, -s.WindowDays),
			Fim:     now,
		}

		result, err := s.Orchestrator.Sync(tickCtx, scope)
		if errors.Is(err, utils.ErrSyncAlreadyInProgress) {
			// A manual run holds the scope; the next tick catches up.
			continue
		}
		if err != nil {
			s.Logger.WithFields(logrus.Fields{
				"module":      "globussync",
				"schedulerId": s.SchedulerID,
				"dominio":     dominio,
				"runId":       result.RunId,
			}).Error("scheduled sync failed: " + err.Error())
			continue
		}
		s.Logger.WithFields(logrus.Fields{
			"module":      "globussync",
			"schedulerId": s.SchedulerID,
			"dominio":     dominio,
			"runId":       result.RunId,
			"status":      result.Status,
			"fetched":     result.Fetched,
		}).Info("scheduled sync finished")
	}
}
