package globussync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gestaofrota/globus_backend/config"
	"github.com/gestaofrota/globus_backend/models"
	"github.com/gestaofrota/globus_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxErrorSamples = 5

// Orchestrator drives one synchronization run end to end: scope guard,
// ledger row, record stream, per-record upserts and the terminal status.
// One orchestrator serves all domains; concurrency is bounded by the
// guard, not by the orchestrator itself.
type Orchestrator struct {
	DB         *gorm.DB
	Reader     LegacyReader
	Upserter   *Upserter
	Guard      ScopeGuard
	Logger     *logrus.Logger
	RunTimeout time.Duration

	mu      sync.Mutex
	running map[models.Dominio]*runHandle
}

type runHandle struct {
	cancel    context.CancelFunc
	runId     uint
	cancelled bool
}

func NewOrchestrator(db *gorm.DB, reader LegacyReader, upserter *Upserter, guard ScopeGuard, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		DB:         db,
		Reader:     reader,
		Upserter:   upserter,
		Guard:      guard,
		Logger:     logger,
		RunTimeout: utils.DurationFromEnvSeconds("SYNC_RUN_TIMEOUT_SECONDS", 10*time.Minute),
		running:    map[models.Dominio]*runHandle{},
	}
}

func (o *Orchestrator) db() *gorm.DB {
	if o.DB != nil {
		return o.DB
	}
	return config.GetDB()
}

// Sync executes one run for the scope. The returned error is non-nil
// only when the run could not execute at all (scope held, unknown
// domain, ledger failure) or when the legacy source became unavailable;
// per-record failures are reported through the result counts and a
// partial status instead.
func (o *Orchestrator) Sync(ctx context.Context, scope Scope) (SyncResult, error) {
	return o.run(ctx, scope, nil)
}

// Retry re-executes the scope of a terminal run as a new ledger row
// linked to the original via parentRunId. The original row is never
// touched.
func (o *Orchestrator) Retry(ctx context.Context, runId uint) (SyncResult, error) {
	var parent models.SyncRun
	if err := o.db().WithContext(ctx).Take(&parent, runId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SyncResult{}, utils.ErrorRecordNotFound
		}
		return SyncResult{}, err
	}
	if !parent.IsTerminal() {
		return SyncResult{}, fmt.Errorf("%w: run %d is still %s", utils.ErrSyncAlreadyInProgress, runId, parent.Status)
	}

	scope := Scope{Dominio: parent.Dominio, Chaves: DecodeChaves(parent.ChavesJSON)}
	if parent.PeriodoInicio != nil {
		scope.Inicio = *parent.PeriodoInicio
	}
	if parent.PeriodoFim != nil {
		scope.Fim = *parent.PeriodoFim
	}
	ctx = utils.SetTriggeredByInContext(ctx, models.SyncTriggeredRetry)
	return o.run(ctx, scope, &parent.ID)
}

// Cancel signals the in-flight run for the domain, if any. The run
// observes the signal between records and lands on the cancelled
// status; records already applied stay applied.
func (o *Orchestrator) Cancel(dominio models.Dominio) (uint, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	handle, ok := o.running[dominio]
	if !ok {
		return 0, false
	}
	handle.cancelled = true
	handle.cancel()
	return handle.runId, true
}

func (o *Orchestrator) run(ctx context.Context, scope Scope, parentRunId *uint) (SyncResult, error) {
	if bindingFor(scope.Dominio) == nil {
		return SyncResult{}, fmt.Errorf("%w: unknown domain %q", utils.ErrInvalidRecord, scope.Dominio)
	}

	release, err := o.Guard.Acquire(ctx, scope.Dominio)
	if err != nil {
		return SyncResult{}, err
	}
	defer release()

	run, err := o.createRun(ctx, scope, parentRunId)
	if err != nil {
		return SyncResult{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, o.RunTimeout)
	defer cancel()

	handle := &runHandle{cancel: cancel, runId: run.ID}
	o.mu.Lock()
	o.running[scope.Dominio] = handle
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.running, scope.Dominio)
		o.mu.Unlock()
	}()

	startedAt := time.Now().UTC()
	o.db().Model(run).Updates(map[string]interface{}{
		"status":     models.SyncRunStatusRunning,
		"started_at": startedAt,
	})

	o.Logger.WithFields(logrus.Fields{
		"module":        "globussync",
		"dominio":       scope.Dominio,
		"runId":         run.ID,
		"periodoInicio": scope.Inicio,
		"periodoFim":    scope.Fim,
	}).Info("sync run started")

	result := SyncResult{
		RunId:         run.ID,
		Dominio:       scope.Dominio,
		PeriodoInicio: scope.Inicio,
		PeriodoFim:    scope.Fim,
	}
	var samples []string
	var runErr error

	stream, err := o.Reader.FetchChanged(runCtx, scope)
	if err != nil {
		runErr = err
	} else {
	loop:
		for {
			if err := runCtx.Err(); err != nil {
				runErr = err
				break
			}
			rec, ok, err := stream.Next()
			if err != nil {
				runErr = err
				break
			}
			if !ok {
				break loop
			}
			result.Fetched++

			outcome, err := o.Upserter.Apply(runCtx, rec)
			switch outcome {
			case OutcomeInserted:
				result.Inserted++
			case OutcomeUpdated:
				result.Updated++
			case OutcomeUnchanged:
				result.Unchanged++
			case OutcomeRejected:
				result.Failed++
				if len(samples) < maxErrorSamples {
					samples = append(samples, rec.Identity+": "+err.Error())
				}
				o.Logger.WithFields(logrus.Fields{
					"module":   "globussync",
					"dominio":  scope.Dominio,
					"runId":    run.ID,
					"identity": rec.Identity,
				}).Warn("record rejected: " + err.Error())
			}
		}
	}

	status := o.terminalStatus(handle, runCtx, runErr, result.Failed)
	result.Status = status
	result.DurationMs = time.Since(startedAt).Milliseconds()
	result.ErrorSummary = buildErrorSummary(status, runErr, result.Failed, samples)

	o.finishRun(run.ID, status, startedAt, result)

	// The stats memo is stale the moment a run changes rows; drop it so
	// the dashboard reflects this run without waiting out the TTL.
	if result.Inserted+result.Updated > 0 {
		if err := config.RemoveRedisKey("stats:" + string(scope.Dominio)); err != nil {
			o.Logger.WithFields(logrus.Fields{
				"module":  "globussync",
				"dominio": scope.Dominio,
				"runId":   run.ID,
			}).Warn("stats memo invalidation failed: " + err.Error())
		}
	}

	o.Logger.WithFields(logrus.Fields{
		"module":     "globussync",
		"dominio":    scope.Dominio,
		"runId":      run.ID,
		"status":     status,
		"fetched":    result.Fetched,
		"novos":      result.Inserted,
		"durationMs": result.DurationMs,
	}).Info("sync run finished")

	switch status {
	case models.SyncRunStatusCancelled:
		return result, utils.ErrSyncCancelled
	case models.SyncRunStatusTimeout:
		return result, utils.ErrSyncTimeout
	case models.SyncRunStatusFailed:
		return result, runErr
	}
	return result, nil
}

func (o *Orchestrator) createRun(ctx context.Context, scope Scope, parentRunId *uint) (*models.SyncRun, error) {
	triggeredBy := models.SyncTriggeredManual
	if t, ok := utils.GetTriggeredByFromContext(ctx); ok && t != "" {
		triggeredBy = t
	}
	correlationId := utils.CorrelationIdFromContextOrNew(ctx)

	run := &models.SyncRun{
		Dominio:       scope.Dominio,
		Status:        models.SyncRunStatusQueued,
		TriggeredBy:   triggeredBy,
		PeriodoInicio: &scope.Inicio,
		PeriodoFim:    &scope.Fim,
		ChavesJSON:    EncodeChaves(scope.Chaves),
		CorrelationId: correlationId,
		ParentRunId:   parentRunId,
	}
	if err := o.db().WithContext(ctx).Create(run).Error; err != nil {
		config.LogError(o.Logger, "globussync", "createRun", "creating sync run ledger row", nil, err)
		return nil, err
	}
	return run, nil
}

// terminalStatus decides the one status the run ends in. Cancellation
// and timeout both surface as context errors, so the explicit cancel
// flag on the handle is what tells them apart.
func (o *Orchestrator) terminalStatus(handle *runHandle, runCtx context.Context, runErr error, failed int) string {
	o.mu.Lock()
	cancelled := handle.cancelled
	o.mu.Unlock()

	switch {
	case cancelled:
		return models.SyncRunStatusCancelled
	case errors.Is(runErr, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return models.SyncRunStatusTimeout
	case runErr != nil:
		return models.SyncRunStatusFailed
	case failed > 0:
		return models.SyncRunStatusPartial
	}
	return models.SyncRunStatusSuccess
}

func (o *Orchestrator) finishRun(runId uint, status string, startedAt time.Time, result SyncResult) {
	finishedAt := time.Now().UTC()
	updates := map[string]interface{}{
		"status":      status,
		"fetched":     result.Fetched,
		"inserted":    result.Inserted,
		"updated":     result.Updated,
		"unchanged":   result.Unchanged,
		"failed":      result.Failed,
		"finished_at": finishedAt,
		"duration_ms": finishedAt.Sub(startedAt).Milliseconds(),
	}
	if result.ErrorSummary != "" {
		updates["error_summary"] = result.ErrorSummary
	}
	// The ledger write runs on a fresh context so a cancelled run still
	// records its terminal row.
	err := o.db().WithContext(context.Background()).
		Model(&models.SyncRun{}).Where("id = ?", runId).Updates(updates).Error
	if err != nil {
		config.LogError(o.Logger, "globussync", "finishRun", "finalizing sync run ledger row", map[string]interface{}{"runId": runId}, err)
	}
}

func buildErrorSummary(status string, runErr error, failed int, samples []string) string {
	var parts []string
	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		parts = append(parts, runErr.Error())
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d record(s) rejected: %s", failed, strings.Join(samples, "; ")))
	}
	if len(parts) == 0 && (status == models.SyncRunStatusCancelled || status == models.SyncRunStatusTimeout) {
		parts = append(parts, "run interrupted with status "+status)
	}
	return strings.Join(parts, " | ")
}
