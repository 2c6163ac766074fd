package globussync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gestaofrota/globus_backend/config"
	"github.com/gestaofrota/globus_backend/models"
	"github.com/gestaofrota/globus_backend/utils"
	"gorm.io/gorm"
)

type fakeReader struct {
	fetch func(ctx context.Context, scope Scope) (*RecordStream, error)
}

func (f *fakeReader) FetchChanged(ctx context.Context, scope Scope) (*RecordStream, error) {
	return f.fetch(ctx, scope)
}

func streamOf(recs []LegacyRecord, pageSize int) *RecordStream {
	s := &RecordStream{pageSize: pageSize}
	s.fetchPage = func(offset int) ([]LegacyRecord, error) {
		if offset >= len(recs) {
			return nil, nil
		}
		end := offset + pageSize
		if end > len(recs) {
			end = len(recs)
		}
		return recs[offset:end], nil
	}
	return s
}

func testOrchestrator(db *gorm.DB, reader LegacyReader) *Orchestrator {
	logger := config.GetLogger()
	return NewOrchestrator(db, reader, NewUpserter(db, logger), NewMemoryScopeGuard(), logger)
}

func testScope() Scope {
	return Scope{
		Dominio: models.DominioMultas,
		Inicio:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Fim:     time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestOrchestrator_FreshSyncInserts(t *testing.T) {
	db := testDB(t)
	recs := []LegacyRecord{
		multaRecord("AIT-1", "ABC1D23", "150.00"),
		multaRecord("AIT-2", "DEF4G56", "88.50"),
		multaRecord("AIT-3", "HIJ7K89", "293.47"),
	}
	o := testOrchestrator(db, &fakeReader{fetch: func(ctx context.Context, scope Scope) (*RecordStream, error) {
		return streamOf(recs, 2), nil
	}})

	result, err := o.Sync(context.Background(), testScope())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Status != models.SyncRunStatusSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if result.Fetched != 3 || result.Inserted != 3 || result.Updated != 0 || result.Failed != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}

	var run models.SyncRun
	if err := db.Take(&run, result.RunId).Error; err != nil {
		t.Fatalf("reading ledger row: %v", err)
	}
	if run.Status != models.SyncRunStatusSuccess || run.Inserted != 3 {
		t.Fatalf("ledger row not finalized: %+v", run)
	}
	if run.StartedAt == nil || run.FinishedAt == nil {
		t.Fatalf("ledger timestamps missing")
	}
	if run.TriggeredBy != models.SyncTriggeredManual {
		t.Fatalf("expected manual trigger default, got %s", run.TriggeredBy)
	}
}

func TestOrchestrator_ResyncIsNoOp(t *testing.T) {
	db := testDB(t)
	recs := []LegacyRecord{
		multaRecord("AIT-1", "ABC1D23", "150.00"),
		multaRecord("AIT-2", "DEF4G56", "88.50"),
	}
	o := testOrchestrator(db, &fakeReader{fetch: func(ctx context.Context, scope Scope) (*RecordStream, error) {
		return streamOf(recs, 10), nil
	}})

	if _, err := o.Sync(context.Background(), testScope()); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	result, err := o.Sync(context.Background(), testScope())
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if result.Status != models.SyncRunStatusSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if result.Unchanged != 2 || result.Inserted != 0 || result.Updated != 0 {
		t.Fatalf("resync of identical data must be all-unchanged: %+v", result)
	}
}

func TestOrchestrator_PartialFailureToleratesBadRecords(t *testing.T) {
	db := testDB(t)
	recs := []LegacyRecord{
		multaRecord("AIT-1", "ABC1D23", "150.00"),
		multaRecord("", "BAD0000", "1.00"), // missing identity
		multaRecord("AIT-2", "DEF4G56", "88.50"),
		multaRecord("", "BAD0001", "2.00"),
	}
	o := testOrchestrator(db, &fakeReader{fetch: func(ctx context.Context, scope Scope) (*RecordStream, error) {
		return streamOf(recs, 10), nil
	}})

	result, err := o.Sync(context.Background(), testScope())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Status != models.SyncRunStatusPartial {
		t.Fatalf("expected partial, got %s", result.Status)
	}
	if result.Fetched != 4 || result.Inserted != 2 || result.Failed != 2 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.ErrorSummary == "" {
		t.Fatalf("partial run must carry an error summary")
	}
}

func TestOrchestrator_GuardConflict(t *testing.T) {
	db := testDB(t)
	guard := NewMemoryScopeGuard()
	logger := config.GetLogger()
	o := NewOrchestrator(db, &fakeReader{fetch: func(ctx context.Context, scope Scope) (*RecordStream, error) {
		return streamOf(nil, 10), nil
	}}, NewUpserter(db, logger), guard, logger)

	release, err := guard.Acquire(context.Background(), models.DominioMultas)
	if err != nil {
		t.Fatalf("pre-acquire: %v", err)
	}
	defer release()

	_, err = o.Sync(context.Background(), testScope())
	if !errors.Is(err, utils.ErrSyncAlreadyInProgress) {
		t.Fatalf("expected ErrSyncAlreadyInProgress, got %v", err)
	}

	// A rejected run must not leave a ledger row behind.
	var count int64
	db.Model(&models.SyncRun{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no ledger rows, got %d", count)
	}
}

func TestOrchestrator_SourceUnavailableAbortsRun(t *testing.T) {
	db := testDB(t)
	firstPage := []LegacyRecord{
		multaRecord("AIT-1", "ABC1D23", "150.00"),
		multaRecord("AIT-2", "DEF4G56", "88.50"),
	}
	o := testOrchestrator(db, &fakeReader{fetch: func(ctx context.Context, scope Scope) (*RecordStream, error) {
		s := &RecordStream{pageSize: 2}
		s.fetchPage = func(offset int) ([]LegacyRecord, error) {
			if offset == 0 {
				return firstPage, nil
			}
			return nil, fmt.Errorf("%w: connection reset", utils.ErrSourceUnavailable)
		}
		return s, nil
	}})

	result, err := o.Sync(context.Background(), testScope())
	if !errors.Is(err, utils.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if result.Status != models.SyncRunStatusFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	if result.Inserted != 2 {
		t.Fatalf("records applied before the abort must be kept: %+v", result)
	}

	// Partial progress stays committed.
	var count int64
	db.Model(&models.MultaCache{}).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 cached rows, got %d", count)
	}

	var run models.SyncRun
	if err := db.Take(&run, result.RunId).Error; err != nil {
		t.Fatalf("reading ledger row: %v", err)
	}
	if run.Status != models.SyncRunStatusFailed || run.ErrorSummary == nil {
		t.Fatalf("failed run must record an error summary: %+v", run)
	}
}

func TestOrchestrator_CancelBetweenRecords(t *testing.T) {
	db := testDB(t)
	var o *Orchestrator
	o = testOrchestrator(db, &fakeReader{fetch: func(ctx context.Context, scope Scope) (*RecordStream, error) {
		s := &RecordStream{pageSize: 1}
		s.fetchPage = func(offset int) ([]LegacyRecord, error) {
			if offset == 0 {
				return []LegacyRecord{multaRecord("AIT-1", "ABC1D23", "150.00")}, nil
			}
			// The operator cancels while the run is mid-stream.
			if _, ok := o.Cancel(models.DominioMultas); !ok {
				return nil, errors.New("expected a running sync to cancel")
			}
			return nil, context.Canceled
		}
		return s, nil
	}})

	result, err := o.Sync(context.Background(), testScope())
	if !errors.Is(err, utils.ErrSyncCancelled) {
		t.Fatalf("expected ErrSyncCancelled, got %v", err)
	}
	if result.Status != models.SyncRunStatusCancelled {
		t.Fatalf("expected cancelled, got %s", result.Status)
	}
	if result.Inserted != 1 {
		t.Fatalf("records applied before cancellation must stay applied: %+v", result)
	}

	var run models.SyncRun
	if err := db.Take(&run, result.RunId).Error; err != nil {
		t.Fatalf("reading ledger row: %v", err)
	}
	if run.Status != models.SyncRunStatusCancelled {
		t.Fatalf("ledger must record cancelled, got %s", run.Status)
	}
}

func TestOrchestrator_TimeoutIsDistinctFromFailed(t *testing.T) {
	db := testDB(t)
	o := testOrchestrator(db, &fakeReader{fetch: func(ctx context.Context, scope Scope) (*RecordStream, error) {
		return streamOf([]LegacyRecord{multaRecord("AIT-1", "ABC1D23", "150.00")}, 10), nil
	}})
	// Deadline already in the past when the run starts.
	o.RunTimeout = -time.Second

	result, err := o.Sync(context.Background(), testScope())
	if !errors.Is(err, utils.ErrSyncTimeout) {
		t.Fatalf("expected ErrSyncTimeout, got %v", err)
	}
	if result.Status != models.SyncRunStatusTimeout {
		t.Fatalf("expected timeout, got %s", result.Status)
	}
}

func TestOrchestrator_RetryLinksParentRun(t *testing.T) {
	db := testDB(t)
	healthy := false
	o := testOrchestrator(db, &fakeReader{fetch: func(ctx context.Context, scope Scope) (*RecordStream, error) {
		if !healthy {
			return nil, fmt.Errorf("%w: listener down", utils.ErrSourceUnavailable)
		}
		return streamOf([]LegacyRecord{multaRecord("AIT-1", "ABC1D23", "150.00")}, 10), nil
	}})

	failed, err := o.Sync(context.Background(), testScope())
	if !errors.Is(err, utils.ErrSourceUnavailable) {
		t.Fatalf("expected failed first run, got %v", err)
	}

	healthy = true
	retried, err := o.Retry(context.Background(), failed.RunId)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Status != models.SyncRunStatusSuccess {
		t.Fatalf("expected success on retry, got %s", retried.Status)
	}

	var run models.SyncRun
	if err := db.Take(&run, retried.RunId).Error; err != nil {
		t.Fatalf("reading retry ledger row: %v", err)
	}
	if run.ParentRunId == nil || *run.ParentRunId != failed.RunId {
		t.Fatalf("retry run must link its parent: %+v", run.ParentRunId)
	}
	if run.TriggeredBy != models.SyncTriggeredRetry {
		t.Fatalf("expected retry trigger, got %s", run.TriggeredBy)
	}

	// The original ledger row is append-only and stays failed.
	var original models.SyncRun
	if err := db.Take(&original, failed.RunId).Error; err != nil {
		t.Fatalf("reading original ledger row: %v", err)
	}
	if original.Status != models.SyncRunStatusFailed {
		t.Fatalf("original run must not be mutated, got %s", original.Status)
	}
}

func TestOrchestrator_RetryRefusesUnknownRun(t *testing.T) {
	db := testDB(t)
	o := testOrchestrator(db, &fakeReader{fetch: func(ctx context.Context, scope Scope) (*RecordStream, error) {
		return streamOf(nil, 10), nil
	}})

	_, err := o.Retry(context.Background(), 9999)
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected ErrorRecordNotFound, got %v", err)
	}
}
