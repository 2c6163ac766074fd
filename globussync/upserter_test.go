package globussync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gestaofrota/globus_backend/config"
	"github.com/gestaofrota/globus_backend/models"
	"github.com/gestaofrota/globus_backend/utils"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// NOTE: These tests run against in-memory sqlite, not Postgres. They
// validate the upsert/ledger semantics, which are driver-agnostic; the
// Postgres-specific pieces (DDL, NULLS LAST) are exercised in staging.

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrapping sql.DB: %v", err)
	}
	// One connection so concurrent appliers serialize at the pool, the
	// same way short row-level locks serialize them on Postgres.
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.MultaCache{},
		&models.OrdemServicoCache{},
		&models.VeiculoCache{},
		&models.AcidenteCache{},
		&models.SyncRun{},
	)
	if err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return db
}

func multaRecord(ait, placa, valor string) LegacyRecord {
	row := map[string]interface{}{
		"NRO_AIT":      ait,
		"DAT_INFRACAO": time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
		"PLACA":        placa,
		"COD_INFRACAO": "745-50",
		"VLR_MULTA":    valor,
	}
	return NewMapper().MapMultaRow(row)
}

func TestUpserter_InsertThenUnchanged(t *testing.T) {
	db := testDB(t)
	u := NewUpserter(db, config.GetLogger())
	ctx := context.Background()

	outcome, err := u.Apply(ctx, multaRecord("AIT-1", "ABC1D23", "150.00"))
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if outcome != OutcomeInserted {
		t.Fatalf("expected inserted, got %s", outcome)
	}

	var first models.MultaCache
	if err := db.Where("numero_ait = ?", "AIT-1").Take(&first).Error; err != nil {
		t.Fatalf("reading row: %v", err)
	}

	// Re-applying the identical record must be a no-op.
	outcome, err = u.Apply(ctx, multaRecord("AIT-1", "ABC1D23", "150.00"))
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if outcome != OutcomeUnchanged {
		t.Fatalf("expected unchanged, got %s", outcome)
	}

	var second models.MultaCache
	if err := db.Where("numero_ait = ?", "AIT-1").Take(&second).Error; err != nil {
		t.Fatalf("re-reading row: %v", err)
	}
	if !second.UltimaAtualizacao.Equal(first.UltimaAtualizacao) {
		t.Fatalf("unchanged apply must not touch ultimaAtualizacao")
	}
	if second.Fingerprint != first.Fingerprint {
		t.Fatalf("fingerprint drifted on unchanged apply")
	}
}

func TestUpserter_UpdatePreservesDataCache(t *testing.T) {
	db := testDB(t)
	u := NewUpserter(db, config.GetLogger())
	ctx := context.Background()

	if _, err := u.Apply(ctx, multaRecord("AIT-2", "ABC1D23", "150.00")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var before models.MultaCache
	if err := db.Where("numero_ait = ?", "AIT-2").Take(&before).Error; err != nil {
		t.Fatalf("read: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	outcome, err := u.Apply(ctx, multaRecord("AIT-2", "ABC1D23", "195.23"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if outcome != OutcomeUpdated {
		t.Fatalf("expected updated, got %s", outcome)
	}

	var after models.MultaCache
	if err := db.Where("numero_ait = ?", "AIT-2").Take(&after).Error; err != nil {
		t.Fatalf("re-read: %v", err)
	}
	if !after.DataCache.Equal(before.DataCache) {
		t.Fatalf("dataCache must never change after first insert")
	}
	if !after.UltimaAtualizacao.After(before.UltimaAtualizacao) {
		t.Fatalf("ultimaAtualizacao must advance on real change")
	}
	if after.Valor == nil || after.Valor.StringFixed(2) != "195.23" {
		t.Fatalf("payload not overwritten: %v", after.Valor)
	}
	if after.ID != before.ID {
		t.Fatalf("update must keep the same row, got new id %d", after.ID)
	}
}

func TestUpserter_MissingIdentityRejected(t *testing.T) {
	db := testDB(t)
	u := NewUpserter(db, config.GetLogger())

	rec := multaRecord("", "ABC1D23", "150.00")
	outcome, err := u.Apply(context.Background(), rec)
	if outcome != OutcomeRejected {
		t.Fatalf("expected rejected, got %s", outcome)
	}
	if !errors.Is(err, utils.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}

	var count int64
	db.Model(&models.MultaCache{}).Count(&count)
	if count != 0 {
		t.Fatalf("rejected record must not be written, found %d rows", count)
	}
}

func TestUpserter_QualityFlagsAreInformational(t *testing.T) {
	db := testDB(t)
	u := NewUpserter(db, config.GetLogger())

	// No placa and no valor: record is incomplete but still written.
	rec := NewMapper().MapMultaRow(map[string]interface{}{
		"NRO_AIT":      "AIT-3",
		"DAT_INFRACAO": time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		"COD_INFRACAO": "745-50",
	})
	outcome, err := u.Apply(context.Background(), rec)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome != OutcomeInserted {
		t.Fatalf("incomplete records must still insert, got %s", outcome)
	}

	var row models.MultaCache
	if err := db.Where("numero_ait = ?", "AIT-3").Take(&row).Error; err != nil {
		t.Fatalf("read: %v", err)
	}
	if row.IsComplete {
		t.Fatalf("expected isComplete=false")
	}
	if !row.IsValidated {
		t.Fatalf("expected isValidated=true")
	}
	var missing []string
	if err := json.Unmarshal(row.ValidationErrors, &missing); err != nil {
		t.Fatalf("validationErrors not json: %v", err)
	}
	found := map[string]bool{}
	for _, f := range missing {
		found[f] = true
	}
	if !found["placa"] || !found["valor"] {
		t.Fatalf("expected placa and valor listed as missing, got %v", missing)
	}
}

func TestUpserter_ConcurrentSameIdentityConverges(t *testing.T) {
	db := testDB(t)
	u := NewUpserter(db, config.GetLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Same identity, same content: whichever order they land in,
			// the final row must be the single converged state.
			if _, err := u.Apply(ctx, multaRecord("AIT-4", "ABC1D23", "150.00")); err != nil {
				t.Errorf("concurrent apply: %v", err)
			}
		}()
	}
	wg.Wait()

	var count int64
	db.Model(&models.MultaCache{}).Where("numero_ait = ?", "AIT-4").Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one row, got %d", count)
	}
}

func TestRequiredFields_EnvOverride(t *testing.T) {
	t.Setenv("SYNC_REQUIRED_FIELDS_MULTAS", "placa, pontos")
	got := RequiredFields(models.DominioMultas)
	if len(got) != 2 || got[0] != "placa" || got[1] != "pontos" {
		t.Fatalf("override not honored: %v", got)
	}

	t.Setenv("SYNC_REQUIRED_FIELDS_MULTAS", "")
	got = RequiredFields(models.DominioMultas)
	if len(got) != len(models.RequiredMultaFields) {
		t.Fatalf("expected default contract, got %v", got)
	}
}
