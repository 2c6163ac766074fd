package globussync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gestaofrota/globus_backend/config"
	"github.com/gestaofrota/globus_backend/models"
	"github.com/gestaofrota/globus_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Upserter owns all writes to the cache tables. Each Apply is its own
// atomic unit; no transaction ever spans multiple records, which keeps
// lock durations bounded and unrelated identities independent.
type Upserter struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewUpserter(db *gorm.DB, logger *logrus.Logger) *Upserter {
	return &Upserter{DB: db, Logger: logger}
}

// db resolves the handle late: the server registers routes before the
// database connects, so a nil DB means "use the global once ready".
func (u *Upserter) db() *gorm.DB {
	if u.DB != nil {
		return u.DB
	}
	return config.GetDB()
}

// Apply writes one legacy record to its cache table.
//
//	absent                       -> insert, dataCache = ultimaAtualizacao = now
//	present, fingerprint differs -> overwrite payload, advance ultimaAtualizacao
//	present, fingerprint equal   -> no write at all
//	identity missing             -> OutcomeRejected, ErrInvalidRecord
//
// Safe to call concurrently for different identities. For the same
// identity the later write wins, which converges because the legacy
// source is authoritative and re-application is idempotent.
func (u *Upserter) Apply(ctx context.Context, rec LegacyRecord) (UpsertOutcome, error) {
	fp, err := Fingerprint(rec)
	if err != nil {
		return OutcomeRejected, err
	}

	binding := bindingFor(rec.Dominio)
	if binding == nil {
		return OutcomeRejected, fmt.Errorf("%w: unknown domain %q", utils.ErrInvalidRecord, rec.Dominio)
	}

	outcome, err := u.applyOnce(ctx, binding, rec, fp)
	if err != nil && isUniqueViolation(err) {
		// Lost an insert race for the same identity: re-read and apply
		// as an update (last-write-wins).
		outcome, err = u.applyOnce(ctx, binding, rec, fp)
	}
	return outcome, err
}

func (u *Upserter) applyOnce(ctx context.Context, binding *domainBinding, rec LegacyRecord, fp string) (UpsertOutcome, error) {
	db := u.db().WithContext(ctx)
	now := time.Now().UTC()

	existing := binding.newRow()
	findErr := db.Where(binding.identityColumn+" = ?", rec.Identity).Take(existing).Error
	if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
		return OutcomeRejected, findErr
	}

	meta := rec.Row.Meta()
	meta.Fingerprint = fp
	meta.FonteDados = models.FonteGlobus
	meta.IsComplete, meta.ValidationErrors = validateQuality(rec)
	meta.IsValidated = true

	audit := rec.Row.AuditInfo()
	actor := actorFromContext(ctx)

	if errors.Is(findErr, gorm.ErrRecordNotFound) {
		meta.DataCache = now
		meta.UltimaAtualizacao = now
		audit.CreatedBy = actor
		audit.UpdatedBy = actor
		if err := db.Create(rec.Row).Error; err != nil {
			return OutcomeRejected, err
		}
		return OutcomeInserted, nil
	}

	if existing.Meta().Fingerprint == fp {
		return OutcomeUnchanged, nil
	}

	// Overwrite payload in place: keep the row identity and first-cache
	// timestamp, advance only ultimaAtualizacao.
	rec.Row.SetPrimaryID(existing.PrimaryID())
	meta.DataCache = existing.Meta().DataCache
	meta.UltimaAtualizacao = now
	audit.CreatedAt = existing.AuditInfo().CreatedAt
	audit.CreatedBy = existing.AuditInfo().CreatedBy
	audit.UpdatedBy = actor
	if err := db.Save(rec.Row).Error; err != nil {
		return OutcomeRejected, err
	}
	return OutcomeUpdated, nil
}

// validateQuality checks the record against its domain's required-field
// list. Quality flags are informational: an incomplete record is still
// written, it just carries isComplete=false and the missing field names.
func validateQuality(rec LegacyRecord) (bool, []byte) {
	var missing []string
	for _, field := range RequiredFields(rec.Dominio) {
		if rec.Payload[field] == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return true, nil
	}
	b, _ := json.Marshal(missing)
	return false, b
}

func actorFromContext(ctx context.Context) string {
	if name, ok := utils.GetUserNameFromContext(ctx); ok && name != "" {
		return name
	}
	return "sync"
}

// isUniqueViolation matches duplicate-key errors across the drivers we
// run against (Postgres in production, sqlite in tests).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
