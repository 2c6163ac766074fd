package globussync

import (
	"encoding/json"
	"time"

	"github.com/gestaofrota/globus_backend/models"
)

// Scope bounds one synchronization run: a time window over the legacy
// change-tracking column, optionally narrowed to an explicit key list.
type Scope struct {
	Dominio models.Dominio
	Inicio  time.Time
	Fim     time.Time
	Chaves  []string
}

// LegacyRecord is the canonical shape every domain mapper produces from
// a raw Globus row. Payload holds only normalized, non-empty values
// keyed by canonical field name; Row is the typed cache model with the
// same values, ready for upsert once sync metadata is stamped.
type LegacyRecord struct {
	Dominio  models.Dominio
	Identity string
	Payload  map[string]string
	Row      models.CacheRow
}

// UpsertOutcome is the per-record result of Upserter.Apply.
type UpsertOutcome string

const (
	OutcomeInserted  UpsertOutcome = "inserted"
	OutcomeUpdated   UpsertOutcome = "updated"
	OutcomeUnchanged UpsertOutcome = "unchanged"
	OutcomeRejected  UpsertOutcome = "rejected"
)

// SyncResult summarizes one orchestrated run for the caller.
type SyncResult struct {
	RunId         uint           `json:"runId"`
	Dominio       models.Dominio `json:"dominio"`
	Status        string         `json:"status"`
	Fetched       int            `json:"fetched"`
	Inserted      int            `json:"novos"`
	Updated       int            `json:"atualizados"`
	Unchanged     int            `json:"inalterados"`
	Failed        int            `json:"rejeitados"`
	PeriodoInicio time.Time      `json:"periodoInicio"`
	PeriodoFim    time.Time      `json:"periodoFim"`
	DurationMs    int64          `json:"durationMs"`
	ErrorSummary  string         `json:"errorSummary,omitempty"`
}

func EncodeChaves(chaves []string) []byte {
	if len(chaves) == 0 {
		return nil
	}
	b, _ := json.Marshal(chaves)
	return b
}

func DecodeChaves(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var chaves []string
	if err := json.Unmarshal(raw, &chaves); err != nil {
		return nil
	}
	return chaves
}
