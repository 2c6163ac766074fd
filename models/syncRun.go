package models

import "time"

// SyncRun is one row in the append-only sync ledger. A run is created
// as queued, moves to running, and ends in exactly one terminal status;
// terminal rows are never mutated afterward.
type SyncRun struct {
	ID          uint    `gorm:"primary_key" json:"id"`
	Dominio     Dominio `gorm:"index;size:20;not null" json:"dominio"`
	Status      string  `gorm:"size:20;not null;index" json:"status"`
	TriggeredBy string  `gorm:"size:20" json:"triggeredBy"`

	PeriodoInicio *time.Time `json:"periodoInicio"`
	PeriodoFim    *time.Time `json:"periodoFim"`
	ChavesJSON    []byte     `gorm:"type:json" json:"chaves"`

	Fetched   int `json:"fetched"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`

	ErrorSummary  *string `gorm:"type:text" json:"errorSummary"`
	CorrelationId string  `gorm:"size:64" json:"correlationId"`
	ParentRunId   *uint   `gorm:"index" json:"parentRunId"`

	StartedAt  *time.Time `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt"`
	DurationMs int64      `json:"durationMs"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (SyncRun) TableName() string { return "sync_runs" }

func (r SyncRun) IsTerminal() bool {
	switch r.Status {
	case SyncRunStatusSuccess, SyncRunStatusPartial, SyncRunStatusFailed,
		SyncRunStatusCancelled, SyncRunStatusTimeout:
		return true
	}
	return false
}
