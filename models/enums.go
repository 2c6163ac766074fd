package models

import "strings"

// Dominio identifies which legacy subject area a cache table mirrors.
type Dominio string

const (
	DominioMultas     Dominio = "multas"
	DominioManutencao Dominio = "manutencao"
	DominioFrota      Dominio = "frota"
	DominioAcidentes  Dominio = "acidentes"
)

func AllDominios() []Dominio {
	return []Dominio{DominioMultas, DominioManutencao, DominioFrota, DominioAcidentes}
}

func ParseDominio(s string) (Dominio, bool) {
	switch Dominio(strings.ToLower(strings.TrimSpace(s))) {
	case DominioMultas:
		return DominioMultas, true
	case DominioManutencao:
		return DominioManutencao, true
	case DominioFrota:
		return DominioFrota, true
	case DominioAcidentes:
		return DominioAcidentes, true
	}
	return "", false
}

const (
	SyncRunStatusQueued    = "queued"
	SyncRunStatusRunning   = "running"
	SyncRunStatusSuccess   = "success"
	SyncRunStatusPartial   = "partial"
	SyncRunStatusFailed    = "failed"
	SyncRunStatusCancelled = "cancelled"
	SyncRunStatusTimeout   = "timeout"
)

const (
	SyncTriggeredManual    = "manual"
	SyncTriggeredScheduled = "scheduled"
	SyncTriggeredRetry     = "retry"
)

// FonteGlobus tags every cached row with its origin system.
const FonteGlobus = "GLOBUS"
