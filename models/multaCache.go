package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MultaCache is the denormalized snapshot of one fine (auto de
// infração) pulled from Globus. NumeroAIT is the natural key assigned
// by the issuing authority and never changes.
type MultaCache struct {
	ID        uint   `gorm:"primary_key" json:"id"`
	NumeroAIT string `gorm:"uniqueIndex;size:30;not null" json:"numeroAit"`

	DataInfracao      *time.Time       `gorm:"index:idx_multa_status_data,priority:2;index:idx_multa_garagem_data,priority:2" json:"dataInfracao"`
	HoraInfracao      *string          `gorm:"size:8" json:"horaInfracao"`
	Placa             *string          `gorm:"size:10;index" json:"placa"`
	PrefixoVeiculo    *string          `gorm:"size:10;index" json:"prefixoVeiculo"`
	CodigoInfracao    *string          `gorm:"size:20" json:"codigoInfracao"`
	DescricaoInfracao *string          `gorm:"type:text" json:"descricaoInfracao"`
	Valor             *decimal.Decimal `gorm:"type:decimal(12,2)" json:"valor"`
	ValorPago         *decimal.Decimal `gorm:"type:decimal(12,2)" json:"valorPago"`
	AgenteCodigo      *string          `gorm:"size:20;index" json:"agenteCodigo"`
	AgenteNome        *string          `gorm:"size:120" json:"agenteNome"`
	LocalInfracao     *string          `gorm:"size:255" json:"localInfracao"`
	Garagem           *string          `gorm:"size:40;index:idx_multa_garagem_data,priority:1" json:"garagem"`
	Pontos            *int             `json:"pontos"`
	GrupoInfracao     *string          `gorm:"size:40" json:"grupoInfracao"`
	StatusPagamento   *string          `gorm:"size:20;index:idx_multa_status_data,priority:1" json:"statusPagamento"`
	DataVencimento    *time.Time       `json:"dataVencimento"`
	DataPagamento     *time.Time       `json:"dataPagamento"`
	OrgaoAutuador     *string          `gorm:"size:60" json:"orgaoAutuador"`

	// Classificacao is the legal sub-domain bucket derived by the
	// configured classification policy at mapping time.
	Classificacao string `gorm:"size:30;index" json:"classificacao"`

	SyncMeta `gorm:"embedded"`
	Audit    `gorm:"embedded"`
}

func (MultaCache) TableName() string { return "multa_cache" }

// RequiredMultaFields is the default quality contract for fines.
// Overridable via SYNC_REQUIRED_FIELDS_MULTAS.
var RequiredMultaFields = []string{"data_infracao", "placa", "codigo_infracao", "valor"}
