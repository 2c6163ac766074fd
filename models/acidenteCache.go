package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AcidenteCache mirrors one accident occurrence record.
type AcidenteCache struct {
	ID               uint   `gorm:"primary_key" json:"id"`
	NumeroOcorrencia string `gorm:"uniqueIndex;size:30;not null" json:"numeroOcorrencia"`

	DataAcidente   *time.Time       `gorm:"index:idx_acidente_tipo_data,priority:2" json:"dataAcidente"`
	PrefixoVeiculo *string          `gorm:"size:10;index" json:"prefixoVeiculo"`
	Placa          *string          `gorm:"size:10" json:"placa"`
	MotoristaChapa *string          `gorm:"size:20;index" json:"motoristaChapa"`
	MotoristaNome  *string          `gorm:"size:120" json:"motoristaNome"`
	LocalAcidente  *string          `gorm:"size:255" json:"localAcidente"`
	TipoAcidente   *string          `gorm:"size:40;index:idx_acidente_tipo_data,priority:1" json:"tipoAcidente"`
	Gravidade      *string          `gorm:"size:20" json:"gravidade"`
	CustoEstimado  *decimal.Decimal `gorm:"type:decimal(12,2)" json:"custoEstimado"`
	Garagem        *string          `gorm:"size:40;index" json:"garagem"`
	Descricao      *string          `gorm:"type:text" json:"descricao"`

	SyncMeta `gorm:"embedded"`
	Audit    `gorm:"embedded"`
}

func (AcidenteCache) TableName() string { return "acidente_cache" }

var RequiredAcidenteFields = []string{"data_acidente", "prefixo_veiculo", "tipo_acidente"}
