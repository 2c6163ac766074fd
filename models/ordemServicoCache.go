package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrdemServicoCache mirrors one maintenance work order. CodigoInterno
// is Globus' internal immutable code; NumeroOS is the human-facing
// number and can be reissued, so it is payload, not identity.
type OrdemServicoCache struct {
	ID            uint   `gorm:"primary_key" json:"id"`
	CodigoInterno string `gorm:"uniqueIndex;size:30;not null" json:"codigoInterno"`

	NumeroOS         *string          `gorm:"size:30;index" json:"numeroOs"`
	DataAbertura     *time.Time       `gorm:"index:idx_os_status_data,priority:2" json:"dataAbertura"`
	DataFechamento   *time.Time       `json:"dataFechamento"`
	PrefixoVeiculo   *string          `gorm:"size:10;index" json:"prefixoVeiculo"`
	Placa            *string          `gorm:"size:10" json:"placa"`
	TipoManutencao   *string          `gorm:"size:30" json:"tipoManutencao"`
	Oficina          *string          `gorm:"size:60" json:"oficina"`
	DescricaoServico *string          `gorm:"type:text" json:"descricaoServico"`
	StatusOS         *string          `gorm:"size:20;index:idx_os_status_data,priority:1" json:"statusOs"`
	CustoMaoObra     *decimal.Decimal `gorm:"type:decimal(12,2)" json:"custoMaoObra"`
	CustoPecas       *decimal.Decimal `gorm:"type:decimal(12,2)" json:"custoPecas"`
	Garagem          *string          `gorm:"size:40;index" json:"garagem"`

	SyncMeta `gorm:"embedded"`
	Audit    `gorm:"embedded"`
}

func (OrdemServicoCache) TableName() string { return "ordem_servico_cache" }

var RequiredOrdemServicoFields = []string{"data_abertura", "prefixo_veiculo", "tipo_manutencao"}
