package models

import "time"

// VeiculoCache mirrors one fleet vehicle. Prefixo is the operator's
// fleet number painted on the bus; Globus treats it as immutable.
type VeiculoCache struct {
	ID      uint   `gorm:"primary_key" json:"id"`
	Prefixo string `gorm:"uniqueIndex;size:10;not null" json:"prefixo"`

	Placa         *string    `gorm:"size:10;index:idx_veiculo_placa" json:"placa"`
	Chassi        *string    `gorm:"size:30" json:"chassi"`
	Renavam       *string    `gorm:"size:20" json:"renavam"`
	Modelo        *string    `gorm:"size:80" json:"modelo"`
	Marca         *string    `gorm:"size:40" json:"marca"`
	AnoFabricacao *int       `json:"anoFabricacao"`
	TipoVeiculo   *string    `gorm:"size:30" json:"tipoVeiculo"`
	StatusVeiculo *string    `gorm:"size:20;index" json:"statusVeiculo"`
	Garagem       *string    `gorm:"size:40;index" json:"garagem"`
	DataAquisicao *time.Time `json:"dataAquisicao"`

	SyncMeta `gorm:"embedded"`
	Audit    `gorm:"embedded"`
}

func (VeiculoCache) TableName() string { return "veiculo_cache" }

var RequiredVeiculoFields = []string{"placa", "modelo", "garagem"}
