package models

import "time"

// SyncMeta is embedded in every cache row. DataCache is set on first
// insert and never changes; UltimaAtualizacao advances only when the
// payload fingerprint changes.
type SyncMeta struct {
	Fingerprint       string    `gorm:"size:64;index;not null" json:"-"`
	DataCache         time.Time `gorm:"not null" json:"dataCache"`
	UltimaAtualizacao time.Time `gorm:"not null;index" json:"ultimaAtualizacao"`
	FonteDados        string    `gorm:"size:20;not null;default:GLOBUS" json:"fonteDados"`
	IsComplete        bool      `gorm:"not null;default:false" json:"isComplete"`
	IsValidated       bool      `gorm:"not null;default:false" json:"isValidated"`
	ValidationErrors  []byte    `gorm:"type:json" json:"validationErrors"`
}

type Audit struct {
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
	CreatedBy string    `gorm:"size:100" json:"createdBy"`
	UpdatedBy string    `gorm:"size:100" json:"updatedBy"`
}
