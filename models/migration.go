package models

import (
	"log"

	"github.com/gestaofrota/globus_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&MultaCache{}, &OrdemServicoCache{}, &VeiculoCache{}, &AcidenteCache{},
		&SyncRun{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
