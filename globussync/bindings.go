package globussync

import (
	"os"
	"strings"

	"github.com/gestaofrota/globus_backend/models"
	"github.com/gestaofrota/globus_backend/utils"
)

// domainBinding is the tagged-variant entry describing how one domain
// maps between Globus and its cache table. Everything domain-specific
// the pipeline needs lives here; the pipeline itself stays generic.
type domainBinding struct {
	// cache side
	identityColumn string
	dateColumn     string
	vehicleColumn  string
	agentColumn    string
	statusColumn   string
	newRow         func() models.CacheRow
	newRows        func() interface{}
	required       []string

	// legacy side
	legacyTable    string
	legacyIdentity string
	legacyChange   string
	mapRow         func(*Mapper, map[string]interface{}) LegacyRecord
}

var bindings = map[models.Dominio]*domainBinding{
	models.DominioMultas: {
		identityColumn: "numero_ait",
		dateColumn:     "data_infracao",
		vehicleColumn:  "placa",
		agentColumn:    "agente_codigo",
		statusColumn:   "status_pagamento",
		newRow:         func() models.CacheRow { return &models.MultaCache{} },
		newRows:        func() interface{} { return &[]models.MultaCache{} },
		required:       models.RequiredMultaFields,
		legacyTable:    "GLOBUS.MUL_MULTAS",
		legacyIdentity: "NRO_AIT",
		legacyChange:   "DAT_ALTERACAO",
		mapRow:         (*Mapper).MapMultaRow,
	},
	models.DominioManutencao: {
		identityColumn: "codigo_interno",
		dateColumn:     "data_abertura",
		vehicleColumn:  "prefixo_veiculo",
		statusColumn:   "status_os",
		newRow:         func() models.CacheRow { return &models.OrdemServicoCache{} },
		newRows:        func() interface{} { return &[]models.OrdemServicoCache{} },
		required:       models.RequiredOrdemServicoFields,
		legacyTable:    "GLOBUS.MAN_ORDEM_SERVICO",
		legacyIdentity: "COD_INTOS",
		legacyChange:   "DAT_ALTERACAO",
		mapRow:         (*Mapper).MapOrdemServicoRow,
	},
	models.DominioFrota: {
		identityColumn: "prefixo",
		dateColumn:     "data_aquisicao",
		vehicleColumn:  "placa",
		statusColumn:   "status_veiculo",
		newRow:         func() models.CacheRow { return &models.VeiculoCache{} },
		newRows:        func() interface{} { return &[]models.VeiculoCache{} },
		required:       models.RequiredVeiculoFields,
		legacyTable:    "GLOBUS.FRT_CADVEICULOS",
		legacyIdentity: "PREFIXO_VEIC",
		legacyChange:   "DAT_ALTERACAO",
		mapRow:         (*Mapper).MapVeiculoRow,
	},
	models.DominioAcidentes: {
		identityColumn: "numero_ocorrencia",
		dateColumn:     "data_acidente",
		vehicleColumn:  "prefixo_veiculo",
		agentColumn:    "motorista_chapa",
		statusColumn:   "tipo_acidente",
		newRow:         func() models.CacheRow { return &models.AcidenteCache{} },
		newRows:        func() interface{} { return &[]models.AcidenteCache{} },
		required:       models.RequiredAcidenteFields,
		legacyTable:    "GLOBUS.ACD_OCORRENCIAS",
		legacyIdentity: "NRO_OCORRENCIA",
		legacyChange:   "DAT_ALTERACAO",
		mapRow:         (*Mapper).MapAcidenteRow,
	},
}

func bindingFor(dominio models.Dominio) *domainBinding {
	return bindings[dominio]
}

// RequiredFields returns the quality contract for a domain, honoring
// the SYNC_REQUIRED_FIELDS_<DOMINIO> env override (comma-separated
// canonical field names).
func RequiredFields(dominio models.Dominio) []string {
	envKey := "SYNC_REQUIRED_FIELDS_" + strings.ToUpper(string(dominio))
	if override := utils.SplitAndTrim(os.Getenv(envKey)); len(override) > 0 {
		return override
	}
	b := bindingFor(dominio)
	if b == nil {
		return nil
	}
	return b.required
}
