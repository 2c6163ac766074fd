package globussync

import (
	"strconv"
	"strings"
	"time"

	"github.com/gestaofrota/globus_backend/models"
	"github.com/shopspring/decimal"
)

// Mapper converts raw Globus rows (as scanned by sqlx) into the
// canonical LegacyRecord shape. One mapping function per domain keeps
// the legacy column-level quirks out of the rest of the pipeline.
type Mapper struct {
	Policy ClassificacaoPolicy
}

func NewMapper() *Mapper {
	return &Mapper{Policy: DefaultClassificacaoPolicy()}
}

// ClassificacaoRule buckets a fine into a legal sub-domain. Rules are
// evaluated in order; the first match wins. The precedence is a policy
// input, not a fixed rule, so operators can reorder it per legal
// guidance without touching the pipeline.
type ClassificacaoRule struct {
	Nome    string
	Matches func(m *models.MultaCache) bool
}

type ClassificacaoPolicy []ClassificacaoRule

const (
	ClassificacaoComAgente      = "COM_AGENTE"
	ClassificacaoPontuada       = "PONTUADA"
	ClassificacaoAdministrativa = "ADMINISTRATIVA"
)

func DefaultClassificacaoPolicy() ClassificacaoPolicy {
	return ClassificacaoPolicy{
		{Nome: ClassificacaoComAgente, Matches: func(m *models.MultaCache) bool {
			return m.AgenteCodigo != nil
		}},
		{Nome: ClassificacaoPontuada, Matches: func(m *models.MultaCache) bool {
			return (m.Pontos != nil && *m.Pontos > 0) || m.GrupoInfracao != nil
		}},
	}
}

func (p ClassificacaoPolicy) Classify(m *models.MultaCache) string {
	for _, rule := range p {
		if rule.Matches(m) {
			return rule.Nome
		}
	}
	return ClassificacaoAdministrativa
}

func (mp *Mapper) MapMultaRow(row map[string]interface{}) LegacyRecord {
	m := &models.MultaCache{}
	payload := map[string]string{}

	m.NumeroAIT = oraIdentity(row, "NRO_AIT")
	m.DataInfracao = putDate(payload, "data_infracao", oraTime(row, "DAT_INFRACAO"))
	m.HoraInfracao = putStr(payload, "hora_infracao", oraString(row, "HOR_INFRACAO"))
	m.Placa = putStr(payload, "placa", oraString(row, "PLACA"))
	m.PrefixoVeiculo = putStr(payload, "prefixo_veiculo", oraString(row, "PREFIXO_VEIC"))
	m.CodigoInfracao = putStr(payload, "codigo_infracao", oraString(row, "COD_INFRACAO"))
	m.DescricaoInfracao = putStr(payload, "descricao_infracao", oraString(row, "DES_INFRACAO"))
	m.Valor = putDec(payload, "valor", oraDecimal(row, "VLR_MULTA"))
	m.ValorPago = putDec(payload, "valor_pago", oraDecimal(row, "VLR_PAGO"))
	m.AgenteCodigo = putStr(payload, "agente_codigo", oraString(row, "COD_AGENTE"))
	m.AgenteNome = putStr(payload, "agente_nome", oraString(row, "NOM_AGENTE"))
	m.LocalInfracao = putStr(payload, "local_infracao", oraString(row, "DES_LOCAL"))
	m.Garagem = putStr(payload, "garagem", oraString(row, "COD_GARAGEM"))
	m.Pontos = putInt(payload, "pontos", oraInt(row, "QTD_PONTOS"))
	m.GrupoInfracao = putStr(payload, "grupo_infracao", oraString(row, "GRP_INFRACAO"))
	m.StatusPagamento = putStr(payload, "status_pagamento", oraString(row, "STA_PAGAMENTO"))
	m.DataVencimento = putDate(payload, "data_vencimento", oraTime(row, "DAT_VENCIMENTO"))
	m.DataPagamento = putDate(payload, "data_pagamento", oraTime(row, "DAT_PAGAMENTO"))
	m.OrgaoAutuador = putStr(payload, "orgao_autuador", oraString(row, "ORGAO_AUTUADOR"))

	m.Classificacao = mp.Policy.Classify(m)
	payload["classificacao"] = m.Classificacao

	return LegacyRecord{Dominio: models.DominioMultas, Identity: m.NumeroAIT, Payload: payload, Row: m}
}

func (mp *Mapper) MapOrdemServicoRow(row map[string]interface{}) LegacyRecord {
	o := &models.OrdemServicoCache{}
	payload := map[string]string{}

	o.CodigoInterno = oraIdentity(row, "COD_INTOS")
	o.NumeroOS = putStr(payload, "numero_os", oraString(row, "NRO_OS"))
	o.DataAbertura = putDate(payload, "data_abertura", oraTime(row, "DAT_ABERTURA"))
	o.DataFechamento = putDate(payload, "data_fechamento", oraTime(row, "DAT_FECHAMENTO"))
	o.PrefixoVeiculo = putStr(payload, "prefixo_veiculo", oraString(row, "PREFIXO_VEIC"))
	o.Placa = putStr(payload, "placa", oraString(row, "PLACA"))
	o.TipoManutencao = putStr(payload, "tipo_manutencao", oraString(row, "TIP_MANUTENCAO"))
	o.Oficina = putStr(payload, "oficina", oraString(row, "DES_OFICINA"))
	o.DescricaoServico = putStr(payload, "descricao_servico", oraString(row, "DES_SERVICO"))
	o.StatusOS = putStr(payload, "status_os", oraString(row, "STA_OS"))
	o.CustoMaoObra = putDec(payload, "custo_mao_obra", oraDecimal(row, "VLR_MAO_OBRA"))
	o.CustoPecas = putDec(payload, "custo_pecas", oraDecimal(row, "VLR_PECAS"))
	o.Garagem = putStr(payload, "garagem", oraString(row, "COD_GARAGEM"))

	return LegacyRecord{Dominio: models.DominioManutencao, Identity: o.CodigoInterno, Payload: payload, Row: o}
}

func (mp *Mapper) MapVeiculoRow(row map[string]interface{}) LegacyRecord {
	v := &models.VeiculoCache{}
	payload := map[string]string{}

	v.Prefixo = oraIdentity(row, "PREFIXO_VEIC")
	v.Placa = putStr(payload, "placa", oraString(row, "PLACA"))
	v.Chassi = putStr(payload, "chassi", oraString(row, "NRO_CHASSI"))
	v.Renavam = putStr(payload, "renavam", oraString(row, "NRO_RENAVAM"))
	v.Modelo = putStr(payload, "modelo", oraString(row, "DES_MODELO"))
	v.Marca = putStr(payload, "marca", oraString(row, "DES_MARCA"))
	v.AnoFabricacao = putInt(payload, "ano_fabricacao", oraInt(row, "ANO_FABRICACAO"))
	v.TipoVeiculo = putStr(payload, "tipo_veiculo", oraString(row, "TIP_VEICULO"))
	v.StatusVeiculo = putStr(payload, "status_veiculo", oraString(row, "STA_VEICULO"))
	v.Garagem = putStr(payload, "garagem", oraString(row, "COD_GARAGEM"))
	v.DataAquisicao = putDate(payload, "data_aquisicao", oraTime(row, "DAT_AQUISICAO"))

	return LegacyRecord{Dominio: models.DominioFrota, Identity: v.Prefixo, Payload: payload, Row: v}
}

func (mp *Mapper) MapAcidenteRow(row map[string]interface{}) LegacyRecord {
	a := &models.AcidenteCache{}
	payload := map[string]string{}

	a.NumeroOcorrencia = oraIdentity(row, "NRO_OCORRENCIA")
	a.DataAcidente = putDate(payload, "data_acidente", oraTime(row, "DAT_ACIDENTE"))
	a.PrefixoVeiculo = putStr(payload, "prefixo_veiculo", oraString(row, "PREFIXO_VEIC"))
	a.Placa = putStr(payload, "placa", oraString(row, "PLACA"))
	a.MotoristaChapa = putStr(payload, "motorista_chapa", oraString(row, "CHAPA_MOTORISTA"))
	a.MotoristaNome = putStr(payload, "motorista_nome", oraString(row, "NOM_MOTORISTA"))
	a.LocalAcidente = putStr(payload, "local_acidente", oraString(row, "DES_LOCAL"))
	a.TipoAcidente = putStr(payload, "tipo_acidente", oraString(row, "TIP_ACIDENTE"))
	a.Gravidade = putStr(payload, "gravidade", oraString(row, "GRAU_GRAVIDADE"))
	a.CustoEstimado = putDec(payload, "custo_estimado", oraDecimal(row, "VLR_ESTIMADO"))
	a.Garagem = putStr(payload, "garagem", oraString(row, "COD_GARAGEM"))
	a.Descricao = putStr(payload, "descricao", oraString(row, "DES_OCORRENCIA"))

	return LegacyRecord{Dominio: models.DominioAcidentes, Identity: a.NumeroOcorrencia, Payload: payload, Row: a}
}

// --- payload put helpers ------------------------------------------------
//
// Each helper writes the normalized value into the canonical payload map
// (nothing is written for null/empty, so empty and null fingerprint the
// same) and returns the typed value for the cache model.

func putStr(payload map[string]string, key string, v *string) *string {
	if v == nil {
		return nil
	}
	payload[key] = *v
	return v
}

func putDec(payload map[string]string, key string, v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	payload[key] = v.StringFixed(2)
	return v
}

func putInt(payload map[string]string, key string, v *int) *int {
	if v == nil {
		return nil
	}
	payload[key] = strconv.Itoa(*v)
	return v
}

func putDate(payload map[string]string, key string, v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	payload[key] = v.UTC().Format(time.RFC3339)
	return v
}

// --- Oracle value coercion ---------------------------------------------
//
// go-ora scans Oracle NUMBER as float64 or string depending on scale,
// VARCHAR2 as string, DATE as time.Time. Legacy extracts occasionally
// ship dates as DD/MM/YYYY strings. Everything funnels through these.

func oraIdentity(row map[string]interface{}, col string) string {
	if s := oraString(row, col); s != nil {
		return *s
	}
	return ""
}

func oraString(row map[string]interface{}, col string) *string {
	v, ok := row[col]
	if !ok || v == nil {
		return nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		s = strconv.FormatInt(t, 10)
	case time.Time:
		s = t.Format(time.RFC3339)
	default:
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func oraDecimal(row map[string]interface{}, col string) *decimal.Decimal {
	v, ok := row[col]
	if !ok || v == nil {
		return nil
	}
	var d decimal.Decimal
	switch t := v.(type) {
	case float64:
		d = decimal.NewFromFloat(t)
	case int64:
		d = decimal.NewFromInt(t)
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		d = parsed
	case []byte:
		parsed, err := decimal.NewFromString(strings.TrimSpace(string(t)))
		if err != nil {
			return nil
		}
		d = parsed
	default:
		return nil
	}
	d = d.Round(2)
	return &d
}

func oraInt(row map[string]interface{}, col string) *int {
	v, ok := row[col]
	if !ok || v == nil {
		return nil
	}
	var n int
	switch t := v.(type) {
	case int64:
		n = int(t)
	case float64:
		n = int(t)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	return &n
}

func oraTime(row map[string]interface{}, col string) *time.Time {
	v, ok := row[col]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case time.Time:
		u := t.UTC()
		return &u
	case string:
		return parseLegacyDate(t)
	case []byte:
		return parseLegacyDate(string(t))
	}
	return nil
}

func parseLegacyDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
		"02/01/2006 15:04:05",
		"02/01/2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}
