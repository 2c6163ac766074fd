package models

// CacheRow is implemented by every per-domain cache model so the
// upserter and query façade can work across domains without branching
// on concrete types everywhere.
type CacheRow interface {
	Identity() string
	Meta() *SyncMeta
	AuditInfo() *Audit
	PrimaryID() uint
	SetPrimaryID(id uint)
}

func (m *MultaCache) Identity() string     { return m.NumeroAIT }
func (m *MultaCache) Meta() *SyncMeta      { return &m.SyncMeta }
func (m *MultaCache) AuditInfo() *Audit    { return &m.Audit }
func (m *MultaCache) PrimaryID() uint      { return m.ID }
func (m *MultaCache) SetPrimaryID(id uint) { m.ID = id }

func (o *OrdemServicoCache) Identity() string     { return o.CodigoInterno }
func (o *OrdemServicoCache) Meta() *SyncMeta      { return &o.SyncMeta }
func (o *OrdemServicoCache) AuditInfo() *Audit    { return &o.Audit }
func (o *OrdemServicoCache) PrimaryID() uint      { return o.ID }
func (o *OrdemServicoCache) SetPrimaryID(id uint) { o.ID = id }

func (v *VeiculoCache) Identity() string     { return v.Prefixo }
func (v *VeiculoCache) Meta() *SyncMeta      { return &v.SyncMeta }
func (v *VeiculoCache) AuditInfo() *Audit    { return &v.Audit }
func (v *VeiculoCache) PrimaryID() uint      { return v.ID }
func (v *VeiculoCache) SetPrimaryID(id uint) { v.ID = id }

func (a *AcidenteCache) Identity() string     { return a.NumeroOcorrencia }
func (a *AcidenteCache) Meta() *SyncMeta      { return &a.SyncMeta }
func (a *AcidenteCache) AuditInfo() *Audit    { return &a.Audit }
func (a *AcidenteCache) PrimaryID() uint      { return a.ID }
func (a *AcidenteCache) SetPrimaryID(id uint) { a.ID = id }
