package globussync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gestaofrota/globus_backend/config"
	"github.com/gestaofrota/globus_backend/models"
	"github.com/gestaofrota/globus_backend/utils"
	"gorm.io/gorm"
)

// SearchFilters is the filter surface the UI pushes down to the cache.
// Zero values mean "no filter"; filters that do not apply to a domain
// (agent on work orders, classification outside fines) are ignored.
type SearchFilters struct {
	Dominio       models.Dominio
	Inicio        *time.Time
	Fim           *time.Time
	Veiculo       string
	Agente        string
	Status        string
	Classificacao string
	Garagem       string
	Texto         string
	Incompletos   bool
	Page          int
	Limit         int
}

// Freshness tells the UI how stale the data it is looking at may be.
type Freshness struct {
	UltimaAtualizacao *time.Time `json:"ultimaAtualizacao"`
	FonteDados        string     `json:"fonteDados"`
}

type SearchResult struct {
	Data       interface{}       `json:"data"`
	Pagination models.Pagination `json:"pagination"`
	DataCache  Freshness         `json:"dataCache"`
}

// Querier is the read-only façade over the cache tables. It never
// mutates and never treats an empty result as an error.
type Querier struct {
	DB *gorm.DB
}

func NewQuerier(db *gorm.DB) *Querier {
	return &Querier{DB: db}
}

func (q *Querier) db() *gorm.DB {
	if q.DB != nil {
		return q.DB
	}
	return config.GetDB()
}

func (q *Querier) Search(ctx context.Context, filters SearchFilters) (SearchResult, error) {
	binding := bindingFor(filters.Dominio)
	if binding == nil {
		return SearchResult{}, fmt.Errorf("%w: unknown domain %q", utils.ErrInvalidRecord, filters.Dominio)
	}

	page, limit, offset := models.NormalizePage(filters.Page, filters.Limit)
	base := q.filtered(ctx, binding, filters)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return SearchResult{}, err
	}

	rows := binding.newRows()
	err := base.Session(&gorm.Session{}).
		Order(binding.dateColumn + " DESC NULLS LAST").
		Order(binding.identityColumn).
		Offset(offset).Limit(limit).
		Find(rows).Error
	if err != nil {
		return SearchResult{}, err
	}

	freshness, err := q.freshness(ctx, binding, filters)
	if err != nil {
		return SearchResult{}, err
	}

	return SearchResult{
		Data:       rows,
		Pagination: models.Pagination{Total: total, Page: page, Limit: limit},
		DataCache:  freshness,
	}, nil
}

// ByIdentity returns the cached row for a natural key, or
// ErrorRecordNotFound when the cache has never seen it.
func (q *Querier) ByIdentity(ctx context.Context, dominio models.Dominio, identity string) (models.CacheRow, error) {
	binding := bindingFor(dominio)
	if binding == nil {
		return nil, fmt.Errorf("%w: unknown domain %q", utils.ErrInvalidRecord, dominio)
	}

	row := binding.newRow()
	err := q.db().WithContext(ctx).
		Where(binding.identityColumn+" = ?", identity).
		Take(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (q *Querier) filtered(ctx context.Context, binding *domainBinding, filters SearchFilters) *gorm.DB {
	db := q.db().WithContext(ctx).Model(binding.newRow())

	if filters.Inicio != nil {
		db = db.Where(binding.dateColumn+" >= ?", *filters.Inicio)
	}
	if filters.Fim != nil {
		db = db.Where(binding.dateColumn+" < ?", *filters.Fim)
	}
	if filters.Veiculo != "" {
		db = db.Where(binding.vehicleColumn+" = ?", filters.Veiculo)
	}
	if filters.Agente != "" && binding.agentColumn != "" {
		db = db.Where(binding.agentColumn+" = ?", filters.Agente)
	}
	if filters.Status != "" && binding.statusColumn != "" {
		db = db.Where(binding.statusColumn+" = ?", filters.Status)
	}
	if filters.Classificacao != "" && filters.Dominio == models.DominioMultas {
		db = db.Where("classificacao = ?", filters.Classificacao)
	}
	if filters.Garagem != "" {
		db = db.Where("garagem = ?", filters.Garagem)
	}
	if filters.Texto != "" {
		like := "%" + filters.Texto + "%"
		db = db.Where(binding.identityColumn+" LIKE ? OR "+binding.vehicleColumn+" LIKE ?", like, like)
	}
	if filters.Incompletos {
		db = db.Where("is_complete = ?", false)
	}
	return db
}

// freshness computes the newest ultimaAtualizacao across the filtered
// set so every search response can say "data as of ..." without a
// second round trip from the UI. Reads the column directly rather than
// aggregating it; an empty filtered set yields a nil timestamp, never
// an error.
func (q *Querier) freshness(ctx context.Context, binding *domainBinding, filters SearchFilters) (Freshness, error) {
	var newest []time.Time
	err := q.filtered(ctx, binding, filters).
		Where("ultima_atualizacao IS NOT NULL").
		Order("ultima_atualizacao DESC").
		Limit(1).
		Pluck("ultima_atualizacao", &newest).Error
	if err != nil {
		return Freshness{}, err
	}
	freshness := Freshness{FonteDados: models.FonteGlobus}
	if len(newest) > 0 {
		freshness.UltimaAtualizacao = &newest[0]
	}
	return freshness, nil
}
