package globussync

import (
	"context"
	"fmt"
	"time"

	"github.com/gestaofrota/globus_backend/config"
	"github.com/gestaofrota/globus_backend/models"
	"github.com/gestaofrota/globus_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DomainStats is the dashboard summary for one cache table. Ratios are
// 0..1; date bounds are nil while the table is empty.
type DomainStats struct {
	Dominio          models.Dominio `json:"dominio"`
	TotalRecords     int64          `json:"totalRecords"`
	DistinctVehicles int64          `json:"distinctVehicles"`
	DistinctAgents   int64          `json:"distinctAgents"`
	DateMin          *time.Time     `json:"dateMin"`
	DateMax          *time.Time     `json:"dateMax"`
	CompleteRatio    float64        `json:"completeRatio"`
	ValidatedRatio   float64        `json:"validatedRatio"`
	GeneratedAt      time.Time      `json:"generatedAt"`
}

// Aggregator computes stats on demand from the cache instead of
// maintaining them incrementally, so they can never drift from the
// tables. A short Redis TTL absorbs dashboard refresh bursts.
type Aggregator struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	CacheTTL time.Duration
}

func NewAggregator(db *gorm.DB, logger *logrus.Logger) *Aggregator {
	return &Aggregator{
		DB:       db,
		Logger:   logger,
		CacheTTL: utils.DurationFromEnvSeconds("STATS_CACHE_TTL_SECONDS", 60*time.Second),
	}
}

func (a *Aggregator) db() *gorm.DB {
	if a.DB != nil {
		return a.DB
	}
	return config.GetDB()
}

func (a *Aggregator) Summarize(ctx context.Context, dominio models.Dominio) (DomainStats, error) {
	binding := bindingFor(dominio)
	if binding == nil {
		return DomainStats{}, fmt.Errorf("%w: unknown domain %q", utils.ErrInvalidRecord, dominio)
	}

	cacheKey := "stats:" + string(dominio)
	var cached DomainStats
	if hit, err := config.GetRedisObject(cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	stats, err := a.compute(ctx, binding, dominio)
	if err != nil {
		return DomainStats{}, err
	}

	if err := config.SetRedisObject(cacheKey, stats, a.CacheTTL); err != nil {
		a.Logger.WithFields(logrus.Fields{
			"module":  "globussync",
			"dominio": dominio,
		}).Warn("stats memoization write failed: " + err.Error())
	}
	return stats, nil
}

func (a *Aggregator) compute(ctx context.Context, binding *domainBinding, dominio models.Dominio) (DomainStats, error) {
	db := a.db().WithContext(ctx).Model(binding.newRow())
	stats := DomainStats{Dominio: dominio, GeneratedAt: time.Now().UTC()}

	if err := db.Session(&gorm.Session{}).Count(&stats.TotalRecords).Error; err != nil {
		return DomainStats{}, err
	}
	if stats.TotalRecords == 0 {
		return stats, nil
	}

	err := db.Session(&gorm.Session{}).
		Select("count(distinct " + binding.vehicleColumn + ")").
		Scan(&stats.DistinctVehicles).Error
	if err != nil {
		return DomainStats{}, err
	}

	if binding.agentColumn != "" {
		err = db.Session(&gorm.Session{}).
			Select("count(distinct " + binding.agentColumn + ")").
			Scan(&stats.DistinctAgents).Error
		if err != nil {
			return DomainStats{}, err
		}
	}

	// Date bounds come from ordered single-row reads of the column, not
	// min()/max() aggregates, so the values scan the same way regular
	// row loads do on every driver.
	stats.DateMin, err = a.dateBound(db, binding.dateColumn, "ASC")
	if err != nil {
		return DomainStats{}, err
	}
	stats.DateMax, err = a.dateBound(db, binding.dateColumn, "DESC")
	if err != nil {
		return DomainStats{}, err
	}

	var complete, validated int64
	if err := db.Session(&gorm.Session{}).Where("is_complete = ?", true).Count(&complete).Error; err != nil {
		return DomainStats{}, err
	}
	if err := db.Session(&gorm.Session{}).Where("is_validated = ?", true).Count(&validated).Error; err != nil {
		return DomainStats{}, err
	}
	stats.CompleteRatio = float64(complete) / float64(stats.TotalRecords)
	stats.ValidatedRatio = float64(validated) / float64(stats.TotalRecords)

	return stats, nil
}

func (a *Aggregator) dateBound(db *gorm.DB, column string, direction string) (*time.Time, error) {
	var dates []time.Time
	err := db.Session(&gorm.Session{}).
		Where(column+" IS NOT NULL").
		Order(column+" "+direction).
		Limit(1).
		Pluck(column, &dates).Error
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, nil
	}
	return &dates[0], nil
}
