package globussync

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gestaofrota/globus_backend/config"
	"github.com/gestaofrota/globus_backend/models"
	"github.com/gestaofrota/globus_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// SyncRequest is the body of POST /api/cache/:dominio/sync. All fields
// are optional; an empty body syncs the default trailing window.
type SyncRequest struct {
	PeriodoInicio string   `json:"periodoInicio" binding:"omitempty,syncdate"`
	PeriodoFim    string   `json:"periodoFim" binding:"omitempty,syncdate"`
	Chaves        []string `json:"chaves" binding:"omitempty,max=500,dive,min=1"`
}

func init() {
	// syncdate accepts the two date forms the API takes: YYYY-MM-DD and
	// full RFC3339.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("syncdate", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if s == "" {
				return true
			}
			_, err := parseDateParam(s)
			return err == nil
		})
	}
}

func SyncHandler(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		dominio, ok := models.ParseDominio(c.Param("dominio"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown domain"})
			return
		}

		var req SyncRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}

		scope, err := scopeFromRequest(dominio, req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := utils.SetTriggeredByInContext(c.Request.Context(), models.SyncTriggeredManual)
		result, err := o.Sync(ctx, scope)
		switch {
		case errors.Is(err, utils.ErrSyncAlreadyInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "sync already in progress for this domain"})
			return
		case errors.Is(err, utils.ErrSourceUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "globus unavailable", "result": result})
			return
		case errors.Is(err, utils.ErrSyncTimeout):
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "sync run timed out", "result": result})
			return
		case errors.Is(err, utils.ErrSyncCancelled):
			// Cancellation is an operator action, not a server fault.
			c.JSON(http.StatusOK, result)
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func CancelSyncHandler(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		dominio, ok := models.ParseDominio(c.Param("dominio"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown domain"})
			return
		}

		runId, found := o.Cancel(dominio)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "no sync running for this domain"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runId": runId, "cancelRequested": true})
	}
}

func SearchHandler(q *Querier) gin.HandlerFunc {
	return func(c *gin.Context) {
		dominio, ok := models.ParseDominio(c.Param("dominio"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown domain"})
			return
		}

		filters := SearchFilters{
			Dominio:       dominio,
			Veiculo:       strings.TrimSpace(c.Query("veiculo")),
			Agente:        strings.TrimSpace(c.Query("agente")),
			Status:        strings.TrimSpace(c.Query("status")),
			Classificacao: strings.TrimSpace(c.Query("classificacao")),
			Garagem:       strings.TrimSpace(c.Query("garagem")),
			Texto:         strings.TrimSpace(c.Query("texto")),
			Incompletos:   c.Query("incompletos") == "true",
		}
		filters.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
		filters.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

		if v := strings.TrimSpace(c.Query("inicio")); v != "" {
			t, err := parseDateParam(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid inicio date"})
				return
			}
			filters.Inicio = &t
		}
		if v := strings.TrimSpace(c.Query("fim")); v != "" {
			t, err := parseDateParam(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fim date"})
				return
			}
			filters.Fim = &t
		}

		result, err := q.Search(c.Request.Context(), filters)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func ByIdentityHandler(q *Querier) gin.HandlerFunc {
	return func(c *gin.Context) {
		dominio, ok := models.ParseDominio(c.Param("dominio"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown domain"})
			return
		}

		identity := strings.TrimSpace(c.Param("id"))
		if identity == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "identity is required"})
			return
		}

		row, err := q.ByIdentity(c.Request.Context(), dominio, identity)
		if errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, row)
	}
}

func StatsHandler(a *Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		dominio, ok := models.ParseDominio(c.Param("dominio"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown domain"})
			return
		}

		stats, err := a.Summarize(c.Request.Context(), dominio)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		db := config.GetDB().WithContext(c.Request.Context()).
			Model(&models.SyncRun{}).
			Order("id desc").
			Limit(limit)

		if v := strings.TrimSpace(c.Query("dominio")); v != "" {
			dominio, ok := models.ParseDominio(v)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown domain"})
				return
			}
			db = db.Where("dominio = ?", dominio)
		}

		var runs []models.SyncRun
		if err := db.Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": runs})
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		var run models.SyncRun
		if err := config.GetDB().WithContext(c.Request.Context()).Take(&run, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

func RetrySyncRunHandler(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		result, err := o.Retry(c.Request.Context(), uint(id))
		switch {
		case errors.Is(err, utils.ErrorRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		case errors.Is(err, utils.ErrSyncAlreadyInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		case errors.Is(err, utils.ErrSourceUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "globus unavailable", "result": result})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// scopeFromRequest fills in the default trailing window when the caller
// does not bound the sync explicitly. SYNC_WINDOW_DAYS defaults to 7.
func scopeFromRequest(dominio models.Dominio, req SyncRequest) (Scope, error) {
	scope := Scope{Dominio: dominio}

	for _, chave := range req.Chaves {
		if v := strings.TrimSpace(chave); v != "" {
			scope.Chaves = append(scope.Chaves, v)
		}
	}
	// Duplicate keys would make the legacy IN() filter longer for no
	// reason; keep first occurrence order.
	scope.Chaves = utils.UniqueSlice(scope.Chaves)

	now := time.Now().UTC()
	if req.PeriodoFim != "" {
		t, err := parseDateParam(req.PeriodoFim)
		if err != nil {
			return Scope{}, errors.New("invalid periodoFim date")
		}
		scope.Fim = t
	} else {
		scope.Fim = now
	}

	if req.PeriodoInicio != "" {
		t, err := parseDateParam(req.PeriodoInicio)
		if err != nil {
			return Scope{}, errors.New("invalid periodoInicio date")
		}
		scope.Inicio = t
	} else {
		windowDays := utils.IntFromEnv("SYNC_WINDOW_DAYS", 7)
		scope.Inicio = scope.Fim.AddDate(0, 0, -windowDays)
	}

	if !scope.Inicio.Before(scope.Fim) {
		return Scope{}, errors.New("periodoInicio must be before periodoFim")
	}
	return scope, nil
}

func parseDateParam(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
