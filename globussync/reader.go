package globussync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gestaofrota/globus_backend/config"
	"github.com/gestaofrota/globus_backend/utils"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// LegacyReader is the pull-only contract against the system of record.
// Implementations must paginate internally and retry transient failures
// so callers only ever see a flat record stream or ErrSourceUnavailable.
type LegacyReader interface {
	FetchChanged(ctx context.Context, scope Scope) (*RecordStream, error)
}

type ReaderConfig struct {
	PageSize    int
	PageTimeout time.Duration
	MaxRetries  int
	Backoff     time.Duration
}

func ReaderConfigFromEnv() ReaderConfig {
	return ReaderConfig{
		PageSize:    utils.IntFromEnv("SYNC_PAGE_SIZE", 500),
		PageTimeout: utils.DurationFromEnvSeconds("SYNC_PAGE_TIMEOUT_SECONDS", 60*time.Second),
		MaxRetries:  utils.IntFromEnv("SYNC_MAX_RETRIES", 3),
		Backoff:     500 * time.Millisecond,
	}
}

// GlobusReader pulls changed rows from the legacy Oracle schema. It
// never writes through its handle.
type GlobusReader struct {
	DB     *sqlx.DB
	Logger *logrus.Logger
	Config ReaderConfig
	Mapper *Mapper
}

func NewGlobusReader(db *sqlx.DB, logger *logrus.Logger) *GlobusReader {
	return &GlobusReader{
		DB:     db,
		Logger: logger,
		Config: ReaderConfigFromEnv(),
		Mapper: NewMapper(),
	}
}

func (r *GlobusReader) db() *sqlx.DB {
	if r.DB != nil {
		return r.DB
	}
	return config.GetGlobusDB()
}

// RecordStream is a lazy, finite, non-restartable sequence of mapped
// legacy records. Each FetchChanged call re-queries the source.
type RecordStream struct {
	fetchPage func(offset int) ([]LegacyRecord, error)
	pageSize  int

	buffer []LegacyRecord
	offset int
	done   bool
	err    error
}

// Next yields the following record. ok=false with nil error means the
// stream is exhausted; a non-nil error is terminal for the stream.
func (s *RecordStream) Next() (LegacyRecord, bool, error) {
	if s.err != nil {
		return LegacyRecord{}, false, s.err
	}
	if len(s.buffer) == 0 {
		if s.done {
			return LegacyRecord{}, false, nil
		}
		page, err := s.fetchPage(s.offset)
		if err != nil {
			s.err = err
			return LegacyRecord{}, false, err
		}
		s.offset += len(page)
		if len(page) < s.pageSize {
			s.done = true
		}
		if len(page) == 0 {
			return LegacyRecord{}, false, nil
		}
		s.buffer = page
	}
	rec := s.buffer[0]
	s.buffer = s.buffer[1:]
	return rec, true, nil
}

func (r *GlobusReader) FetchChanged(ctx context.Context, scope Scope) (*RecordStream, error) {
	binding := bindingFor(scope.Dominio)
	if binding == nil {
		return nil, fmt.Errorf("unknown domain %q", scope.Dominio)
	}
	if r.db() == nil {
		return nil, fmt.Errorf("%w: globus connection not ready", utils.ErrSourceUnavailable)
	}

	query, baseArgs := buildLegacyQuery(binding, scope)
	pageSize := r.Config.PageSize

	stream := &RecordStream{pageSize: pageSize}
	stream.fetchPage = func(offset int) ([]LegacyRecord, error) {
		args := make([]interface{}, len(baseArgs), len(baseArgs)+2)
		copy(args, baseArgs)
		args = append(args, offset, pageSize)
		return r.fetchPageWithRetry(ctx, scope, query, args)
	}
	return stream, nil
}

// fetchPageWithRetry runs one page query under the per-page timeout,
// retrying transient failures with exponential backoff. Once retries
// are exhausted it surfaces ErrSourceUnavailable so the orchestrator
// aborts the run instead of silently dropping pages.
func (r *GlobusReader) fetchPageWithRetry(ctx context.Context, scope Scope, query string, args []interface{}) ([]LegacyRecord, error) {
	var lastErr error
	for attempt := 1; attempt <= r.Config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		page, err := r.fetchPage(ctx, scope, query, args)
		if err == nil {
			return page, nil
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		lastErr = err
		r.Logger.WithFields(logrus.Fields{
			"module":  "globussync",
			"dominio": scope.Dominio,
			"attempt": attempt,
		}).Warn("globus page fetch failed: " + err.Error())

		if attempt < r.Config.MaxRetries {
			sleep := r.Config.Backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sleep):
			}
		}
	}
	return nil, fmt.Errorf("%w: %v", utils.ErrSourceUnavailable, lastErr)
}

func (r *GlobusReader) fetchPage(ctx context.Context, scope Scope, query string, args []interface{}) ([]LegacyRecord, error) {
	pageCtx, cancel := context.WithTimeout(ctx, r.Config.PageTimeout)
	defer cancel()

	rows, err := r.db().QueryxContext(pageCtx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	binding := bindingFor(scope.Dominio)
	var page []LegacyRecord
	for rows.Next() {
		raw := map[string]interface{}{}
		if err := rows.MapScan(raw); err != nil {
			return nil, err
		}
		page = append(page, binding.mapRow(r.Mapper, raw))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return page, nil
}

// buildLegacyQuery produces the windowed, optionally key-filtered page
// query. Binds are positional (:1, :2, ...); offset and limit are
// always the last two.
func buildLegacyQuery(binding *domainBinding, scope Scope) (string, []interface{}) {
	var sb strings.Builder
	args := []interface{}{scope.Inicio, scope.Fim}

	sb.WriteString("SELECT * FROM ")
	sb.WriteString(binding.legacyTable)
	sb.WriteString(" WHERE ")
	sb.WriteString(binding.legacyChange)
	sb.WriteString(" >= :1 AND ")
	sb.WriteString(binding.legacyChange)
	sb.WriteString(" < :2")

	if len(scope.Chaves) > 0 {
		sb.WriteString(" AND ")
		sb.WriteString(binding.legacyIdentity)
		sb.WriteString(" IN (")
		for i, chave := range scope.Chaves {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(":" + strconv.Itoa(len(args)+1))
			args = append(args, chave)
		}
		sb.WriteString(")")
	}

	sb.WriteString(" ORDER BY ")
	sb.WriteString(binding.legacyIdentity)
	sb.WriteString(" OFFSET :" + strconv.Itoa(len(args)+1) + " ROWS")
	sb.WriteString(" FETCH NEXT :" + strconv.Itoa(len(args)+2) + " ROWS ONLY")

	return sb.String(), args
}
