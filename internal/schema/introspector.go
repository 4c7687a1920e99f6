package schema

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roster_schema_cache_hits_total",
		Help: "Schema lookups answered from the cache.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roster_schema_cache_misses_total",
		Help: "Schema lookups that went to the database.",
	})
)

// fillTimeout bounds a shared cache fill once it no longer follows any
// single caller's context.
const fillTimeout = 10 * time.Second

// Introspector answers column and table existence questions, caching every
// answer under the current schema fingerprint.
type Introspector struct {
	source      Source
	cache       Cache
	fingerprint Fingerprinter
	logger      *slog.Logger
	group       singleflight.Group
}

func NewIntrospector(source Source, cache Cache, fingerprint Fingerprinter, logger *slog.Logger) *Introspector {
	return &Introspector{
		source:      source,
		cache:       cache,
		fingerprint: fingerprint,
		logger:      logger,
	}
}

// Columns returns the column names of table in ordinal order.
// The returned slice is shared and must not be modified.
func (i *Introspector) Columns(ctx context.Context, table string) ([]string, error) {
	fp, err := i.fingerprint.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("schema fingerprint: %w", err)
	}
	return i.remember(ctx, columnsKey(fp, table), func(ctx context.Context) ([]string, error) {
		return i.source.Columns(ctx, table)
	})
}

func (i *Introspector) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	columns, err := i.Columns(ctx, table)
	if err != nil {
		return false, err
	}
	return contains(columns, column), nil
}

// Tables returns every base table of the schema.
func (i *Introspector) Tables(ctx context.Context) ([]string, error) {
	fp, err := i.fingerprint.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("schema fingerprint: %w", err)
	}
	return i.remember(ctx, tablesKey(fp), i.source.Tables)
}

func (i *Introspector) TableExists(ctx context.Context, table string) (bool, error) {
	tables, err := i.Tables(ctx)
	if err != nil {
		return false, err
	}
	return contains(tables, table), nil
}

// ColumnsExcept returns the columns of table minus excluded, keeping column order.
func (i *Introspector) ColumnsExcept(ctx context.Context, table string, excluded ...string) ([]string, error) {
	columns, err := i.Columns(ctx, table)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]struct{}, len(excluded))
	for _, e := range excluded {
		skip[e] = struct{}{}
	}

	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if _, ok := skip[c]; !ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (i *Introspector) remember(ctx context.Context, key string, compute func(context.Context) ([]string, error)) ([]string, error) {
	names, ok, err := i.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("schema cache: %w", err)
	}
	if ok {
		cacheHitsTotal.Inc()
		return names, nil
	}
	cacheMissesTotal.Inc()

	// The fill outlives the caller that started it; every caller waits on
	// its own context instead.
	ch := i.group.DoChan(key, func() (any, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fillTimeout)
		defer cancel()

		names, err := compute(fillCtx)
		if err != nil {
			return nil, fmt.Errorf("schema source: %w", err)
		}
		if err := i.cache.Set(fillCtx, key, names); err != nil {
			return nil, fmt.Errorf("schema cache: %w", err)
		}
		return names, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		i.logger.Debug("schema cache filled", slog.String("key", key), slog.Bool("shared", res.Shared))
		return res.Val.([]string), nil
	}
}

func columnsKey(fingerprint, table string) string {
	return fmt.Sprintf("schema:%s:%s:columns", fingerprint, table)
}

func tablesKey(fingerprint string) string {
	return fmt.Sprintf("schema:%s:all-tables", fingerprint)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
