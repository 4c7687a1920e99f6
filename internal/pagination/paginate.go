package pagination

import (
	"context"
	"fmt"
	"math"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/BradenHooton/roster/internal/filters"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Mapper scans one row and reports the primary key used by cursors.
type Mapper[T any] struct {
	Scan pgx.RowToFunc[T]
	ID   func(T) int64
}

// Paginate runs q with the strategy named by v.
func Paginate[T any](ctx context.Context, db Querier, v Variant, q filters.Query, req Request, m Mapper[T]) (Result[T], error) {
	switch v {
	case LengthAware:
		return PaginateLengthAware(ctx, db, q, req, m)
	case Simple:
		return PaginateSimple(ctx, db, q, req, m)
	case Cursor:
		return PaginateCursor(ctx, db, q, req, m)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedPaginator, v)
}

func PaginateLengthAware[T any](ctx context.Context, db Querier, q filters.Query, req Request, m Mapper[T]) (*LengthAwareResult[T], error) {
	countSQL, countArgs, err := countQuery(q).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count query: %w", err)
	}

	var total int64
	if err := db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}

	items, err := fetch(ctx, db, q.Ordered().
		Limit(uint64(req.PerPage)).
		Offset(uint64(req.offset())), m)
	if err != nil {
		return nil, err
	}

	return buildLengthAware(items, total, req), nil
}

func PaginateSimple[T any](ctx context.Context, db Querier, q filters.Query, req Request, m Mapper[T]) (*SimpleResult[T], error) {
	items, err := fetch(ctx, db, q.Ordered().
		Limit(uint64(req.PerPage+1)).
		Offset(uint64(req.offset())), m)
	if err != nil {
		return nil, err
	}
	return buildSimple(items, req), nil
}

// PaginateCursor pages by primary key in the direction of the query's
// first ordering. Other ordering terms are dropped.
func PaginateCursor[T any](ctx context.Context, db Querier, q filters.Query, req Request, m Mapper[T]) (*CursorResult[T], error) {
	cur := decodeCursor(req.Cursor)

	items, err := fetch(ctx, db, cursorQuery(q, cur, req.PerPage), m)
	if err != nil {
		return nil, err
	}
	return buildCursor(items, cur, req, m.ID), nil
}

func fetch[T any](ctx context.Context, db Querier, b sq.SelectBuilder, m Mapper[T]) ([]T, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build page query: %w", err)
	}

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query page: %w", err)
	}

	items, err := pgx.CollectRows(rows, m.Scan)
	if err != nil {
		return nil, fmt.Errorf("scan page: %w", err)
	}
	return items, nil
}

func countQuery(q filters.Query) sq.SelectBuilder {
	return sq.Select("COUNT(*)").
		FromSelect(q.Builder, "aggregate").
		PlaceholderFormat(sq.Dollar)
}

func cursorQuery(q filters.Query, cur *cursorToken, perPage int) sq.SelectBuilder {
	dir := q.Direction()
	id := q.Column("id")

	b := q.Builder
	if cur != nil {
		forward := cur.Next == (dir == filters.Asc)
		if forward {
			b = b.Where(sq.Gt{id: cur.ID})
		} else {
			b = b.Where(sq.Lt{id: cur.ID})
		}
		if !cur.Next {
			dir = reverse(dir)
		}
	}

	return b.OrderBy(filters.Order{Column: id, Direction: dir}.String()).
		Limit(uint64(perPage + 1))
}

func buildLengthAware[T any](items []T, total int64, req Request) *LengthAwareResult[T] {
	lastPage := int(math.Max(1, math.Ceil(float64(total)/float64(req.PerPage))))

	r := &LengthAwareResult[T]{
		Data:         items,
		CurrentPage:  req.Page,
		LastPage:     lastPage,
		FirstPageURL: pageURL(req.Path, 1),
		LastPageURL:  pageURL(req.Path, lastPage),
		PerPage:      req.PerPage,
		Total:        total,
		Path:         req.Path,
	}
	if req.Page < lastPage {
		r.NextPageURL = pageURL(req.Path, req.Page+1)
	}
	if req.Page > 1 {
		r.PrevPageURL = pageURL(req.Path, req.Page-1)
	}
	r.From, r.To = bounds(req, len(items))
	return r
}

func buildSimple[T any](items []T, req Request) *SimpleResult[T] {
	hasMore := len(items) > req.PerPage
	if hasMore {
		items = items[:req.PerPage]
	}

	r := &SimpleResult[T]{
		Data:         items,
		CurrentPage:  req.Page,
		FirstPageURL: pageURL(req.Path, 1),
		PerPage:      req.PerPage,
		Path:         req.Path,
	}
	if hasMore {
		r.NextPageURL = pageURL(req.Path, req.Page+1)
	}
	if req.Page > 1 {
		r.PrevPageURL = pageURL(req.Path, req.Page-1)
	}
	r.From, r.To = bounds(req, len(items))
	return r
}

// buildCursor expects items in read order, one more than a page when
// further rows exist.
func buildCursor[T any](items []T, cur *cursorToken, req Request, id func(T) int64) *CursorResult[T] {
	hasMore := len(items) > req.PerPage
	if hasMore {
		items = items[:req.PerPage]
	}

	backward := cur != nil && !cur.Next
	if backward {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}

	r := &CursorResult[T]{
		Data:    items,
		PerPage: req.PerPage,
		Path:    req.Path,
	}
	if len(items) == 0 {
		return r
	}

	first, last := id(items[0]), id(items[len(items)-1])

	hasNext := hasMore
	hasPrev := cur != nil
	if backward {
		hasNext = true
		hasPrev = hasMore
	}

	if hasNext {
		c := encodeCursor(cursorToken{ID: last, Next: true})
		r.NextCursor = &c
		r.NextPageURL = cursorURL(req.Path, c)
	}
	if hasPrev {
		c := encodeCursor(cursorToken{ID: first, Next: false})
		r.PrevCursor = &c
		r.PrevPageURL = cursorURL(req.Path, c)
	}
	return r
}

func bounds(req Request, n int) (*int, *int) {
	if n == 0 {
		return nil, nil
	}
	from := req.offset() + 1
	to := req.offset() + n
	return &from, &to
}

func pageURL(path string, page int) *string {
	s := path + "?page=" + strconv.Itoa(page)
	return &s
}

func cursorURL(path, cursor string) *string {
	s := path + "?cursor=" + cursor
	return &s
}

func reverse(d filters.Direction) filters.Direction {
	if d == filters.Desc {
		return filters.Asc
	}
	return filters.Desc
}
