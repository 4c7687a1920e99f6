package filters

import (
	"context"
	"log/slog"
	"strings"
)

// Sort orders by sort_by in the direction given by sort. Unknown columns
// and relations fall back to the primary key; only schema lookup
// failures are returned. Hidden columns are treated as unknown on every
// table.
type Sort struct {
	schema SchemaInspector
	logger *slog.Logger
	hidden []string
}

func NewSort(schema SchemaInspector, logger *slog.Logger, hidden ...string) Sort {
	return Sort{schema: schema, logger: logger, hidden: hidden}
}

func (Sort) Key() string { return "sort" }

func (s Sort) Apply(ctx context.Context, q Query, p Params) (Query, error) {
	dir := Direction(p.Get("sort"))
	if dir != Asc && dir != Desc {
		return q, nil
	}

	sortBy := p.Get("sort_by")
	if sortBy == "" {
		return q.OrderBy(q.Column("id"), dir), nil
	}

	// relation.field sorts through a joined table; anything deeper is
	// looked up as a plain column and never matches.
	parts := strings.Split(sortBy, ".")
	if len(parts) == 2 {
		return s.byRelation(ctx, q, parts[0], parts[1], dir)
	}
	return s.byColumn(ctx, q, sortBy, dir)
}

// sortable reports whether column exists on table and is not hidden.
func (s Sort) sortable(ctx context.Context, table, column string) (bool, error) {
	columns, err := s.schema.ColumnsExcept(ctx, table, s.hidden...)
	if err != nil {
		return false, err
	}
	for _, c := range columns {
		if c == column {
			return true, nil
		}
	}
	return false, nil
}

func (s Sort) byColumn(ctx context.Context, q Query, column string, dir Direction) (Query, error) {
	ok, err := s.sortable(ctx, q.Table, column)
	if err != nil {
		return q, err
	}
	if !ok {
		s.logger.Debug("unknown sort column, ordering by id",
			slog.String("table", q.Table),
			slog.String("sort_by", column))
		return q.OrderBy(q.Column("id"), dir), nil
	}
	return q.OrderBy(q.Column(column), dir), nil
}

func (s Sort) byRelation(ctx context.Context, q Query, relation, field string, dir Direction) (Query, error) {
	if relation == "" || field == "" {
		return q.OrderBy(q.Column("id"), dir), nil
	}

	related := Plural(relation)
	ok, err := s.schema.TableExists(ctx, related)
	if err != nil {
		return q, err
	}
	if !ok {
		s.logger.Debug("sort relation has no table, ordering by id",
			slog.String("relation", relation),
			slog.String("table", related))
		return q.OrderBy(q.Column("id"), dir), nil
	}

	fk := Singular(q.Table) + "_id"
	ok, err = s.schema.ColumnExists(ctx, related, fk)
	if err != nil {
		return q, err
	}
	if !ok {
		s.logger.Error("sort relation is missing the expected foreign key, ordering by id",
			slog.String("table", related),
			slog.String("foreign_key", fk))
		return q.OrderBy(q.Column("id"), dir), nil
	}

	q = q.Join(related, related+"."+fk+" = "+q.Column("id"))

	ok, err = s.sortable(ctx, related, field)
	if err != nil {
		return q, err
	}
	if !ok {
		return q.OrderBy(q.Column("id"), dir), nil
	}
	return q.OrderBy(related+"."+field, dir), nil
}
