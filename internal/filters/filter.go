// Package filters turns request query parameters into WHERE, JOIN and
// ORDER BY clauses on a squirrel select. Stages are stateless and safe
// to share between requests.
package filters

import (
	"context"
	"net/url"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Order is one ORDER BY term. Column is always table-qualified.
type Order struct {
	Column    string
	Direction Direction
}

func (o Order) String() string {
	return o.Column + " " + strings.ToUpper(string(o.Direction))
}

// Query is threaded through a Pipeline. Ordering is held apart from the
// builder so paginators can run the unordered query for counts.
// Every method returns a modified copy.
type Query struct {
	Table   string
	Builder sq.SelectBuilder
	Orders  []Order

	joined []string
}

func NewQuery(table string, builder sq.SelectBuilder) Query {
	return Query{Table: table, Builder: builder}
}

// Column qualifies name with the primary table.
func (q Query) Column(name string) string {
	return q.Table + "." + name
}

func (q Query) Where(pred any, args ...any) Query {
	q.Builder = q.Builder.Where(pred, args...)
	return q
}

// Join inner-joins table on the given condition. Joining the same table
// twice is a no-op.
func (q Query) Join(table, on string) Query {
	if q.HasJoin(table) {
		return q
	}
	q.Builder = q.Builder.Join(table + " ON " + on)
	q.joined = append(append([]string(nil), q.joined...), table)
	return q
}

func (q Query) HasJoin(table string) bool {
	for _, t := range q.joined {
		if t == table {
			return true
		}
	}
	return false
}

func (q Query) OrderBy(column string, dir Direction) Query {
	orders := make([]Order, len(q.Orders), len(q.Orders)+1)
	copy(orders, q.Orders)
	q.Orders = append(orders, Order{Column: column, Direction: dir})
	return q
}

// Direction is the direction of the first ordering, ascending when unordered.
func (q Query) Direction() Direction {
	if len(q.Orders) == 0 {
		return Asc
	}
	return q.Orders[0].Direction
}

// Ordered returns the builder with the ORDER BY applied. A trailing
// primary key term keeps offset pagination stable.
func (q Query) Ordered() sq.SelectBuilder {
	orders := q.Orders
	id := q.Column("id")
	hasID := false
	for _, o := range orders {
		if o.Column == id {
			hasID = true
			break
		}
	}
	if !hasID {
		orders = append(append([]Order(nil), orders...), Order{Column: id, Direction: q.Direction()})
	}

	terms := make([]string, 0, len(orders))
	for _, o := range orders {
		terms = append(terms, o.String())
	}
	return q.Builder.OrderBy(terms...)
}

// Params wraps the request query string.
type Params struct {
	values url.Values
}

func NewParams(values url.Values) Params {
	if values == nil {
		values = url.Values{}
	}
	return Params{values: values}
}

// Has reports whether key was sent at all, even with an empty value.
func (p Params) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

func (p Params) Get(key string) string {
	return strings.TrimSpace(p.values.Get(key))
}

func (p Params) Bool(key string) bool {
	return Truthy(p.Get(key))
}

func (p Params) Values() url.Values {
	return p.values
}

// Truthy casts a query string value to a boolean. Empty, 0, false, off
// and no are false.
func Truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "off", "no":
		return false
	}
	return true
}

// Stage is a single filter triggered by the presence of Key in the request.
type Stage interface {
	Key() string
	Apply(ctx context.Context, q Query, p Params) (Query, error)
}

// SchemaInspector is the part of the schema introspector stages rely on.
type SchemaInspector interface {
	ColumnExists(ctx context.Context, table, column string) (bool, error)
	ColumnsExcept(ctx context.Context, table string, excluded ...string) ([]string, error)
	TableExists(ctx context.Context, table string) (bool, error)
}

// Pipeline applies its stages in order, skipping stages whose key is absent.
type Pipeline []Stage

func (p Pipeline) Apply(ctx context.Context, q Query, params Params) (Query, error) {
	for _, stage := range p {
		if !params.Has(stage.Key()) {
			continue
		}
		next, err := stage.Apply(ctx, q, params)
		if err != nil {
			return q, err
		}
		q = next
	}
	return q, nil
}
