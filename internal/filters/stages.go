package filters

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// UserSort sorts users on any column except credentials.
func UserSort(schema SchemaInspector, logger *slog.Logger) Sort {
	return NewSort(schema, logger, "password_hash")
}

// UserStages is the stage set used by the user listing.
func UserStages(schema SchemaInspector, logger *slog.Logger) Pipeline {
	return Pipeline{
		UserSort(schema, logger),
		Active{},
		Username{},
		Email{},
		Verified{},
		Role{},
	}
}

// Active filters on the boolean active column.
type Active struct{}

func (Active) Key() string { return "active" }

func (Active) Apply(_ context.Context, q Query, p Params) (Query, error) {
	return q.Where(sq.Eq{q.Column("active"): p.Bool("active")}), nil
}

// Verified filters on whether email_verified_at is set.
type Verified struct{}

func (Verified) Key() string { return "verified" }

func (Verified) Apply(_ context.Context, q Query, p Params) (Query, error) {
	col := q.Column("email_verified_at")
	if p.Bool("verified") {
		return q.Where(sq.NotEq{col: nil}), nil
	}
	return q.Where(sq.Eq{col: nil}), nil
}

type Email struct{}

func (Email) Key() string { return "email" }

func (Email) Apply(_ context.Context, q Query, p Params) (Query, error) {
	return q.Where(sq.Eq{q.Column("email"): strings.ToLower(p.Get("email"))}), nil
}

type Username struct{}

func (Username) Key() string { return "username" }

func (Username) Apply(_ context.Context, q Query, p Params) (Query, error) {
	return q.Where(sq.Eq{q.Column("username"): strings.ToLower(p.Get("username"))}), nil
}

// Role keeps rows holding the given role. A numeric value is a role id,
// anything else is matched against the role name.
type Role struct{}

func (Role) Key() string { return "role" }

func (Role) Apply(_ context.Context, q Query, p Params) (Query, error) {
	value := p.Get("role")
	if value == "" {
		return q, nil
	}

	q = q.Join("model_has_roles", "model_has_roles.model_id = "+q.Column("id"))
	if id, err := strconv.ParseInt(value, 10, 64); err == nil {
		return q.Where(sq.Eq{"model_has_roles.role_id": id}), nil
	}

	q = q.Join("roles", "roles.id = model_has_roles.role_id")
	return q.Where(sq.Eq{"roles.name": value}), nil
}
