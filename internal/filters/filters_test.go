package filters

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"slices"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSchema answers from a fixed table -> columns map
type fakeSchema struct {
	tables map[string][]string
	err    error
}

func (f fakeSchema) ColumnExists(_ context.Context, table, column string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, c := range f.tables[table] {
		if c == column {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeSchema) ColumnsExcept(_ context.Context, table string, excluded ...string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []string{}
	for _, c := range f.tables[table] {
		if !slices.Contains(excluded, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f fakeSchema) TableExists(_ context.Context, table string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.tables[table]
	return ok, nil
}

var testSchema = fakeSchema{tables: map[string][]string{
	"users":         {"id", "email", "username", "password_hash", "active", "email_verified_at", "created_at"},
	"user_profiles": {"id", "user_id", "first_name", "last_name"},
	"countries":     {"id", "name"},
}}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baseQuery() Query {
	b := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select("users.*").
		From("users").
		Where(sq.Eq{"users.deleted_at": nil})
	return NewQuery("users", b)
}

func params(raw string) Params {
	v, err := url.ParseQuery(raw)
	if err != nil {
		panic(err)
	}
	return NewParams(v)
}

func toSQL(t *testing.T, q Query) (string, []any) {
	t.Helper()
	sql, args, err := q.Ordered().ToSql()
	require.NoError(t, err)
	return sql, args
}

func TestTruthy(t *testing.T) {
	for _, v := range []string{"", "0", "false", "FALSE", "off", "No", " no "} {
		assert.False(t, Truthy(v), "Truthy(%q)", v)
	}
	for _, v := range []string{"1", "true", "on", "yes", "anything"} {
		assert.True(t, Truthy(v), "Truthy(%q)", v)
	}
}

func TestParams_HasWithEmptyValue(t *testing.T) {
	p := params("verified=&active=1")
	assert.True(t, p.Has("verified"))
	assert.True(t, p.Has("active"))
	assert.False(t, p.Has("role"))
	assert.False(t, p.Bool("verified"))
}

func TestPipeline_SkipsAbsentStages(t *testing.T) {
	pipeline := UserStages(testSchema, discardLogger())
	q := baseQuery()

	out, err := pipeline.Apply(context.Background(), q, params("unrelated=1"))
	require.NoError(t, err)

	wantSQL, wantArgs := toSQL(t, q)
	gotSQL, gotArgs := toSQL(t, out)
	assert.Equal(t, wantSQL, gotSQL)
	assert.Equal(t, wantArgs, gotArgs)
	assert.Empty(t, out.Orders)
}

func TestPipeline_DoesNotMutateInput(t *testing.T) {
	pipeline := UserStages(testSchema, discardLogger())
	q := baseQuery()
	before, _ := toSQL(t, q)

	_, err := pipeline.Apply(context.Background(), q, params("sort=asc&sort_by=user_profile.last_name&active=1&role=3"))
	require.NoError(t, err)

	after, _ := toSQL(t, q)
	assert.Equal(t, before, after)
	assert.Empty(t, q.Orders)
}

func TestPipeline_StopsOnSchemaError(t *testing.T) {
	broken := fakeSchema{err: errors.New("schema source unreachable")}
	pipeline := UserStages(broken, discardLogger())

	_, err := pipeline.Apply(context.Background(), baseQuery(), params("sort=asc&sort_by=email"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestActiveStage(t *testing.T) {
	out, err := Active{}.Apply(context.Background(), baseQuery(), params("active=0"))
	require.NoError(t, err)

	sql, args := toSQL(t, out)
	assert.Contains(t, sql, "users.active = $1")
	assert.Equal(t, []any{false}, args)
}

func TestVerifiedStage(t *testing.T) {
	out, err := Verified{}.Apply(context.Background(), baseQuery(), params("verified=1"))
	require.NoError(t, err)
	sql, _ := toSQL(t, out)
	assert.Contains(t, sql, "users.email_verified_at IS NOT NULL")

	out, err = Verified{}.Apply(context.Background(), baseQuery(), params("verified="))
	require.NoError(t, err)
	sql, _ = toSQL(t, out)
	assert.Contains(t, sql, "users.email_verified_at IS NULL")
}

func TestEmailAndUsernameStagesLowercase(t *testing.T) {
	p := params("email=Alice@Example.COM&username=Alice")

	out, err := Pipeline{Email{}, Username{}}.Apply(context.Background(), baseQuery(), p)
	require.NoError(t, err)

	sql, args := toSQL(t, out)
	assert.Contains(t, sql, "users.email = $1")
	assert.Contains(t, sql, "users.username = $2")
	assert.Equal(t, []any{"alice@example.com", "alice"}, args)
}

func TestRoleStage(t *testing.T) {
	t.Run("by id", func(t *testing.T) {
		out, err := Role{}.Apply(context.Background(), baseQuery(), params("role=7"))
		require.NoError(t, err)

		sql, args := toSQL(t, out)
		assert.Contains(t, sql, "JOIN model_has_roles ON model_has_roles.model_id = users.id")
		assert.Contains(t, sql, "model_has_roles.role_id = $1")
		assert.Equal(t, []any{int64(7)}, args)
	})

	t.Run("by name", func(t *testing.T) {
		out, err := Role{}.Apply(context.Background(), baseQuery(), params("role=admin"))
		require.NoError(t, err)

		sql, args := toSQL(t, out)
		assert.Contains(t, sql, "JOIN roles ON roles.id = model_has_roles.role_id")
		assert.Contains(t, sql, "roles.name = $1")
		assert.Equal(t, []any{"admin"}, args)
	})

	t.Run("empty value is a no-op", func(t *testing.T) {
		q := baseQuery()
		out, err := Role{}.Apply(context.Background(), q, params("role="))
		require.NoError(t, err)

		want, _ := toSQL(t, q)
		got, _ := toSQL(t, out)
		assert.Equal(t, want, got)
	})
}

func TestSortStage(t *testing.T) {
	sort := NewSort(testSchema, discardLogger())

	tests := []struct {
		name      string
		query     string
		wantOrder []Order
		wantJoin  string
	}{
		{"invalid direction is a no-op", "sort=up&sort_by=email", nil, ""},
		{"direction is case sensitive", "sort=ASC", nil, ""},
		{"no sort_by orders by id", "sort=desc", []Order{{"users.id", Desc}}, ""},
		{"known column", "sort=asc&sort_by=email", []Order{{"users.email", Asc}}, ""},
		{"unknown column falls back", "sort=desc&sort_by=bogus_column", []Order{{"users.id", Desc}}, ""},
		{"nested sort joins relation", "sort=asc&sort_by=user_profile.last_name",
			[]Order{{"user_profiles.last_name", Asc}}, "JOIN user_profiles ON user_profiles.user_id = users.id"},
		{"plural relation accepted", "sort=asc&sort_by=user_profiles.first_name",
			[]Order{{"user_profiles.first_name", Asc}}, "JOIN user_profiles ON user_profiles.user_id = users.id"},
		{"missing relation table falls back", "sort=asc&sort_by=team.name", []Order{{"users.id", Asc}}, ""},
		{"relation without foreign key falls back", "sort=asc&sort_by=country.name", []Order{{"users.id", Asc}}, ""},
		{"unknown related field falls back after join", "sort=desc&sort_by=user_profile.nickname",
			[]Order{{"users.id", Desc}}, "JOIN user_profiles"},
		{"three parts fall back", "sort=asc&sort_by=user_profile.country.name", []Order{{"users.id", Asc}}, ""},
		{"empty relation falls back", "sort=asc&sort_by=.email", []Order{{"users.id", Asc}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := sort.Apply(context.Background(), baseQuery(), params(tt.query))
			require.NoError(t, err)

			assert.Equal(t, tt.wantOrder, out.Orders)

			sql, _ := toSQL(t, out)
			if tt.wantJoin != "" {
				assert.Contains(t, sql, tt.wantJoin)
			} else {
				assert.NotContains(t, sql, "JOIN")
			}
		})
	}
}

func TestUserSort_CredentialsAreNotSortable(t *testing.T) {
	sort := UserSort(testSchema, discardLogger())

	out, err := sort.Apply(context.Background(), baseQuery(), params("sort=asc&sort_by=password_hash"))
	require.NoError(t, err)
	assert.Equal(t, []Order{{"users.id", Asc}}, out.Orders)

	out, err = sort.Apply(context.Background(), baseQuery(), params("sort=asc&sort_by=username"))
	require.NoError(t, err)
	assert.Equal(t, []Order{{"users.username", Asc}}, out.Orders)

	// without hidden columns the same schema would allow it
	out, err = NewSort(testSchema, discardLogger()).Apply(context.Background(), baseQuery(), params("sort=asc&sort_by=password_hash"))
	require.NoError(t, err)
	assert.Equal(t, []Order{{"users.password_hash", Asc}}, out.Orders)
}

func TestSortFallbackMatchesEmptySortBy(t *testing.T) {
	sort := NewSort(testSchema, discardLogger())

	bogus, err := sort.Apply(context.Background(), baseQuery(), params("sort=desc&sort_by=bogus_column"))
	require.NoError(t, err)
	empty, err := sort.Apply(context.Background(), baseQuery(), params("sort=desc&sort_by="))
	require.NoError(t, err)

	a, _ := toSQL(t, bogus)
	b, _ := toSQL(t, empty)
	assert.Equal(t, a, b)
}

func TestQuery_OrderedAddsIDTiebreaker(t *testing.T) {
	q := baseQuery().OrderBy("user_profiles.last_name", Desc)
	sql, _ := toSQL(t, q)
	assert.Contains(t, sql, "ORDER BY user_profiles.last_name DESC, users.id DESC")

	q = baseQuery().OrderBy("users.id", Asc)
	sql, _ = toSQL(t, q)
	assert.Contains(t, sql, "ORDER BY users.id ASC")
	assert.NotContains(t, sql, "users.id ASC, users.id")
}

func TestQuery_JoinIsDeduplicated(t *testing.T) {
	q := baseQuery().
		Join("user_profiles", "user_profiles.user_id = users.id").
		Join("user_profiles", "user_profiles.user_id = users.id")

	sql, _ := toSQL(t, q)
	assert.Equal(t, 1, countOccurrences(sql, "JOIN user_profiles"))
}

func countOccurrences(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}
