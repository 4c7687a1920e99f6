package pagination

import (
	"math"
	"net/url"
	"strconv"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/roster/internal/filters"
)

func identity(v int) int64 { return int64(v) }

func seq(from, to int) []int {
	out := []int{}
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func testQuery() filters.Query {
	return filters.NewQuery("users", sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select("users.*").
		From("users").
		Where(sq.Eq{"users.deleted_at": nil}).
		Where(sq.Eq{"users.active": true}))
}

func TestRequestFromURL(t *testing.T) {
	u, _ := url.Parse("http://api.test/api/v1/users?limit=500&page=3&active=1")
	req := RequestFromURL(u, DefaultLimits)
	assert.Equal(t, 100, req.PerPage)
	assert.Equal(t, 3, req.Page)
	assert.Equal(t, "http://api.test/api/v1/users", req.Path)

	u, _ = url.Parse("/api/v1/users?limit=abc&page=-2&cursor=xyz")
	req = RequestFromURL(u, Limits{})
	assert.Equal(t, 25, req.PerPage)
	assert.Equal(t, 1, req.Page)
	assert.Equal(t, "xyz", req.Cursor)
}

func TestRequestFromURL_HugePageStaysInRange(t *testing.T) {
	for _, page := range []string{"400000000000000000", strconv.Itoa(math.MaxInt)} {
		t.Run(page, func(t *testing.T) {
			u, _ := url.Parse("http://api.test/api/v1/users?limit=25&page=" + page)
			req := RequestFromURL(u, DefaultLimits)

			require.Greater(t, req.offset(), 0)
			assert.LessOrEqual(t, req.offset(), math.MaxInt-2*req.PerPage)

			sql, _, err := testQuery().Ordered().
				Limit(uint64(req.PerPage)).
				Offset(uint64(req.offset())).
				ToSql()
			require.NoError(t, err)
			assert.Contains(t, sql, "OFFSET "+strconv.Itoa(req.offset()))

			from, to := bounds(req, 25)
			require.NotNil(t, from)
			assert.Greater(t, *from, 0)
			assert.GreaterOrEqual(t, *to, *from)
		})
	}
}

func TestBuildLengthAware(t *testing.T) {
	req := Request{Page: 2, PerPage: 10, Path: "/users"}
	r := buildLengthAware(seq(11, 20), 25, req)

	assert.Equal(t, 3, r.LastPage)
	assert.Equal(t, "/users?page=3", *r.NextPageURL)
	assert.Equal(t, "/users?page=1", *r.PrevPageURL)
	assert.Equal(t, "/users?page=3", *r.LastPageURL)
	assert.Equal(t, 11, *r.From)
	assert.Equal(t, 20, *r.To)

	empty := buildLengthAware([]int{}, 0, Request{Page: 1, PerPage: 10, Path: "/users"})
	assert.Equal(t, 1, empty.LastPage)
	assert.Nil(t, empty.NextPageURL)
	assert.Nil(t, empty.PrevPageURL)
	assert.Nil(t, empty.From)
	assert.Nil(t, empty.To)
}

func TestBuildSimple(t *testing.T) {
	req := Request{Page: 1, PerPage: 3, Path: "/users"}

	r := buildSimple(seq(1, 4), req)
	assert.Equal(t, []int{1, 2, 3}, r.Data)
	assert.Equal(t, "/users?page=2", *r.NextPageURL)
	assert.Nil(t, r.PrevPageURL)

	r = buildSimple(seq(1, 3), req)
	assert.Nil(t, r.NextPageURL)
}

func TestBuildCursor(t *testing.T) {
	req := Request{PerPage: 2, Path: "/users"}

	t.Run("first page", func(t *testing.T) {
		r := buildCursor(seq(1, 3), nil, req, identity)
		assert.Equal(t, []int{1, 2}, r.Data)
		assert.Nil(t, r.PrevCursor)
		require.NotNil(t, r.NextCursor)
		assert.Equal(t, &cursorToken{ID: 2, Next: true}, decodeCursor(*r.NextCursor))
		assert.Equal(t, "/users?cursor="+*r.NextCursor, *r.NextPageURL)
	})

	t.Run("last page going forward", func(t *testing.T) {
		r := buildCursor([]int{5}, &cursorToken{ID: 4, Next: true}, req, identity)
		assert.Nil(t, r.NextCursor)
		require.NotNil(t, r.PrevCursor)
		assert.Equal(t, &cursorToken{ID: 5, Next: false}, decodeCursor(*r.PrevCursor))
	})

	t.Run("going backward reverses rows", func(t *testing.T) {
		// Read order for a backward page is closest first
		r := buildCursor([]int{4, 3, 2}, &cursorToken{ID: 5, Next: false}, req, identity)
		assert.Equal(t, []int{3, 4}, r.Data)
		require.NotNil(t, r.NextCursor)
		require.NotNil(t, r.PrevCursor)
		assert.Equal(t, int64(4), decodeCursor(*r.NextCursor).ID)
		assert.Equal(t, int64(3), decodeCursor(*r.PrevCursor).ID)
	})

	t.Run("backward to the start", func(t *testing.T) {
		r := buildCursor([]int{2, 1}, &cursorToken{ID: 3, Next: false}, req, identity)
		assert.Equal(t, []int{1, 2}, r.Data)
		assert.Nil(t, r.PrevCursor)
		assert.NotNil(t, r.NextCursor)
	})

	t.Run("empty", func(t *testing.T) {
		r := buildCursor([]int{}, &cursorToken{ID: 9, Next: true}, req, identity)
		assert.Nil(t, r.NextCursor)
		assert.Nil(t, r.PrevCursor)
	})
}

func TestDecodeCursor_Malformed(t *testing.T) {
	assert.Nil(t, decodeCursor(""))
	assert.Nil(t, decodeCursor("%%%"))
	assert.Nil(t, decodeCursor("bm90LWpzb24"))

	c := encodeCursor(cursorToken{ID: 42, Next: true})
	assert.Equal(t, &cursorToken{ID: 42, Next: true}, decodeCursor(c))
}

func TestCountQuery_IgnoresOrdering(t *testing.T) {
	q := testQuery().OrderBy("users.email", filters.Desc)

	sql, args, err := countQuery(q).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM (SELECT users.* FROM users WHERE users.deleted_at IS NULL AND users.active = $1) AS aggregate", sql)
	assert.Equal(t, []any{true}, args)
	assert.NotContains(t, sql, "ORDER BY")
}

func TestCursorQuery(t *testing.T) {
	tests := []struct {
		name    string
		dir     filters.Direction
		cur     *cursorToken
		wantCmp string
		wantOrd string
	}{
		{"first page asc", filters.Asc, nil, "", "ORDER BY users.id ASC"},
		{"next asc", filters.Asc, &cursorToken{ID: 10, Next: true}, "users.id > $2", "ORDER BY users.id ASC"},
		{"prev asc", filters.Asc, &cursorToken{ID: 10, Next: false}, "users.id < $2", "ORDER BY users.id DESC"},
		{"next desc", filters.Desc, &cursorToken{ID: 10, Next: true}, "users.id < $2", "ORDER BY users.id DESC"},
		{"prev desc", filters.Desc, &cursorToken{ID: 10, Next: false}, "users.id > $2", "ORDER BY users.id ASC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := testQuery().OrderBy("users.email", tt.dir)
			sql, _, err := cursorQuery(q, tt.cur, 5).ToSql()
			require.NoError(t, err)

			if tt.wantCmp != "" {
				assert.Contains(t, sql, tt.wantCmp)
			}
			assert.Contains(t, sql, tt.wantOrd)
			assert.NotContains(t, sql, "users.email")
			assert.Contains(t, sql, "LIMIT 6")
		})
	}
}
