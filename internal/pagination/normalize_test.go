package pagination

import (
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNormalize_LengthAwarePreservesQuery(t *testing.T) {
	raw := &LengthAwareResult[int]{
		Data:         []int{1, 2},
		CurrentPage:  2,
		LastPage:     3,
		FirstPageURL: strPtr("http://api.test/api/v1/users?page=1"),
		NextPageURL:  strPtr("http://api.test/api/v1/users?page=3"),
		PrevPageURL:  strPtr("http://api.test/api/v1/users?page=1"),
		LastPageURL:  strPtr("http://api.test/api/v1/users?page=3"),
		PerPage:      2,
		Total:        6,
		Path:         "http://api.test/api/v1/users",
	}
	query := url.Values{"active": {"1"}, "sort": {"asc"}, "page": {"2"}}

	page, err := Normalize[int](LengthAware, raw, query)
	require.NoError(t, err)

	meta, ok := page.Pagination.(LengthAwareMeta)
	require.True(t, ok)
	assert.Equal(t, "http://api.test/api/v1/users?page=3&active=1&sort=asc", *meta.NextPageURL)
	assert.NotContains(t, *meta.NextPageURL, "page=2")
	assert.Equal(t, "http://api.test/api/v1/users?page=1&active=1&sort=asc", *meta.PrevPageURL)
	assert.Equal(t, []int{1, 2}, page.Data)
	assert.Equal(t, int64(6), meta.Total)
}

func TestNormalize_NilURLsStayNil(t *testing.T) {
	raw := &LengthAwareResult[int]{
		Data:         []int{},
		CurrentPage:  1,
		LastPage:     1,
		FirstPageURL: strPtr("/users?page=1"),
		LastPageURL:  strPtr("/users?page=1"),
		PerPage:      25,
	}

	page, err := Normalize[int](LengthAware, raw, url.Values{"active": {"1"}})
	require.NoError(t, err)

	meta := page.Pagination.(LengthAwareMeta)
	assert.Nil(t, meta.PrevPageURL)
	assert.Nil(t, meta.NextPageURL)
	assert.Equal(t, "/users?page=1&active=1", *meta.FirstPageURL)
}

func TestNormalize_NothingAppendedWithoutOtherParams(t *testing.T) {
	raw := &SimpleResult[int]{
		CurrentPage:  2,
		FirstPageURL: strPtr("/users?page=1"),
		PrevPageURL:  strPtr("/users?page=1"),
		PerPage:      10,
	}

	page, err := Normalize[int](Simple, raw, url.Values{"page": {"2"}})
	require.NoError(t, err)

	meta := page.Pagination.(SimpleMeta)
	assert.Equal(t, "/users?page=1", *meta.PrevPageURL)
	assert.Nil(t, meta.NextPageURL)
	assert.NotNil(t, page.Data)
}

func TestNormalize_CursorDropsCursorParam(t *testing.T) {
	raw := &CursorResult[int]{
		Data:        []int{3},
		NextCursor:  strPtr("abc"),
		NextPageURL: strPtr("/users?cursor=abc"),
		PerPage:     1,
		Path:        "/users",
	}
	query := url.Values{"cursor": {"old"}, "page": {"4"}, "role": {"2"}}

	page, err := Normalize[int](Cursor, raw, query)
	require.NoError(t, err)

	meta := page.Pagination.(CursorMeta)
	assert.Equal(t, "/users?cursor=abc&page=4&role=2", *meta.NextPageURL)
	assert.Equal(t, "abc", *meta.NextCursor)
	assert.Nil(t, meta.PrevPageURL)
	assert.Nil(t, meta.PrevCursor)
}

func TestNormalize_MismatchedVariant(t *testing.T) {
	raw := &SimpleResult[int]{}

	_, err := Normalize[int](LengthAware, raw, nil)
	assert.True(t, errors.Is(err, ErrUnsupportedPaginator))

	_, err = Normalize[int](Variant("offset"), raw, nil)
	assert.True(t, errors.Is(err, ErrUnsupportedPaginator))

	_, err = Normalize[int](Cursor, nil, nil)
	assert.True(t, errors.Is(err, ErrUnsupportedPaginator))
}

func TestNormalize_JSONShape(t *testing.T) {
	raw := &LengthAwareResult[string]{
		Data:         []string{"a"},
		CurrentPage:  1,
		LastPage:     1,
		FirstPageURL: strPtr("/u?page=1"),
		LastPageURL:  strPtr("/u?page=1"),
		PerPage:      25,
		Total:        1,
		Path:         "/u",
	}
	page, err := Normalize[string](LengthAware, raw, nil)
	require.NoError(t, err)

	out, err := json.Marshal(page)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Len(t, decoded, 2)

	meta := decoded["pagination"].(map[string]any)
	for _, key := range []string{"current_page", "last_page", "first_page_url", "next_page_url",
		"prev_page_url", "last_page_url", "from", "to", "per_page", "total", "path"} {
		assert.Contains(t, meta, key)
	}
	assert.Nil(t, meta["next_page_url"])
}

func TestParseVariant(t *testing.T) {
	for in, want := range map[string]Variant{
		"length_aware": LengthAware,
		"Simple":       Simple,
		" cursor ":     Cursor,
	} {
		got, err := ParseVariant(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseVariant("offset")
	assert.ErrorIs(t, err, ErrUnsupportedPaginator)
}
