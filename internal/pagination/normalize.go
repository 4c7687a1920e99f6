package pagination

import (
	"fmt"
	"net/url"
)

// Normalize maps a raw paginator result onto the response envelope. Every
// non-nil URL carries the request query forward, minus the page (or
// cursor) parameter, so filters and sorts survive navigation.
func Normalize[T any](v Variant, raw Result[T], query url.Values) (Page[T], error) {
	switch r := raw.(type) {
	case *LengthAwareResult[T]:
		if v != LengthAware {
			break
		}
		return Page[T]{
			Data: nonNil(r.Data),
			Pagination: LengthAwareMeta{
				CurrentPage:  r.CurrentPage,
				FirstPageURL: withQuery(r.FirstPageURL, query, "page"),
				From:         r.From,
				LastPage:     r.LastPage,
				LastPageURL:  withQuery(r.LastPageURL, query, "page"),
				NextPageURL:  withQuery(r.NextPageURL, query, "page"),
				Path:         r.Path,
				PerPage:      r.PerPage,
				PrevPageURL:  withQuery(r.PrevPageURL, query, "page"),
				To:           r.To,
				Total:        r.Total,
			},
		}, nil

	case *SimpleResult[T]:
		if v != Simple {
			break
		}
		return Page[T]{
			Data: nonNil(r.Data),
			Pagination: SimpleMeta{
				CurrentPage:  r.CurrentPage,
				FirstPageURL: withQuery(r.FirstPageURL, query, "page"),
				From:         r.From,
				NextPageURL:  withQuery(r.NextPageURL, query, "page"),
				Path:         r.Path,
				PerPage:      r.PerPage,
				PrevPageURL:  withQuery(r.PrevPageURL, query, "page"),
				To:           r.To,
			},
		}, nil

	case *CursorResult[T]:
		if v != Cursor {
			break
		}
		return Page[T]{
			Data: nonNil(r.Data),
			Pagination: CursorMeta{
				Path:        r.Path,
				PerPage:     r.PerPage,
				NextCursor:  r.NextCursor,
				NextPageURL: withQuery(r.NextPageURL, query, "cursor"),
				PrevCursor:  r.PrevCursor,
				PrevPageURL: withQuery(r.PrevPageURL, query, "cursor"),
			},
		}, nil
	}

	return Page[T]{}, fmt.Errorf("%w: %q with %T", ErrUnsupportedPaginator, v, raw)
}

func withQuery(u *string, query url.Values, drop string) *string {
	if u == nil {
		return nil
	}

	rest := url.Values{}
	for k, vs := range query {
		if k != drop {
			rest[k] = vs
		}
	}

	encoded := rest.Encode()
	if encoded == "" {
		return u
	}
	s := *u + "&" + encoded
	return &s
}

func nonNil[T any](data []T) []T {
	if data == nil {
		return []T{}
	}
	return data
}
