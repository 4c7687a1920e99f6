package pagination

import (
	"math"
	"net/url"
	"strconv"
)

// Limits bounds the per-page size taken from the limit parameter.
type Limits struct {
	Default int
	Max     int
}

var DefaultLimits = Limits{Default: 25, Max: 100}

// Request is the page a caller asked for. Path is the absolute URL of the
// endpoint without its query string.
type Request struct {
	Page    int
	PerPage int
	Cursor  string
	Path    string
}

// RequestFromURL reads limit, page and cursor from u. Invalid values fall
// back to the defaults. page is clamped so the offset and the rows after it
// stay representable.
func RequestFromURL(u *url.URL, limits Limits) Request {
	if limits.Default <= 0 {
		limits.Default = DefaultLimits.Default
	}
	if limits.Max <= 0 {
		limits.Max = DefaultLimits.Max
	}

	q := u.Query()

	perPage := limits.Default
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		perPage = n
	}
	if perPage > limits.Max {
		perPage = limits.Max
	}

	page := 1
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		page = n
	}
	if maxPage := math.MaxInt/perPage - 1; page > maxPage {
		page = maxPage
	}

	path := *u
	path.RawQuery = ""
	path.Fragment = ""

	return Request{
		Page:    page,
		PerPage: perPage,
		Cursor:  q.Get("cursor"),
		Path:    path.String(),
	}
}

func (r Request) offset() int {
	return (r.Page - 1) * r.PerPage
}
