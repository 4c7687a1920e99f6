// Package pagination runs filtered queries page by page and shapes the
// results into the {data, pagination} envelope returned by list endpoints.
package pagination

import (
	"errors"
	"fmt"
	"strings"
)

// Variant selects the pagination strategy.
type Variant string

const (
	LengthAware Variant = "length_aware"
	Simple      Variant = "simple"
	Cursor      Variant = "cursor"
)

// ErrUnsupportedPaginator is returned for an unknown variant or a result
// that does not belong to the requested variant.
var ErrUnsupportedPaginator = errors.New("unsupported paginator")

func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case LengthAware, Simple, Cursor:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedPaginator, s)
}

func (v Variant) String() string {
	return string(v)
}
