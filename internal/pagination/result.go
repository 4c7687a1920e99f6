package pagination

// Result is the raw output of a paginator. It is implemented only by the
// three result types of this package.
type Result[T any] interface {
	variant() Variant
	Items() []T
}

type LengthAwareResult[T any] struct {
	Data         []T
	CurrentPage  int
	LastPage     int
	FirstPageURL *string
	NextPageURL  *string
	PrevPageURL  *string
	LastPageURL  *string
	From         *int
	To           *int
	PerPage      int
	Total        int64
	Path         string
}

func (*LengthAwareResult[T]) variant() Variant { return LengthAware }
func (r *LengthAwareResult[T]) Items() []T      { return r.Data }

type SimpleResult[T any] struct {
	Data         []T
	CurrentPage  int
	FirstPageURL *string
	NextPageURL  *string
	PrevPageURL  *string
	From         *int
	To           *int
	PerPage      int
	Path         string
}

func (*SimpleResult[T]) variant() Variant { return Simple }
func (r *SimpleResult[T]) Items() []T      { return r.Data }

type CursorResult[T any] struct {
	Data        []T
	NextCursor  *string
	PrevCursor  *string
	NextPageURL *string
	PrevPageURL *string
	PerPage     int
	Path        string
}

func (*CursorResult[T]) variant() Variant { return Cursor }
func (r *CursorResult[T]) Items() []T      { return r.Data }

// Page is the normalized envelope.
type Page[T any] struct {
	Data       []T `json:"data"`
	Pagination any `json:"pagination"`
}

type LengthAwareMeta struct {
	CurrentPage  int     `json:"current_page"`
	FirstPageURL *string `json:"first_page_url"`
	From         *int    `json:"from"`
	LastPage     int     `json:"last_page"`
	LastPageURL  *string `json:"last_page_url"`
	NextPageURL  *string `json:"next_page_url"`
	Path         string  `json:"path"`
	PerPage      int     `json:"per_page"`
	PrevPageURL  *string `json:"prev_page_url"`
	To           *int    `json:"to"`
	Total        int64   `json:"total"`
}

type SimpleMeta struct {
	CurrentPage  int     `json:"current_page"`
	FirstPageURL *string `json:"first_page_url"`
	From         *int    `json:"from"`
	NextPageURL  *string `json:"next_page_url"`
	Path         string  `json:"path"`
	PerPage      int     `json:"per_page"`
	PrevPageURL  *string `json:"prev_page_url"`
	To           *int    `json:"to"`
}

type CursorMeta struct {
	Path        string  `json:"path"`
	PerPage     int     `json:"per_page"`
	NextCursor  *string `json:"next_cursor"`
	NextPageURL *string `json:"next_page_url"`
	PrevCursor  *string `json:"prev_cursor"`
	PrevPageURL *string `json:"prev_page_url"`
}
