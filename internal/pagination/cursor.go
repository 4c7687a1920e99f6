package pagination

import (
	"encoding/base64"
	"encoding/json"
)

// cursorToken is the decoded form of an opaque cursor: the id of the row
// at the page boundary and which way to read from it.
type cursorToken struct {
	ID   int64 `json:"id"`
	Next bool  `json:"next"`
}

func encodeCursor(c cursorToken) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// decodeCursor returns nil for an empty or malformed cursor, which reads
// the first page.
func decodeCursor(s string) *cursorToken {
	if s == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil
	}
	var c cursorToken
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil
	}
	return &c
}
