package schema

import (
	"fmt"
	"os"
	"strconv"
)

// Fingerprinter yields the key component that invalidates every cached
// schema entry when the schema changes.
type Fingerprinter interface {
	Fingerprint() (string, error)
}

// DirFingerprint uses the modification time of the migrations directory.
// Adding, removing or renaming a migration file bumps it.
type DirFingerprint struct {
	Dir string
}

func (f DirFingerprint) Fingerprint() (string, error) {
	info, err := os.Stat(f.Dir)
	if err != nil {
		return "", fmt.Errorf("stat migrations dir: %w", err)
	}
	return strconv.FormatInt(info.ModTime().UnixNano(), 10), nil
}

// StaticFingerprint never changes.
type StaticFingerprint string

func (f StaticFingerprint) Fingerprint() (string, error) {
	return string(f), nil
}
