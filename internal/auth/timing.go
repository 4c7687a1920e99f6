package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for timing attack prevention
type TimingConfig struct {
	BaseDelay   time.Duration
	RandomDelay time.Duration
}

// DefaultTimingConfig pads failed logins and password reset requests
var DefaultTimingConfig = TimingConfig{
	BaseDelay:   250 * time.Millisecond,
	RandomDelay: 100 * time.Millisecond,
}

// TimingDelay pads an operation to a target duration so that "unknown
// email" and "wrong password" cannot be told apart by response time.
type TimingDelay struct {
	config TimingConfig
}

func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

// WaitFrom sleeps until at least base + jitter has elapsed since start.
func (td *TimingDelay) WaitFrom(start time.Time) {
	if td == nil {
		return
	}

	target := td.config.BaseDelay + jitter(td.config.RandomDelay)
	if elapsed := time.Since(start); elapsed < target {
		time.Sleep(target - elapsed)
	}
}

// jitter uses crypto/rand so the padding cannot be predicted
func jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(b) % uint64(max))
}
