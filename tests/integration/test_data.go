package integration

import (
	"fmt"
	"sync/atomic"
	"time"
)

// TestPassword satisfies the password policy
const TestPassword = "TestPassword123!"

var seq atomic.Int64

// TestUser generates unique test user credentials
func TestUser(suffix string) (email, username string) {
	n := seq.Add(1)
	ts := time.Now().Unix()
	email = fmt.Sprintf("test-%d-%d-%s@example.com", ts, n, suffix)
	username = fmt.Sprintf("user%d_%d_%s", ts, n, suffix)
	return
}

// RegisterBody builds a registration payload for email and username
func RegisterBody(email, username string) map[string]any {
	return map[string]any{
		"email":                 email,
		"username":              username,
		"password":              TestPassword,
		"password_confirmation": TestPassword,
		"first_name":            "Test",
		"last_name":             "User",
	}
}
