package session

import "time"

// Session is one device's refresh-token record.
type Session struct {
	TokenDigest string
	AccountID   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	IPAddress   string
	UserAgent   string
}

// Expired reports whether s is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
