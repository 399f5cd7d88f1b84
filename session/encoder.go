package session

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

const schemaVersion = 1

// ErrCorruptSession is returned when a stored value cannot be decoded.
var ErrCorruptSession = errors.New("session: corrupt ledger entry")

type wireSession struct {
	Version   int    `json:"v"`
	CreatedAt int64  `json:"c"`
	ExpiresAt int64  `json:"e"`
	IPAddress string `json:"ip,omitempty"`
	UserAgent string `json:"ua,omitempty"`
}

// Encode renders s as "<expiresAtMs>|<json>".
func Encode(s *Session) (string, error) {
	if s == nil || s.ExpiresAt.IsZero() {
		return "", errors.New("session: expiry required")
	}
	body, err := json.Marshal(wireSession{
		Version:   schemaVersion,
		CreatedAt: s.CreatedAt.UnixMilli(),
		ExpiresAt: s.ExpiresAt.UnixMilli(),
		IPAddress: s.IPAddress,
		UserAgent: s.UserAgent,
	})
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(s.ExpiresAt.UnixMilli(), 10) + "|" + string(body), nil
}

// Decode parses a ledger value. AccountID and TokenDigest are filled by the caller.
func Decode(value string) (*Session, error) {
	head, body, ok := strings.Cut(value, "|")
	if !ok {
		return nil, ErrCorruptSession
	}
	expMs, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return nil, ErrCorruptSession
	}

	var w wireSession
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return nil, ErrCorruptSession
	}
	if w.Version != schemaVersion || w.ExpiresAt != expMs {
		return nil, ErrCorruptSession
	}

	return &Session{
		CreatedAt: time.UnixMilli(w.CreatedAt),
		ExpiresAt: time.UnixMilli(w.ExpiresAt),
		IPAddress: w.IPAddress,
		UserAgent: w.UserAgent,
	}, nil
}
