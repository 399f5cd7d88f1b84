package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/authcore"
)

// APIKeys is an in-memory authcore.APIKeyStore.
type APIKeys struct {
	mu       sync.RWMutex
	byID     map[string]*authcore.APIKey
	byDigest map[string]string
}

// NewAPIKeys returns an empty store.
func NewAPIKeys() *APIKeys {
	return &APIKeys{
		byID:     make(map[string]*authcore.APIKey),
		byDigest: make(map[string]string),
	}
}

func copyKey(k *authcore.APIKey) *authcore.APIKey {
	c := *k
	c.Permissions = append([]string(nil), k.Permissions...)
	c.AllowedIPs = append([]string(nil), k.AllowedIPs...)
	c.AllowedDomains = append([]string(nil), k.AllowedDomains...)
	c.LastUsedAt = copyTime(k.LastUsedAt)
	c.ExpiresAt = copyTime(k.ExpiresAt)
	return &c
}

func (s *APIKeys) CreateAPIKey(ctx context.Context, k *authcore.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[k.ID]; ok {
		return authcore.ErrRecordConflict
	}
	if _, ok := s.byDigest[k.Digest]; ok {
		return authcore.ErrRecordConflict
	}
	s.byID[k.ID] = copyKey(k)
	s.byDigest[k.Digest] = k.ID
	return nil
}

func (s *APIKeys) GetAPIKeyByDigest(ctx context.Context, digest string) (*authcore.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byDigest[digest]
	if !ok {
		return nil, authcore.ErrRecordNotFound
	}
	return copyKey(s.byID[id]), nil
}

func (s *APIKeys) GetAPIKey(ctx context.Context, id, accountID string) (*authcore.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.byID[id]
	if !ok || k.AccountID != accountID {
		return nil, authcore.ErrRecordNotFound
	}
	return copyKey(k), nil
}

func (s *APIKeys) ListAPIKeys(ctx context.Context, accountID string) ([]authcore.APIKey, error) {
	s.mu.RLock()
	out := make([]authcore.APIKey, 0)
	for _, k := range s.byID {
		if k.AccountID == accountID {
			out = append(out, *copyKey(k))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateAPIKey replaces the mutable fields of k. Usage counters and the
// digest are kept from the stored record.
func (s *APIKeys) UpdateAPIKey(ctx context.Context, k *authcore.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[k.ID]
	if !ok || current.AccountID != k.AccountID {
		return authcore.ErrRecordNotFound
	}
	next := copyKey(k)
	next.Digest = current.Digest
	next.Active = current.Active
	next.UsageCount = current.UsageCount
	next.LastUsedAt = current.LastUsedAt
	s.byID[k.ID] = next
	return nil
}

func (s *APIKeys) RevokeAPIKey(ctx context.Context, id, accountID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[id]
	if !ok || current.AccountID != accountID {
		return authcore.ErrRecordNotFound
	}
	current.Active = false
	current.UpdatedAt = at
	return nil
}

func (s *APIKeys) DeleteAPIKey(ctx context.Context, id, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.byID[id]
	if !ok || k.AccountID != accountID {
		return authcore.ErrRecordNotFound
	}
	delete(s.byDigest, k.Digest)
	delete(s.byID, id)
	return nil
}

func (s *APIKeys) DeleteAPIKeysForAccount(ctx context.Context, accountID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, k := range s.byID {
		if k.AccountID == accountID {
			delete(s.byDigest, k.Digest)
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

func (s *APIKeys) RecordAPIKeyUsage(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.byID[id]
	if !ok {
		return authcore.ErrRecordNotFound
	}
	k.UsageCount++
	k.LastUsedAt = &at
	return nil
}

func (s *APIKeys) APIKeyStats(ctx context.Context, accountID string) (authcore.APIKeyStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats authcore.APIKeyStats
	for _, k := range s.byID {
		if k.AccountID != accountID {
			continue
		}
		stats.TotalKeys++
		if k.Active {
			stats.ActiveKeys++
		}
		stats.TotalUsage += k.UsageCount
	}
	return stats, nil
}

var _ authcore.APIKeyStore = (*APIKeys)(nil)
