package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/authcore"
)

// Accounts is an in-memory authcore.AccountStore.
type Accounts struct {
	mu      sync.RWMutex
	byID    map[string]*authcore.Account
	byEmail map[string]string
}

// NewAccounts returns an empty store.
func NewAccounts() *Accounts {
	return &Accounts{
		byID:    make(map[string]*authcore.Account),
		byEmail: make(map[string]string),
	}
}

func copyAccount(a *authcore.Account) *authcore.Account {
	c := *a
	c.BannedAt = copyTime(a.BannedAt)
	c.VerificationExpiresAt = copyTime(a.VerificationExpiresAt)
	c.ResetExpiresAt = copyTime(a.ResetExpiresAt)
	c.LastLoginAt = copyTime(a.LastLoginAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (s *Accounts) CreateAccount(ctx context.Context, a *authcore.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[a.Email]; ok {
		return authcore.ErrRecordConflict
	}
	if _, ok := s.byID[a.ID]; ok {
		return authcore.ErrRecordConflict
	}
	s.byID[a.ID] = copyAccount(a)
	s.byEmail[a.Email] = a.ID
	return nil
}

func (s *Accounts) GetAccountByID(ctx context.Context, id string) (*authcore.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, authcore.ErrRecordNotFound
	}
	return copyAccount(a), nil
}

func (s *Accounts) GetAccountByEmail(ctx context.Context, email string) (*authcore.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, authcore.ErrRecordNotFound
	}
	return copyAccount(s.byID[id]), nil
}

func (s *Accounts) GetAccountByVerificationDigest(ctx context.Context, digest string, now time.Time) (*authcore.Account, error) {
	return s.findByDigest(digest, now, func(a *authcore.Account) (string, *time.Time) {
		return a.VerificationDigest, a.VerificationExpiresAt
	})
}

func (s *Accounts) GetAccountByResetDigest(ctx context.Context, digest string, now time.Time) (*authcore.Account, error) {
	return s.findByDigest(digest, now, func(a *authcore.Account) (string, *time.Time) {
		return a.ResetDigest, a.ResetExpiresAt
	})
}

func (s *Accounts) findByDigest(digest string, now time.Time, field func(*authcore.Account) (string, *time.Time)) (*authcore.Account, error) {
	if digest == "" {
		return nil, authcore.ErrRecordNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.byID {
		d, exp := field(a)
		if d != digest {
			continue
		}
		if exp == nil || !now.Before(*exp) {
			return nil, authcore.ErrRecordNotFound
		}
		return copyAccount(a), nil
	}
	return nil, authcore.ErrRecordNotFound
}

func (s *Accounts) PatchAccount(ctx context.Context, id string, p authcore.AccountPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[id]
	if !ok {
		return authcore.ErrRecordNotFound
	}
	if p.ExpectResetDigest != "" && current.ResetDigest != p.ExpectResetDigest {
		return authcore.ErrRecordNotFound
	}
	if p.Email != nil && *p.Email != current.Email {
		if owner, taken := s.byEmail[*p.Email]; taken && owner != id {
			return authcore.ErrRecordConflict
		}
	}

	next := *current
	p.Apply(&next)
	if next.Email != current.Email {
		delete(s.byEmail, current.Email)
		s.byEmail[next.Email] = id
	}
	s.byID[id] = copyAccount(&next)
	return nil
}

func (s *Accounts) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return authcore.ErrRecordNotFound
	}
	a.LastLoginAt = &at
	return nil
}

func (s *Accounts) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return authcore.ErrRecordNotFound
	}
	delete(s.byEmail, a.Email)
	delete(s.byID, id)
	return nil
}

func (s *Accounts) ListAccounts(ctx context.Context, q authcore.AccountQuery) ([]authcore.Account, int, error) {
	s.mu.RLock()
	matched := make([]authcore.Account, 0, len(s.byID))
	search := strings.ToLower(q.Search)
	for _, a := range s.byID {
		if q.Role != "" && a.Role != q.Role {
			continue
		}
		if q.Active != nil && a.Active != *q.Active {
			continue
		}
		if q.Banned != nil && a.Banned != *q.Banned {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.Name), search) &&
			!strings.Contains(strings.ToLower(a.Email), search) {
			continue
		}
		matched = append(matched, *copyAccount(a))
	}
	s.mu.RUnlock()

	asc := q.SortOrder == "asc"
	sort.SliceStable(matched, func(i, j int) bool {
		c := compareAccounts(&matched[i], &matched[j], q.SortBy)
		if c == 0 {
			c = strings.Compare(matched[i].ID, matched[j].ID)
		}
		if asc {
			return c < 0
		}
		return c > 0
	})

	total := len(matched)
	return page(matched, q.Offset(), q.Limit), total, nil
}

func compareAccounts(a, b *authcore.Account, sortBy string) int {
	switch sortBy {
	case authcore.SortByName:
		return strings.Compare(a.Name, b.Name)
	case authcore.SortByEmail:
		return strings.Compare(a.Email, b.Email)
	case authcore.SortByLastLogin:
		return compareTimes(a.LastLoginAt, b.LastLoginAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

// compareTimes orders nil before any time.
func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func (s *Accounts) AccountStats(ctx context.Context) (authcore.AccountStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := authcore.AccountStats{UsersByRole: make(map[authcore.Role]int)}
	for _, a := range s.byID {
		stats.TotalUsers++
		if a.Active && !a.Banned {
			stats.ActiveUsers++
		}
		if a.Banned {
			stats.BannedUsers++
		}
		if a.EmailVerified {
			stats.VerifiedUsers++
		}
		stats.UsersByRole[a.Role]++
	}
	return stats, nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

var _ authcore.AccountStore = (*Accounts)(nil)
