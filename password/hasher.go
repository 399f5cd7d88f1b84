package password

import "errors"

var (
	// ErrUnsupportedDigest is returned when no configured algorithm recognises a digest.
	ErrUnsupportedDigest = errors.New("password: unsupported digest format")
	// ErrPasswordTooLong is returned for inputs above the hasher's byte limit.
	ErrPasswordTooLong = errors.New("password: input exceeds maximum length")
	// ErrEmptyPassword is returned when hashing an empty string.
	ErrEmptyPassword = errors.New("password: empty input")
)

// Hasher produces and checks password digests.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) (bool, error)
}

// Upgrader is implemented by hashers that can tell when a stored digest was
// produced with outdated parameters.
type Upgrader interface {
	NeedsUpgrade(digest string) (bool, error)
}

type recognizer interface {
	Recognizes(digest string) bool
}

// Chain hashes with Primary and verifies with whichever member recognises the digest.
type Chain struct {
	Primary Hasher
	Legacy  []Hasher
}

// NewChain returns a Chain that hashes with primary.
func NewChain(primary Hasher, legacy ...Hasher) *Chain {
	return &Chain{Primary: primary, Legacy: legacy}
}

// Hash delegates to the primary hasher.
func (c *Chain) Hash(plain string) (string, error) {
	return c.Primary.Hash(plain)
}

// Verify checks plain against digest using the first member that recognises it.
func (c *Chain) Verify(plain, digest string) (bool, error) {
	h := c.pick(digest)
	if h == nil {
		return false, ErrUnsupportedDigest
	}
	return h.Verify(plain, digest)
}

// NeedsUpgrade reports true for digests produced by a legacy member or by the
// primary with weaker parameters.
func (c *Chain) NeedsUpgrade(digest string) (bool, error) {
	h := c.pick(digest)
	if h == nil {
		return false, ErrUnsupportedDigest
	}
	if h != c.Primary {
		return true, nil
	}
	if u, ok := h.(Upgrader); ok {
		return u.NeedsUpgrade(digest)
	}
	return false, nil
}

func (c *Chain) pick(digest string) Hasher {
	members := append([]Hasher{c.Primary}, c.Legacy...)
	for _, h := range members {
		if r, ok := h.(recognizer); ok && r.Recognizes(digest) {
			return h
		}
	}
	return nil
}
