package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	argon2Prefix          = "$argon2id$"
	defaultMaxPass        = 1024
)

// Argon2Config tunes the Argon2id cost parameters.
type Argon2Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

// DefaultArgon2Config returns OWASP-recommended parameters.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:           64 * 1024,
		Time:             3,
		Parallelism:      2,
		SaltLength:       16,
		KeyLength:        32,
		MaxPasswordBytes: defaultMaxPass,
	}
}

// Argon2 is an Argon2id Hasher emitting PHC strings.
type Argon2 struct {
	config Argon2Config
}

// NewArgon2 validates cfg and returns an Argon2 hasher.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("password: argon2 memory must be >= 8192 KB")
	case cfg.Time < 1:
		return nil, errors.New("password: argon2 time must be >= 1")
	case cfg.Parallelism < 1:
		return nil, errors.New("password: argon2 parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("password: argon2 salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("password: argon2 key length must be >= 16")
	}
	if cfg.MaxPasswordBytes <= 0 {
		cfg.MaxPasswordBytes = defaultMaxPass
	}
	return &Argon2{config: cfg}, nil
}

// Recognizes reports whether digest is an argon2id PHC string.
func (a *Argon2) Recognizes(digest string) bool {
	return strings.HasPrefix(digest, argon2Prefix)
}

// Hash derives a fresh salted digest for plain.
func (a *Argon2) Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	if len(plain) > a.config.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plain), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix, argon2.Version,
		a.config.Memory, a.config.Time, a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the digest with the stored parameters and compares in constant time.
func (a *Argon2) Verify(plain, digest string) (bool, error) {
	if len(plain) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	p, err := parseArgon2(digest)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(plain), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(key, p.key) == 1, nil
}

// NeedsUpgrade reports whether digest was produced with weaker parameters than configured.
func (a *Argon2) NeedsUpgrade(digest string) (bool, error) {
	p, err := parseArgon2(digest)
	if err != nil {
		return false, err
	}
	return p.memory < a.config.Memory ||
		p.time < a.config.Time ||
		p.parallelism < a.config.Parallelism ||
		uint32(len(p.key)) != a.config.KeyLength, nil
}

type argon2Params struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parseArgon2(digest string) (*argon2Params, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, ErrUnsupportedDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, errors.New("password: unsupported argon2 version")
	}

	var p argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.parallelism); err != nil {
		return nil, errors.New("password: invalid argon2 parameters")
	}
	if p.memory < minMemoryKB || p.time < 1 || p.parallelism < 1 {
		return nil, errors.New("password: invalid argon2 parameters")
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.Strict().DecodeString(parts[4]); err != nil || uint32(len(p.salt)) < minSaltLength {
		return nil, errors.New("password: invalid argon2 salt")
	}
	if p.key, err = base64.RawStdEncoding.Strict().DecodeString(parts[5]); err != nil || len(p.key) == 0 {
		return nil, errors.New("password: invalid argon2 hash")
	}
	return &p, nil
}
