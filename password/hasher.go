package password

import (
	"errors"
	"fmt"
	"strings"
)

// Algorithm names a supported hash algorithm.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// ErrMalformedHash is returned when an encoded hash cannot be parsed.
var ErrMalformedHash = errors.New("malformed password hash")

// Config selects the algorithm used for new hashes.
type Config struct {
	Algorithm  Algorithm
	BcryptCost int
	Argon2     Argon2Params
}

// DefaultConfig hashes with bcrypt at the library default cost.
func DefaultConfig() Config {
	return Config{
		Algorithm:  AlgorithmBcrypt,
		BcryptCost: DefaultBcryptCost,
		Argon2:     DefaultArgon2Params(),
	}
}

// Hasher produces hashes with the configured algorithm and verifies hashes
// produced by either algorithm. It is safe for concurrent use.
type Hasher struct {
	algorithm Algorithm
	bcrypt    *Bcrypt
	argon2    *Argon2
}

// New validates cfg and returns a hasher.
func New(cfg Config) (*Hasher, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmBcrypt
	}
	if cfg.Algorithm != AlgorithmBcrypt && cfg.Algorithm != AlgorithmArgon2id {
		return nil, fmt.Errorf("unsupported password algorithm %q", cfg.Algorithm)
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultBcryptCost
	}
	if cfg.Argon2 == (Argon2Params{}) {
		cfg.Argon2 = DefaultArgon2Params()
	}

	b, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	a, err := NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, err
	}
	return &Hasher{algorithm: cfg.Algorithm, bcrypt: b, argon2: a}, nil
}

// Hash returns the encoded hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	if h.algorithm == AlgorithmArgon2id {
		return h.argon2.Hash(password)
	}
	return h.bcrypt.Hash(password)
}

// Verify reports whether password matches encoded. A mismatch is (false, nil);
// an unparseable hash is (false, ErrMalformedHash).
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	switch {
	case isArgon2(encoded):
		return h.argon2.Verify(password, encoded)
	case isBcrypt(encoded):
		return h.bcrypt.Verify(password, encoded)
	}
	return false, ErrMalformedHash
}

// NeedsRehash reports whether encoded was produced by another algorithm or
// with weaker parameters than the configured ones.
func (h *Hasher) NeedsRehash(encoded string) bool {
	switch h.algorithm {
	case AlgorithmArgon2id:
		if !isArgon2(encoded) {
			return true
		}
		upgrade, err := h.argon2.NeedsUpgrade(encoded)
		return err != nil || upgrade
	default:
		if !isBcrypt(encoded) {
			return true
		}
		return h.bcrypt.NeedsUpgrade(encoded)
	}
}

func isArgon2(encoded string) bool {
	return strings.HasPrefix(encoded, "$"+string(AlgorithmArgon2id)+"$")
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") || strings.HasPrefix(encoded, "$2b$") || strings.HasPrefix(encoded, "$2y$")
}
