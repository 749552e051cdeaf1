package password

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = bcrypt.DefaultCost

// bcryptMaxInput is the number of input bytes bcrypt actually consumes.
const bcryptMaxInput = 72

// Bcrypt hashes with golang.org/x/crypto/bcrypt.
type Bcrypt struct {
	cost int
}

func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be in [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

func (b *Bcrypt) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (b *Bcrypt) Verify(password, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), bcryptInput(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// NeedsUpgrade reports whether encoded used a lower cost than configured.
func (b *Bcrypt) NeedsUpgrade(encoded string) bool {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return true
	}
	return cost < b.cost
}

// preHashMarker starts every pre-hashed bcrypt input. Passwords that
// themselves start with it are pre-hashed too, so a raw password can never
// equal the pre-hashed form of another one.
const preHashMarker = 0x00

// bcryptInput maps passwords longer than bcrypt's 72-byte input limit onto a
// marked SHA-256 digest, so long inputs are accepted and two passwords
// sharing only a 72-byte prefix never verify against each other.
func bcryptInput(password string) []byte {
	if len(password) <= bcryptMaxInput && (password == "" || password[0] != preHashMarker) {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	out := make([]byte, 1+base64.StdEncoding.EncodedLen(len(sum)))
	out[0] = preHashMarker
	base64.StdEncoding.Encode(out[1:], sum[:])
	return out
}
