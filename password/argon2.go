package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params follows the RFC 9106 second recommended option.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2 hashes with argon2id and encodes results in PHC string format.
type Argon2 struct {
	params Argon2Params
}

func NewArgon2(p Argon2Params) (*Argon2, error) {
	switch {
	case p.Memory < minMemoryKB:
		return nil, errors.New("argon2 memory too low")
	case p.Time < minTimeCost:
		return nil, errors.New("argon2 time cost too low")
	case p.Parallelism < minParallelism:
		return nil, errors.New("argon2 parallelism too low")
	case p.SaltLength < minSaltLength:
		return nil, errors.New("argon2 salt too short")
	case p.KeyLength < minKeyLength:
		return nil, errors.New("argon2 key too short")
	}
	return &Argon2{params: p}, nil
}

func (a *Argon2) Hash(password string) (string, error) {
	salt := make([]byte, a.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, a.params.Time, a.params.Memory, a.params.Parallelism, a.params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		a.params.Memory, a.params.Time, a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (a *Argon2) Verify(password, encoded string) (bool, error) {
	phc, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(password), phc.salt, phc.params.Time, phc.params.Memory, phc.params.Parallelism, uint32(len(phc.key)))
	return subtle.ConstantTimeCompare(computed, phc.key) == 1, nil
}

// NeedsUpgrade reports whether encoded used weaker parameters than configured.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	phc, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	p := phc.params
	return a.params.Memory > p.Memory ||
		a.params.Time > p.Time ||
		a.params.Parallelism > p.Parallelism ||
		a.params.KeyLength != uint32(len(phc.key)), nil
}

type phcHash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

// parsePHC decodes $argon2id$v=19$m=..,t=..,p=..$salt$key.
func parsePHC(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, fmt.Errorf("%w: not an argon2id PHC string", ErrMalformedHash)
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, fmt.Errorf("%w: unsupported argon2 version", ErrMalformedHash)
	}

	var out phcHash
	for _, kv := range strings.Split(parts[3], ",") {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("%w: bad parameter %q", ErrMalformedHash, kv)
		}
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: bad parameter %q", ErrMalformedHash, kv)
		}
		switch name {
		case "m":
			out.params.Memory = uint32(v)
		case "t":
			out.params.Time = uint32(v)
		case "p":
			if v > 255 {
				return nil, fmt.Errorf("%w: parallelism out of range", ErrMalformedHash)
			}
			out.params.Parallelism = uint8(v)
		default:
			return nil, fmt.Errorf("%w: unknown parameter %q", ErrMalformedHash, name)
		}
	}
	if out.params.Memory < minMemoryKB || out.params.Time < minTimeCost || out.params.Parallelism < minParallelism {
		return nil, fmt.Errorf("%w: parameters below minimum", ErrMalformedHash)
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(out.salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}
	if out.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(out.key) < int(minKeyLength) {
		return nil, fmt.Errorf("%w: bad key", ErrMalformedHash)
	}
	return &out, nil
}
