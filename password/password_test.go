package password

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newFastHasher(t *testing.T, alg Algorithm) *Hasher {
	t.Helper()
	h, err := New(Config{
		Algorithm:  alg,
		BcryptCost: bcrypt.MinCost,
		Argon2:     Argon2Params{Memory: minMemoryKB, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return h
}

func TestHashVerifyRoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmBcrypt, AlgorithmArgon2id} {
		h := newFastHasher(t, alg)
		for _, pw := range []string{"", "admin123", "pässwörd-ünïcode", strings.Repeat("x", 72), strings.Repeat("y", 200)} {
			encoded, err := h.Hash(pw)
			if err != nil {
				t.Fatalf("%s: hash %q failed: %v", alg, pw, err)
			}
			ok, err := h.Verify(pw, encoded)
			if err != nil || !ok {
				t.Fatalf("%s: verify %q = %v, %v", alg, pw, ok, err)
			}
			ok, err = h.Verify(pw+"!", encoded)
			if err != nil || ok {
				t.Fatalf("%s: verify of a different password = %v, %v", alg, ok, err)
			}
		}
	}
}

func TestLongPasswordsSharingPrefixDoNotCollide(t *testing.T) {
	h := newFastHasher(t, AlgorithmBcrypt)
	prefix := strings.Repeat("p", 72)

	encoded, err := h.Hash(prefix + "A")
	if err != nil {
		t.Fatalf("hash of 73-byte password failed: %v", err)
	}
	ok, err := h.Verify(prefix+"A", encoded)
	if err != nil || !ok {
		t.Fatalf("expected 73-byte password to verify, got %v, %v", ok, err)
	}
	for _, other := range []string{prefix + "B", prefix, prefix + "AB"} {
		ok, err := h.Verify(other, encoded)
		if err != nil {
			t.Fatalf("verify must not fail on long input: %v", err)
		}
		if ok {
			t.Fatalf("password of length %d sharing a 72-byte prefix must not verify", len(other))
		}
	}
}

func TestDigestOfLongPasswordIsNotItsPassword(t *testing.T) {
	h := newFastHasher(t, AlgorithmBcrypt)
	long := strings.Repeat("q", 100)
	sum := sha256.Sum256([]byte(long))
	digest := base64.StdEncoding.EncodeToString(sum[:])

	encoded, err := h.Hash(long)
	if err != nil {
		t.Fatal(err)
	}
	for _, guess := range []string{digest, "\x00" + digest} {
		ok, err := h.Verify(guess, encoded)
		if err != nil {
			t.Fatalf("verify %d-byte guess: %v", len(guess), err)
		}
		if ok {
			t.Fatalf("the %d-byte digest form verified against the long password", len(guess))
		}
	}

	marked := "\x00short"
	encoded, err = h.Hash(marked)
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := h.Verify(marked, encoded); !ok {
		t.Fatal("password starting with a NUL byte must verify")
	}
	if ok, _ := h.Verify("short", encoded); ok {
		t.Fatal("stripping the leading NUL must not verify")
	}
}

func TestHashesAreSalted(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmBcrypt, AlgorithmArgon2id} {
		h := newFastHasher(t, alg)
		a, _ := h.Hash("same")
		b, _ := h.Hash("same")
		if a == b {
			t.Fatalf("%s: expected distinct salted hashes", alg)
		}
	}
}

func TestVerifyAcrossAlgorithms(t *testing.T) {
	legacy := newFastHasher(t, AlgorithmBcrypt)
	current := newFastHasher(t, AlgorithmArgon2id)

	encoded, _ := legacy.Hash("migrate-me")
	ok, err := current.Verify("migrate-me", encoded)
	if err != nil || !ok {
		t.Fatalf("argon2 hasher must still verify bcrypt hashes: %v, %v", ok, err)
	}
	if !current.NeedsRehash(encoded) {
		t.Fatal("bcrypt hash should need rehash under argon2id config")
	}
}

func TestNeedsRehashOnCostIncrease(t *testing.T) {
	weak := newFastHasher(t, AlgorithmBcrypt)
	encoded, _ := weak.Hash("pw")

	strong, err := New(Config{Algorithm: AlgorithmBcrypt, BcryptCost: bcrypt.MinCost + 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !strong.NeedsRehash(encoded) {
		t.Fatal("expected rehash when configured cost increases")
	}
	if weak.NeedsRehash(encoded) {
		t.Fatal("hash at configured cost should not need rehash")
	}
}

func TestMalformedHashes(t *testing.T) {
	h := newFastHasher(t, AlgorithmBcrypt)
	for _, bad := range []string{"", "plaintext", "$2a$04$short", "$argon2id$v=19$m=1,t=1,p=1$AAAA$AAAA", "$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5"} {
		ok, err := h.Verify("pw", bad)
		if ok {
			t.Fatalf("malformed hash %q must not verify", bad)
		}
		if !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("malformed hash %q: expected ErrMalformedHash, got %v", bad, err)
		}
	}
}

func TestConfigValidation(t *testing.T) {
	if _, err := New(Config{Algorithm: "md5"}); err == nil {
		t.Fatal("expected unsupported algorithm error")
	}
	if _, err := New(Config{BcryptCost: 99}); err == nil {
		t.Fatal("expected bcrypt cost error")
	}
	if _, err := NewArgon2(Argon2Params{Memory: 1, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}); err == nil {
		t.Fatal("expected argon2 memory error")
	}
}
