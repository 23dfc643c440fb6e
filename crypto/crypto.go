package crypto

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"hash"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// ErrPasswordTooLong is returned by Hash for passwords bcrypt cannot accept.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

const (
	maxPBKDF2Iterations = 10_000_000
	maxScryptN          = 1 << 20
	maxScryptR          = 32
	maxScryptP          = 16

	// scrypt needs roughly 128*N*r*p bytes.
	maxScryptMemory = 64 << 20
)

// Hasher hashes new passwords with bcrypt and verifies both bcrypt hashes
// and the werkzeug formats written by earlier deployments.
type Hasher struct {
	cost int

	dummyOnce sync.Once
	dummy     string
}

// NewHasher returns a Hasher using the given bcrypt cost. Out of range
// values fall back to bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Cost reports the bcrypt cost used for new hashes.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash bcrypts password at the configured cost. Passwords over 72 bytes
// return ErrPasswordTooLong.
func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether password matches the stored hash. Unknown or
// malformed hashes never match.
func (h *Hasher) Verify(stored, password string) bool {
	switch {
	case strings.HasPrefix(stored, "$2"):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	case strings.HasPrefix(stored, "pbkdf2:"):
		return verifyPBKDF2(stored, password)
	case strings.HasPrefix(stored, "scrypt:"):
		return verifyScrypt(stored, password)
	}
	return false
}

// VerifyDummy burns the same bcrypt work as a real comparison. Login calls
// it when no account matches so both failure paths take comparable time.
func (h *Hasher) VerifyDummy(password string) {
	h.dummyOnce.Do(func() {
		b, err := bcrypt.GenerateFromPassword([]byte("gatehouse-dummy-password"), h.cost)
		if err == nil {
			h.dummy = string(b)
		}
	})
	_ = bcrypt.CompareHashAndPassword([]byte(h.dummy), []byte(password))
}

// splitLegacy splits "method$salt$hex" into its parts.
func splitLegacy(stored string) (method []string, salt string, sum []byte, err error) {
	parts := strings.Split(stored, "$")
	if len(parts) != 3 || parts[1] == "" {
		return nil, "", nil, errors.New("malformed hash")
	}
	sum, err = hex.DecodeString(parts[2])
	if err != nil || len(sum) == 0 {
		return nil, "", nil, errors.New("malformed digest")
	}
	return strings.Split(parts[0], ":"), parts[1], sum, nil
}

// pbkdf2:<digest>:<iterations>$salt$hex
func verifyPBKDF2(stored, password string) bool {
	method, salt, sum, err := splitLegacy(stored)
	if err != nil || len(method) != 3 {
		return false
	}

	var newHash func() hash.Hash
	switch method[1] {
	case "sha256":
		newHash = sha256.New
	case "sha512":
		newHash = sha512.New
	case "sha1":
		newHash = sha1.New
	default:
		return false
	}

	iterations, err := strconv.Atoi(method[2])
	if err != nil || iterations < 1 || iterations > maxPBKDF2Iterations {
		return false
	}

	got := pbkdf2.Key([]byte(password), []byte(salt), iterations, len(sum), newHash)
	return subtle.ConstantTimeCompare(got, sum) == 1
}

// scrypt:<N>:<r>:<p>$salt$hex
func verifyScrypt(stored, password string) bool {
	method, salt, sum, err := splitLegacy(stored)
	if err != nil || len(method) != 4 {
		return false
	}

	params := make([]int, 3)
	for i, raw := range method[1:] {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return false
		}
		params[i] = v
	}
	n, r, p := params[0], params[1], params[2]
	if n > maxScryptN || r > maxScryptR || p > maxScryptP {
		return false
	}
	if int64(128)*int64(n)*int64(r)*int64(p) > maxScryptMemory {
		return false
	}

	got, err := scrypt.Key([]byte(password), []byte(salt), n, r, p, len(sum))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, sum) == 1
}
