package crypto

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	for _, password := range []string{"secret123", "correct horse battery staple", "ünïcødé", " "} {
		hash, err := h.Hash(password)
		if err != nil {
			t.Fatalf("Hash(%q) failed: %v", password, err)
		}
		if hash == password {
			t.Errorf("Hash(%q) returned the plaintext", password)
		}
		if !h.Verify(hash, password) {
			t.Errorf("Verify failed for correct password %q", password)
		}
		if h.Verify(hash, password+"x") {
			t.Errorf("Verify succeeded for %q+x", password)
		}
	}
}

func TestHashIsSalted(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	h1, _ := h.Hash("same-password")
	h2, _ := h.Hash("same-password")
	if h1 == h2 {
		t.Error("Hash produced identical output for the same password")
	}
}

func TestHashTooLong(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	_, err := h.Hash(strings.Repeat("a", 73))
	if err != ErrPasswordTooLong {
		t.Errorf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestNewHasherCostFallback(t *testing.T) {
	if got := NewHasher(0).Cost(); got != bcrypt.DefaultCost {
		t.Errorf("expected default cost %d, got %d", bcrypt.DefaultCost, got)
	}
	if got := NewHasher(99).Cost(); got != bcrypt.DefaultCost {
		t.Errorf("expected default cost %d, got %d", bcrypt.DefaultCost, got)
	}
	if got := NewHasher(bcrypt.MinCost).Cost(); got != bcrypt.MinCost {
		t.Errorf("expected cost %d, got %d", bcrypt.MinCost, got)
	}
}

func TestVerifyMalformedFailsClosed(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	malformed := []string{
		"",
		"plaintext",
		"$2a$04$short",
		"pbkdf2:sha256:1000",
		"pbkdf2:sha256:1000$salt$nothex",
		"pbkdf2:md5:1000$salt$abcd",
		"pbkdf2:sha256:0$salt$abcd",
		"pbkdf2:sha256:notanumber$salt$abcd",
		"pbkdf2:sha256:1000$$abcd",
		"scrypt:1024:8$salt$abcd",
		"scrypt:1000:8:1$salt$abcd",
		"scrypt:99999999:8:1$salt$abcd",
		"scrypt:1024:100000:1$salt$abcd",
		"scrypt:1024:8:100000000$salt$abcd",
		"scrypt:1048576:32:16$salt$abcd",
		"scrypt:1048576:8:1$salt$abcd",
		"argon2:whatever$salt$abcd",
	}
	for _, stored := range malformed {
		if h.Verify(stored, "secret123") {
			t.Errorf("Verify(%q) matched a malformed hash", stored)
		}
	}
}

func TestVerifyWerkzeugHashes(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	legacy := []string{
		"pbkdf2:sha256:1000$Zp3kQ9aXw1LmN7bV$c19a4eb7857f6666465a31b4f3acac436b556773a67959b88b95559879d08cf1",
		"scrypt:1024:8:1$Zp3kQ9aXw1LmN7bV$fafefb340f20c93b677ffcf393189e32d41965a413146e76fcfcf1c8f2f83a08389fefc75319da832c157cde6557f922c36ee308d31fea36cafe61fa836e95ca",
	}
	for _, stored := range legacy {
		if !h.Verify(stored, "secret123") {
			t.Errorf("Verify rejected the correct password for %s", stored[:strings.Index(stored, "$")])
		}
		if h.Verify(stored, "secret124") {
			t.Errorf("Verify accepted a wrong password for %s", stored[:strings.Index(stored, "$")])
		}
	}
}

func TestVerifyDummy(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	// Must not panic and must be callable repeatedly.
	h.VerifyDummy("anything")
	h.VerifyDummy("")
	if h.dummy == "" {
		t.Error("dummy hash was not initialised")
	}
}
