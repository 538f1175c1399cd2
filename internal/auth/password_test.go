package auth

import (
	"strings"
	"testing"
)

// Cost 4 (bcrypt's minimum) keeps the suite fast; the logic is identical.
func newTestPasswordService() *PasswordService {
	return NewPasswordServiceForTest(4)
}

func TestHashAndVerify(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("goobers")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "goobers" {
		t.Fatal("Hash() returned the plaintext")
	}

	if err := ps.Verify(hash, "goobers"); err != nil {
		t.Errorf("Verify() with correct password error = %v", err)
	}
	if err := ps.Verify(hash, "wrong"); err == nil {
		t.Error("Verify() accepted the wrong password")
	}
}

func TestHash_SamePasswordDifferentHashes(t *testing.T) {
	ps := newTestPasswordService()

	h1, _ := ps.Hash("goobers")
	h2, _ := ps.Hash("goobers")
	if h1 == h2 {
		t.Error("two hashes of the same password are identical — salt missing?")
	}
}

func TestHash_TooLong(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("x", 73)); err == nil {
		t.Error("Hash() accepted a password past bcrypt's 72-byte limit")
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	ps := newTestPasswordService()

	if err := ps.Verify("not-a-bcrypt-hash", "goobers"); err == nil {
		t.Error("Verify() accepted a malformed hash")
	}
}
