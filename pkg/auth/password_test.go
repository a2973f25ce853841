package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}

	digest, err := h.Hash("123456")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if digest == "123456" {
		t.Fatal("digest must not equal the password")
	}
	if !h.Verify("123456", digest) {
		t.Error("Verify() = false for the right password")
	}
	if h.Verify("654321", digest) {
		t.Error("Verify() = true for a wrong password")
	}
	if h.Verify("123456", "not-a-digest") {
		t.Error("Verify() = true for a malformed digest")
	}
}

func TestBcryptHasher_TooLong(t *testing.T) {
	long := make([]byte, 80)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := (BcryptHasher{Cost: bcrypt.MinCost}).Hash(string(long)); err == nil {
		t.Error("expected an error for a password over 72 bytes")
	}
}
