package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/yourorg/cohort/internal/domain"
)

func TestGenerateVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	h, err := NewHasher("0123456789abcdef")
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	digest, err := h.Generate("test")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if strings.Contains(digest, "test") {
		t.Fatalf("digest contains plaintext: %q", digest)
	}
	if !strings.HasPrefix(digest, "$argon2id$") {
		t.Fatalf("unexpected digest format: %q", digest)
	}

	ok, err := h.Verify(digest, "test")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected digest to verify against original password")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	t.Parallel()

	h, err := NewHasher("0123456789abcdef")
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	digest, err := h.Generate("correct horse")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	ok, err := h.Verify(digest, "battery staple")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch for wrong password")
	}
}

func TestVerify_ParamsEmbeddedInDigest(t *testing.T) {
	t.Parallel()

	// A verifier built with a different salt must still verify a digest
	// produced elsewhere, because the salt travels inside the digest.
	h1, err := NewHasher("salt-number-one")
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	h2, err := NewHasher("salt-number-two")
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	digest, err := h1.Generate("pw")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	ok, err := h2.Verify(digest, "pw")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected verification to use the salt embedded in the digest")
	}
}

func TestVerify_MalformedDigest(t *testing.T) {
	t.Parallel()

	h, err := NewHasher("0123456789abcdef")
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	cases := []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=4$c2FsdA",
		"$argon2id$v=12$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=0,p=0$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=4$!!!$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$!!!",
	}
	for _, digest := range cases {
		if _, err := h.Verify(digest, "pw"); !errors.Is(err, domain.ErrMalformedDigest) {
			t.Fatalf("digest %q: expected ErrMalformedDigest, got %v", digest, err)
		}
	}
}

func TestNewHasher_SaltTooShort(t *testing.T) {
	t.Parallel()

	if _, err := NewHasher("short"); err == nil {
		t.Fatalf("expected error for short salt")
	}
}
