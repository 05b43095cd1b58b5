package entangle

import (
	"context"
	"strings"
	"testing"

	"polaris-hq/superpose/pkg/secrets"
	"polaris-hq/superpose/pkg/superposition"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newEntangler(t *testing.T) *Entangler {
	t.Helper()
	e, err := New(testKey)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestNewRejectsShortKey(t *testing.T) {
	if _, err := New([]byte("too-short")); err == nil {
		t.Fatal("New() accepted a short key")
	}
}

func TestDeriveDeterministic(t *testing.T) {
	e := newEntangler(t)

	tag1 := e.Derive("policy-1")
	tag2 := e.Derive("policy-1")
	if tag1 != tag2 {
		t.Errorf("Derive() not deterministic: %q vs %q", tag1, tag2)
	}

	// 32-byte HMAC-SHA256 digest, hex encoded.
	if len(tag1) != 64 {
		t.Errorf("tag length = %d, want 64", len(tag1))
	}
	if tag1 == e.Derive("policy-2") {
		t.Error("different policy ids produced the same tag")
	}
}

func TestDeriveDependsOnKey(t *testing.T) {
	e1 := newEntangler(t)
	e2, err := New([]byte("fedcba9876543210fedcba9876543210"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if e1.Derive("policy-1") == e2.Derive("policy-1") {
		t.Error("different baseline keys produced the same tag")
	}
}

func TestVerify(t *testing.T) {
	e := newEntangler(t)

	tag := e.Derive("policy-1")
	if err := e.Verify("policy-1", tag); err != nil {
		t.Errorf("Verify() with matching tag error = %v", err)
	}

	err := e.Verify("policy-1", e.Derive("policy-2"))
	if !superposition.IsKind(err, superposition.KindEntanglementMismatch) {
		t.Errorf("Verify() with wrong tag kind = %q, want %q",
			superposition.KindOf(err), superposition.KindEntanglementMismatch)
	}

	if err := e.Verify("policy-1", ""); err == nil {
		t.Error("Verify() accepted an empty tag")
	}
}

func TestBucket(t *testing.T) {
	e := newEntangler(t)

	// Stable across calls.
	if e.Bucket("policy-1", 3) != e.Bucket("policy-1", 3) {
		t.Error("Bucket() not stable")
	}

	// Always in range, and all three buckets reachable over enough ids.
	seen := make(map[uint64]bool)
	for i := 0; i < 200; i++ {
		b := e.Bucket(strings.Repeat("x", i+1), 3)
		if b >= 3 {
			t.Fatalf("Bucket() = %d, want < 3", b)
		}
		seen[b] = true
	}
	if len(seen) != 3 {
		t.Errorf("200 ids hit %d buckets, want 3", len(seen))
	}
}

func TestKeyID(t *testing.T) {
	e := newEntangler(t)

	if len(e.KeyID()) != 8 {
		t.Errorf("KeyID() length = %d, want 8", len(e.KeyID()))
	}
	// The key id must not leak key material.
	if strings.Contains(string(testKey), e.KeyID()) {
		t.Error("KeyID() is a substring of the key")
	}

	other, err := New([]byte("fedcba9876543210fedcba9876543210"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if e.KeyID() == other.KeyID() {
		t.Error("different keys share a key id")
	}
}

func TestLoadFromProvider(t *testing.T) {
	t.Setenv("SUPERPOSE_SECRET_BASELINE_KEY", string(testKey))

	provider, err := secrets.NewProvider("env", "")
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	e, err := Load(context.Background(), provider)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	direct := newEntangler(t)
	if e.Derive("policy-1") != direct.Derive("policy-1") {
		t.Error("loaded entangler derives different tags than a direct one")
	}
}

func TestLoadMissingSecret(t *testing.T) {
	t.Setenv("SUPERPOSE_SECRET_BASELINE_KEY", "")

	provider, err := secrets.NewProvider("env", "")
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if _, err := Load(context.Background(), provider); err == nil {
		t.Fatal("Load() succeeded with no secret present")
	}
}

func BenchmarkDerive(b *testing.B) {
	e, err := New(testKey)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Derive("change-1042")
	}
}

func BenchmarkVerify(b *testing.B) {
	e, err := New(testKey)
	if err != nil {
		b.Fatal(err)
	}
	tag := e.Derive("change-1042")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.Verify("change-1042", tag); err != nil {
			b.Fatal(err)
		}
	}
}
