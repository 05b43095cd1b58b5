package entangle

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"polaris-hq/superpose/pkg/secrets"
	"polaris-hq/superpose/pkg/superposition"
)

// BaselineKeySecretName is the secret name the baseline key is loaded under.
const BaselineKeySecretName = "baseline-key"

// minKeyLen rejects keys too short to provide meaningful binding.
const minKeyLen = 16

// Entangler derives and verifies entanglement tags under a single baseline key.
// It is safe for concurrent use; the key never changes after construction.
type Entangler struct {
	key   []byte
	keyID string
}

// New creates an Entangler from the raw baseline key bytes.
func New(key []byte) (*Entangler, error) {
	if len(key) < minKeyLen {
		return nil, fmt.Errorf("baseline key must be at least %d bytes, got %d", minKeyLen, len(key))
	}

	// The key id is the first 8 hex chars of SHA-256(key): enough to tell
	// baselines apart in audit records without exposing key material.
	digest := sha256.Sum256(key)
	keyID := hex.EncodeToString(digest[:])[:8]

	return &Entangler{key: append([]byte(nil), key...), keyID: keyID}, nil
}

// Load resolves the baseline key from a secrets provider and builds an
// Entangler. The key value itself is never logged.
func Load(ctx context.Context, provider secrets.Provider) (*Entangler, error) {
	value, err := provider.GetSecret(ctx, BaselineKeySecretName)
	if err != nil {
		return nil, fmt.Errorf("loading baseline key from %s provider: %w", provider.Provider(), err)
	}
	return New([]byte(value))
}

// Derive computes the entanglement tag for a policy_id: the hex encoding of
// HMAC-SHA256(baseline_key, policy_id). Same inputs always produce the same tag.
func (e *Entangler) Derive(policyID string) string {
	mac := hmac.New(sha256.New, e.key)
	mac.Write([]byte(policyID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the tag for a policy_id and compares it against the
// stored value in constant time. A mismatch is an EntanglementMismatch
// integrity violation; callers must reject the record.
func (e *Entangler) Verify(policyID, tag string) error {
	expected := e.Derive(policyID)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(tag)) != 1 {
		return superposition.NewEntanglementMismatch(policyID)
	}
	return nil
}

// Bucket maps a policy_id to a stable value in [0, n) via the keyed hash.
// This is the deterministic resolution primitive: the same policy_id always
// lands in the same bucket under the same baseline key, across process
// restarts.
func (e *Entangler) Bucket(policyID string, n uint64) uint64 {
	mac := hmac.New(sha256.New, e.key)
	mac.Write([]byte(policyID))
	sum := mac.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8]) % n
}

// KeyID returns the short baseline key identifier recorded in audit records.
func (e *Entangler) KeyID() string {
	return e.keyID
}
