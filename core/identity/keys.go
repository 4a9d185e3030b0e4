// Package identity provides each node's Ed25519 keypair, used to sign the
// hop list a destination hands back in a data-ack (§4.10) so an originator
// can detect a forwarder that rewrote the recorded path. This is advisory
// hardening, not key agreement: link keys stay pre-shared (§1 Non-goals).
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/kabili207/espmesh-go/core/address"
)

var (
	ErrInvalidSeedSize  = errors.New("identity: invalid seed size: expected 32 bytes")
	ErrInvalidPublicKey = errors.New("identity: public key does not decode to a valid curve point")
)

// KeyPair is a node's Ed25519 identity.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeyPair creates a new random Ed25519 keypair.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generating key pair: %w", err)
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// KeyPairFromSeed reconstructs a KeyPair from a persisted 32-byte seed, so a
// node's identity survives a reboot.
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidSeedSize
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &KeyPair{Public: priv.Public().(ed25519.PublicKey), Private: priv}, nil
}

// Seed returns the 32-byte seed this KeyPair was derived from, for
// persistence.
func (kp *KeyPair) Seed() []byte {
	return kp.Private.Seed()
}

// attestationMessage builds the signed message for a recorded path: the
// originator, the destination, and the ordered hop list, concatenated.
func attestationMessage(src, dst address.Address, path []address.Address) []byte {
	msg := make([]byte, 0, address.Size*(2+len(path)))
	msg = append(msg, src[:]...)
	msg = append(msg, dst[:]...)
	for _, hop := range path {
		msg = append(msg, hop[:]...)
	}
	return msg
}

// SignPath signs the (src, dst, path) tuple carried in a data-ack.
func (kp *KeyPair) SignPath(src, dst address.Address, path []address.Address) []byte {
	return ed25519.Sign(kp.Private, attestationMessage(src, dst, path))
}

// VerifyPath verifies a signature produced by SignPath, using the signer's
// public key.
func VerifyPath(signerPub ed25519.PublicKey, src, dst address.Address, path []address.Address, sig []byte) bool {
	if len(signerPub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(signerPub, attestationMessage(src, dst, path), sig)
}

// ValidatePublicKey reports whether pub decodes to a valid point on the
// Edwards curve, rejecting malformed or adversarially-crafted advertised
// keys before they are ever trusted for signature verification.
func ValidatePublicKey(pub ed25519.PublicKey) error {
	if len(pub) != ed25519.PublicKeySize {
		return ErrInvalidPublicKey
	}
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return nil
}
