// Package sign verifies Ed25519-signed offline license blobs. Verification
// is pure computation with no I/O, cheap enough to run on every decision.
package sign

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/artemislabs/lib-entitlement-go/constant"
	"github.com/artemislabs/lib-entitlement-go/model"
)

// A blob is base64url(claims JSON) + "." + base64url(signature over the
// claims JSON). The signature covers the exact encoded payload bytes, so any
// tampering with a claim invalidates it.
const blobSeparator = "."

// Verifier validates offline license blobs against a trusted public key.
type Verifier struct {
	publicKey ed25519.PublicKey
	now       func() time.Time
}

// New creates a verifier from a base64 raw Ed25519 public key.
func New(publicKeyB64 string) (*Verifier, error) {
	raw, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}

	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}

	return &Verifier{
		publicKey: ed25519.PublicKey(raw),
		now:       time.Now,
	}, nil
}

// SetClock overrides the time source (useful for testing)
func (v *Verifier) SetClock(now func() time.Time) {
	if now != nil {
		v.now = now
	}
}

// Verify parses and validates a license blob. Expiry is a first-class claim
// checked after the signature verifies: a genuine but expired blob fails
// with constant.ErrLicenseExpired, never passes as fresh.
func (v *Verifier) Verify(blob string) (model.Claims, error) {
	payload, sig, err := decodeBlob(blob)
	if err != nil {
		return model.Claims{}, err
	}

	if !ed25519.Verify(v.publicKey, payload, sig) {
		return model.Claims{}, constant.ErrInvalidSignature
	}

	var claims model.Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return model.Claims{}, constant.ErrMalformedBlob
	}

	if claims.Key == "" || claims.Tier == "" {
		return model.Claims{}, constant.ErrMalformedBlob
	}

	if claims.ExpiresAt != nil && v.now().After(*claims.ExpiresAt) {
		return model.Claims{}, constant.ErrLicenseExpired
	}

	return claims, nil
}

func decodeBlob(blob string) (payload, sig []byte, err error) {
	parts := strings.Split(strings.TrimSpace(blob), blobSeparator)
	if len(parts) != 2 {
		return nil, nil, constant.ErrMalformedBlob
	}

	payload, err = base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, nil, constant.ErrMalformedBlob
	}

	sig, err = base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil || len(sig) != ed25519.SignatureSize {
		return nil, nil, constant.ErrMalformedBlob
	}

	return payload, sig, nil
}

// GenerateBlob signs claims into blob form. It lives on the issuing side;
// the entitlement core only ever verifies.
func GenerateBlob(claims model.Claims, privateKey ed25519.PrivateKey) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}

	sig := ed25519.Sign(privateKey, payload)

	return base64.RawURLEncoding.EncodeToString(payload) +
		blobSeparator +
		base64.RawURLEncoding.EncodeToString(sig), nil
}
