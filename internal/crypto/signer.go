package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Signer signs remote-ledger submissions with the payer's ed25519 key. The
// private key never leaves this type; it is not logged and not serialised.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewSigner creates a Signer from a hex-encoded 32-byte ed25519 seed (with or
// without a 0x prefix).
func NewSigner(privateKeyHex string) (*Signer, error) {
	seedHex := strings.TrimPrefix(privateKeyHex, "0x")
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("crypto/signer: expected %d-byte seed, got %d bytes", ed25519.SeedSize, len(seed))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// PublicKeyHex returns the 0x-prefixed hex encoding of the public key, as
// attached to signed submissions.
func (s *Signer) PublicKeyHex() string {
	return hexutil.Encode(s.pub)
}

// Sign signs the canonical signable bytes produced by the remote ledger's
// encode endpoint and returns the 0x-prefixed hex signature.
func (s *Signer) Sign(signingBytes []byte) string {
	sig := ed25519.Sign(s.priv, signingBytes)
	return hexutil.Encode(sig)
}

// Verify checks a 0x-prefixed hex signature over the given bytes against the
// signer's public key. Used in tests and self-checks.
func (s *Signer) Verify(signingBytes []byte, sigHex string) bool {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return false
	}
	return ed25519.Verify(s.pub, signingBytes, sig)
}
