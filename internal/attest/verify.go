package attest

import (
	"crypto/ed25519"
	"errors"

	"github.com/axiomhive/axiomd/internal/crypto"
	"github.com/axiomhive/axiomd/pkg/types"
)

var (
	ErrSchemaUnknown  = errors.New("unknown attestation schema")
	ErrDigestMismatch = errors.New("attestation id does not match canonical body digest")
	ErrUnknownKey     = errors.New("unknown signer key id")
	ErrBadSignature   = errors.New("signature invalid")
)

// KeyLookup resolves a signer key ID to its public key.
type KeyLookup func(keyID string) (ed25519.PublicKey, bool)

// Verify recomputes the canonical body from the attestation's claimed
// fields and checks both the digest binding and the signature. A nil
// return means valid; any error names the reason. Verification never
// trusts the engine that produced the record: everything is derived from
// the claimed fields and the looked-up public key.
func Verify(att types.Attestation, lookup KeyLookup) error {
	if att.Schema != Schema {
		return ErrSchemaUnknown
	}
	if len(att.ReasoningPath) == 0 {
		return ErrEmptyReasoningPath
	}

	canonical, err := canonicalBody(att.Decision, att.ReasoningPath, att.InputDigest, att.AxiomSetHash, att.CreatedAt)
	if err != nil {
		return err
	}

	if att.AttestationID != crypto.DigestWithPrefix(canonical) {
		return ErrDigestMismatch
	}

	publicKey, ok := lookup(att.KeyID)
	if !ok {
		return ErrUnknownKey
	}

	valid, err := crypto.VerifyEd25519(publicKey, crypto.DigestBytes(canonical), att.Sig)
	if err != nil {
		return err
	}
	if !valid {
		return ErrBadSignature
	}
	return nil
}
