// Package attest builds and verifies signed attestations. The signed
// body is the canonical encoding of {schema, created_at, decision,
// reasoning_path, input_digest, axiom_set_hash}; the attestation ID is
// the sha256 digest of that body, and the signature is Ed25519 over the
// digest bytes. A verifier recomputes the body from the claimed fields,
// so mutating any field breaks verification.
package attest

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/axiomhive/axiomd/internal/crypto"
	"github.com/axiomhive/axiomd/pkg/types"
)

const Schema = "axiomd.attestation.v0.1"

var (
	// ErrAttestation marks fatal signing or encoding failures: no
	// unsigned record ever leaves the system.
	ErrAttestation = errors.New("attestation failure")

	ErrEmptyReasoningPath = errors.New("reasoning path must not be empty")
)

// Signer is the ready-to-use signing capability handed to the engine.
// Key management stays outside.
type Signer interface {
	KeyID() string
	SignEd25519(digest []byte) ([]byte, error)
}

// LocalSigner signs with an in-process Ed25519 private key.
type LocalSigner struct {
	keyID string
	priv  ed25519.PrivateKey
}

func NewLocalSigner(keyID string, priv ed25519.PrivateKey) *LocalSigner {
	return &LocalSigner{keyID: keyID, priv: priv}
}

func (s *LocalSigner) KeyID() string {
	return s.keyID
}

func (s *LocalSigner) SignEd25519(digest []byte) ([]byte, error) {
	return crypto.SignEd25519(s.priv, digest)
}

// InputDigest computes the reproducible digest of a normalized input.
// Anyone holding the original input can recompute it and compare against
// a genuine attestation.
func InputDigest(in types.NormalizedInput) (string, error) {
	canonical, err := crypto.Canonicalize(in.CanonicalView())
	if err != nil {
		return "", err
	}
	return crypto.DigestWithPrefix(canonical), nil
}

// Make canonicalizes, hashes, and signs an attestation body. Signing
// failure is fatal to the request; the decision is not finalized until it
// is attested.
func Make(decision types.Decision, path []types.ReasoningStep, inputDigest, axiomSetHash, createdAt string, signer Signer) (types.Attestation, error) {
	if len(path) == 0 {
		return types.Attestation{}, ErrEmptyReasoningPath
	}
	if !decision.Verdict.Valid() {
		return types.Attestation{}, fmt.Errorf("%w: invalid verdict %q", ErrAttestation, decision.Verdict)
	}
	if !strings.HasPrefix(inputDigest, "sha256:") {
		return types.Attestation{}, fmt.Errorf("%w: malformed input digest", ErrAttestation)
	}
	if createdAt == "" {
		return types.Attestation{}, fmt.Errorf("%w: missing created_at", ErrAttestation)
	}

	canonical, err := canonicalBody(decision, path, inputDigest, axiomSetHash, createdAt)
	if err != nil {
		return types.Attestation{}, fmt.Errorf("%w: %v", ErrAttestation, err)
	}

	digestBytes := crypto.DigestBytes(canonical)
	bodyDigest := crypto.DigestWithPrefix(canonical)

	sig, err := signer.SignEd25519(digestBytes)
	if err != nil {
		return types.Attestation{}, fmt.Errorf("%w: sign: %v", ErrAttestation, err)
	}

	return types.Attestation{
		Schema:        Schema,
		AttestationID: bodyDigest,
		CreatedAt:     createdAt,
		Decision:      decision,
		ReasoningPath: path,
		InputDigest:   inputDigest,
		AxiomSetHash:  axiomSetHash,
		KeyID:         signer.KeyID(),
		Sig:           sig,
	}, nil
}

// Body returns the canonical signed body of an attestation, the exact
// bytes the attestation ID and signature are bound to.
func Body(att types.Attestation) ([]byte, error) {
	return canonicalBody(att.Decision, att.ReasoningPath, att.InputDigest, att.AxiomSetHash, att.CreatedAt)
}

// canonicalBody builds the byte encoding that is hashed and signed. The
// decision confidence enters as a fixed four-digit decimal string; every
// other field is a string, integer, or list of maps, so the encoding is
// unambiguous.
func canonicalBody(decision types.Decision, path []types.ReasoningStep, inputDigest, axiomSetHash, createdAt string) ([]byte, error) {
	confidence, err := crypto.FormatConfidence(decision.Confidence)
	if err != nil {
		return nil, err
	}

	steps := make([]any, 0, len(path))
	for _, step := range path {
		view := map[string]any{"kind": string(step.Kind)}
		if step.AxiomID != "" {
			view["axiom_id"] = step.AxiomID
		}
		if step.Verdict != "" {
			view["verdict"] = string(step.Verdict)
		}
		if step.Label != "" {
			view["label"] = step.Label
		}
		if step.Confidence != "" {
			view["confidence"] = step.Confidence
		}
		if step.Detail != "" {
			view["detail"] = step.Detail
		}
		steps = append(steps, view)
	}

	body := map[string]any{
		"schema":     Schema,
		"created_at": createdAt,
		"decision": map[string]any{
			"verdict":    string(decision.Verdict),
			"source":     string(decision.Source),
			"confidence": confidence,
		},
		"reasoning_path": steps,
		"input_digest":   inputDigest,
		"axiom_set_hash": axiomSetHash,
	}

	return crypto.Canonicalize(body)
}
