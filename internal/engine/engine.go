// Package engine runs the full adjudication pipeline: normalize input,
// evaluate axioms, fuse with the classifier, attest the decision, and
// persist it to the ledger. The engine is deterministic for a fixed
// axiom set, so a repeated input replays its existing attestation
// instead of producing a second one.
package engine

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/axiomhive/axiomd/internal/attest"
	"github.com/axiomhive/axiomd/internal/axiom"
	"github.com/axiomhive/axiomd/internal/crypto"
	"github.com/axiomhive/axiomd/internal/fusion"
	"github.com/axiomhive/axiomd/internal/ledger"
	"github.com/axiomhive/axiomd/internal/outbox"
	"github.com/axiomhive/axiomd/internal/symbolic"
	"github.com/axiomhive/axiomd/pkg/types"
)

// ReplayCache is the optional lookaside cache for finalized
// attestations. Implementations may fail soft: a miss always falls
// through to the ledger.
type ReplayCache interface {
	Get(ctx context.Context, axiomSetHash, inputDigest string) ([]byte, bool)
	Put(ctx context.Context, axiomSetHash, inputDigest string, body []byte)
}

// Engine wires the adjudication pipeline. Cache is optional; everything
// else is required.
type Engine struct {
	axioms       axiom.Set
	orchestrator *fusion.Orchestrator
	signer       attest.Signer
	store        ledger.Store
	cache        ReplayCache
	logger       *zap.Logger
	now          func() time.Time
}

type Options struct {
	Axioms       axiom.Set
	Orchestrator *fusion.Orchestrator
	Signer       attest.Signer
	Store        ledger.Store
	Cache        ReplayCache
	Logger       *zap.Logger
	Now          func() time.Time
}

func New(opts Options) (*Engine, error) {
	if len(opts.Axioms.Axioms) == 0 {
		return nil, fmt.Errorf("axiom set is empty")
	}
	if opts.Orchestrator == nil {
		return nil, fmt.Errorf("missing orchestrator")
	}
	if opts.Signer == nil {
		return nil, fmt.Errorf("missing signer")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("missing store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		axioms:       opts.Axioms,
		orchestrator: opts.Orchestrator,
		signer:       opts.Signer,
		store:        opts.Store,
		cache:        opts.Cache,
		logger:       logger,
		now:          now,
	}, nil
}

func (e *Engine) AxiomSetHash() string {
	return e.axioms.Hash
}

// EvaluateAndAttest adjudicates one input and returns its signed
// attestation. An input already adjudicated under the current axiom set
// replays the stored attestation. Fatal failures (unmapped classifier
// label, signing failure, ledger write failure) return an error and no
// decision is emitted.
func (e *Engine) EvaluateAndAttest(ctx context.Context, in types.NormalizedInput) (types.Attestation, error) {
	requestID := uuid.NewString()
	logger := e.logger.With(zap.String("request_id", requestID))

	inputDigest, err := attest.InputDigest(in)
	if err != nil {
		return types.Attestation{}, fmt.Errorf("digest input: %w", err)
	}

	if att, ok := e.replay(ctx, inputDigest); ok {
		logger.Info("attestation replayed",
			zap.String("attestation_id", att.AttestationID),
			zap.String("input_digest", inputDigest))
		return att, nil
	}

	sym, symErr := symbolic.Evaluate(e.axioms, in)

	decision, path, err := e.orchestrator.Decide(ctx, in, sym, symErr)
	if err != nil {
		return types.Attestation{}, err
	}

	createdAt := e.now().UTC().Format(time.RFC3339)
	att, err := attest.Make(decision, path, inputDigest, e.axioms.Hash, createdAt, e.signer)
	if err != nil {
		return types.Attestation{}, err
	}

	body, err := attest.Body(att)
	if err != nil {
		return types.Attestation{}, fmt.Errorf("%w: encode body: %v", attest.ErrAttestation, err)
	}

	rec := ledger.AttestationRecord{
		AttestationID: att.AttestationID,
		CreatedAt:     att.CreatedAt,
		InputDigest:   att.InputDigest,
		AxiomSetHash:  att.AxiomSetHash,
		Verdict:       string(att.Decision.Verdict),
		Source:        string(att.Decision.Source),
		KeyID:         att.KeyID,
		Sig:           att.Sig,
		BodyJSON:      body,
	}
	if err := e.store.AppendAttestation(rec); err != nil {
		return types.Attestation{}, fmt.Errorf("%w: append to ledger: %v", attest.ErrAttestation, err)
	}

	if err := outbox.Enqueue(e.store, att.AttestationID, e.now()); err != nil {
		logger.Warn("outbox enqueue failed", zap.Error(err))
	}

	if e.cache != nil {
		if encoded, err := json.Marshal(att); err == nil {
			e.cache.Put(ctx, e.axioms.Hash, inputDigest, encoded)
		}
	}

	logger.Info("decision attested",
		zap.String("attestation_id", att.AttestationID),
		zap.String("verdict", string(decision.Verdict)),
		zap.String("source", string(decision.Source)),
		zap.String("input_digest", inputDigest))
	return att, nil
}

// replay looks up an existing attestation for this input, cache first,
// then the ledger. Cache entries are re-verified against their digest
// binding before use.
func (e *Engine) replay(ctx context.Context, inputDigest string) (types.Attestation, bool) {
	if e.cache != nil {
		if encoded, ok := e.cache.Get(ctx, e.axioms.Hash, inputDigest); ok {
			var att types.Attestation
			if err := json.Unmarshal(encoded, &att); err == nil && cacheEntryUsable(att) {
				return att, true
			}
			e.logger.Warn("cached attestation failed digest binding, falling through",
				zap.String("input_digest", inputDigest))
		}
	}

	rec, ok := e.store.GetAttestationByInput(e.axioms.Hash, inputDigest)
	if !ok {
		return types.Attestation{}, false
	}
	att, err := attestationFromRecord(rec)
	if err != nil {
		e.logger.Warn("stored attestation unreadable, re-adjudicating",
			zap.String("attestation_id", rec.AttestationID),
			zap.Error(err))
		return types.Attestation{}, false
	}
	if e.cache != nil {
		if encoded, err := json.Marshal(att); err == nil {
			e.cache.Put(ctx, e.axioms.Hash, inputDigest, encoded)
		}
	}
	return att, true
}

// cacheEntryUsable re-derives the canonical body of a cached attestation
// and checks that its ID still matches the body digest. A corrupted or
// tampered cache entry fails the check and the ledger copy is used instead.
func cacheEntryUsable(att types.Attestation) bool {
	if att.AttestationID == "" {
		return false
	}
	body, err := attest.Body(att)
	if err != nil {
		return false
	}
	return att.AttestationID == crypto.DigestWithPrefix(body)
}

// Verify checks an attestation against the keys registered in the ledger.
func (e *Engine) Verify(att types.Attestation) error {
	return attest.Verify(att, func(keyID string) (ed25519.PublicKey, bool) {
		rec, ok := e.store.GetKey(keyID)
		if !ok {
			return nil, false
		}
		return ed25519.PublicKey(rec.PublicKey), true
	})
}

// GetAttestation loads a stored attestation by ID.
func (e *Engine) GetAttestation(attestationID string) (types.Attestation, bool, error) {
	rec, ok := e.store.GetAttestation(attestationID)
	if !ok {
		return types.Attestation{}, false, nil
	}
	att, err := attestationFromRecord(rec)
	if err != nil {
		return types.Attestation{}, true, err
	}
	return att, true, nil
}

// attestationFromRecord rebuilds the full attestation from the stored
// canonical body plus the record's key ID and signature.
func attestationFromRecord(rec ledger.AttestationRecord) (types.Attestation, error) {
	var body struct {
		Schema    string `json:"schema"`
		CreatedAt string `json:"created_at"`
		Decision  struct {
			Verdict    string `json:"verdict"`
			Source     string `json:"source"`
			Confidence string `json:"confidence"`
		} `json:"decision"`
		ReasoningPath []types.ReasoningStep `json:"reasoning_path"`
		InputDigest   string                `json:"input_digest"`
		AxiomSetHash  string                `json:"axiom_set_hash"`
	}
	if err := json.Unmarshal(rec.BodyJSON, &body); err != nil {
		return types.Attestation{}, fmt.Errorf("decode body: %w", err)
	}
	confidence, err := strconv.ParseFloat(body.Decision.Confidence, 64)
	if err != nil {
		return types.Attestation{}, fmt.Errorf("decode confidence: %w", err)
	}
	return types.Attestation{
		Schema:        body.Schema,
		AttestationID: rec.AttestationID,
		CreatedAt:     body.CreatedAt,
		Decision: types.Decision{
			Verdict:    types.Verdict(body.Decision.Verdict),
			Source:     types.DecisionSource(body.Decision.Source),
			Confidence: confidence,
		},
		ReasoningPath: body.ReasoningPath,
		InputDigest:   body.InputDigest,
		AxiomSetHash:  body.AxiomSetHash,
		KeyID:         rec.KeyID,
		Sig:           rec.Sig,
	}, nil
}
