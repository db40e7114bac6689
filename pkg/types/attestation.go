package types

// Attestation is the signed, tamper-evident record binding a Decision to
// the input digest and reasoning path that produced it. AttestationID is
// the sha256 digest of the canonical body; Sig is an Ed25519 signature
// over that digest, verifiable against the key identified by KeyID.
type Attestation struct {
	Schema        string          `json:"schema"`
	AttestationID string          `json:"attestation_id"`
	CreatedAt     string          `json:"created_at"`
	Decision      Decision        `json:"decision"`
	ReasoningPath []ReasoningStep `json:"reasoning_path"`
	InputDigest   string          `json:"input_digest"`
	AxiomSetHash  string          `json:"axiom_set_hash"`
	KeyID         string          `json:"key_id"`
	Sig           []byte          `json:"sig"`
}
