// Package ledger persists finalized attestations, signer keys, axiom set
// versions, and the publish outbox. Storage technology is pluggable; the
// engine only relies on this interface.
package ledger

type Store interface {
	PutKey(key KeyRecord) error
	GetKey(keyID string) (KeyRecord, bool)

	PutAxiomSet(set AxiomSetRecord) error
	GetAxiomSet(hash string) (AxiomSetRecord, bool)

	// AppendAttestation is idempotent: appending a record whose ID is
	// already present is a no-op, which the deterministic engine relies
	// on when replaying identical inputs.
	AppendAttestation(att AttestationRecord) error
	GetAttestation(attestationID string) (AttestationRecord, bool)
	GetAttestationByInput(axiomSetHash, inputDigest string) (AttestationRecord, bool)

	PutOutbox(rec OutboxRecord) error
	GetOutbox(attestationID string) (OutboxRecord, bool)
	ListOutboxDue(now string, limit int) ([]OutboxRecord, error)
}

type KeyRecord struct {
	KeyID     string
	PublicKey []byte
	CreatedAt string
	RotatedAt *string
}

type AxiomSetRecord struct {
	Hash      string
	YAML      string
	CreatedAt string
}

type AttestationRecord struct {
	AttestationID string
	CreatedAt     string
	InputDigest   string
	AxiomSetHash  string
	Verdict       string
	Source        string
	KeyID         string
	Sig           []byte
	BodyJSON      []byte
}

type OutboxRecord struct {
	AttestationID string
	Status        string // pending | sent
	AttemptCount  int
	NextAttemptAt string
	LastError     *string
	SentAt        *string
	CreatedAt     string
	UpdatedAt     string
}
