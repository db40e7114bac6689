// Package pgstore implements the attestation ledger on PostgreSQL.
package pgstore

import (
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/axiomhive/axiomd/internal/ledger"
)

type Store struct {
	db *sql.DB
}

func OpenPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ledger.Migrate(db, ledger.DBPostgres); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) PutKey(key ledger.KeyRecord) error {
	_, err := s.db.Exec(`INSERT INTO keys (key_id, public_key, created_at, rotated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key_id) DO UPDATE SET public_key = excluded.public_key, rotated_at = excluded.rotated_at`,
		key.KeyID, key.PublicKey, key.CreatedAt, key.RotatedAt)
	return err
}

func (s *Store) GetKey(keyID string) (ledger.KeyRecord, bool) {
	var rec ledger.KeyRecord
	row := s.db.QueryRow(`SELECT key_id, public_key, created_at, rotated_at FROM keys WHERE key_id = $1`, keyID)
	if err := row.Scan(&rec.KeyID, &rec.PublicKey, &rec.CreatedAt, &rec.RotatedAt); err != nil {
		return ledger.KeyRecord{}, false
	}
	return rec, true
}

func (s *Store) PutAxiomSet(set ledger.AxiomSetRecord) error {
	_, err := s.db.Exec(`INSERT INTO axiom_sets (hash, yaml, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (hash) DO NOTHING`,
		set.Hash, set.YAML, set.CreatedAt)
	return err
}

func (s *Store) GetAxiomSet(hash string) (ledger.AxiomSetRecord, bool) {
	var rec ledger.AxiomSetRecord
	row := s.db.QueryRow(`SELECT hash, yaml, created_at FROM axiom_sets WHERE hash = $1`, hash)
	if err := row.Scan(&rec.Hash, &rec.YAML, &rec.CreatedAt); err != nil {
		return ledger.AxiomSetRecord{}, false
	}
	return rec, true
}

func (s *Store) AppendAttestation(att ledger.AttestationRecord) error {
	_, err := s.db.Exec(`INSERT INTO attestations
(attestation_id, created_at, input_digest, axiom_set_hash, verdict, source, key_id, sig, body_json)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (attestation_id) DO NOTHING`,
		att.AttestationID, att.CreatedAt, att.InputDigest, att.AxiomSetHash,
		att.Verdict, att.Source, att.KeyID, att.Sig, string(att.BodyJSON))
	return err
}

func (s *Store) GetAttestation(attestationID string) (ledger.AttestationRecord, bool) {
	row := s.db.QueryRow(`SELECT attestation_id, created_at, input_digest, axiom_set_hash, verdict, source, key_id, sig, body_json
FROM attestations WHERE attestation_id = $1`, attestationID)
	return scanAttestation(row)
}

func (s *Store) GetAttestationByInput(axiomSetHash, inputDigest string) (ledger.AttestationRecord, bool) {
	row := s.db.QueryRow(`SELECT attestation_id, created_at, input_digest, axiom_set_hash, verdict, source, key_id, sig, body_json
FROM attestations WHERE axiom_set_hash = $1 AND input_digest = $2`, axiomSetHash, inputDigest)
	return scanAttestation(row)
}

func scanAttestation(row *sql.Row) (ledger.AttestationRecord, bool) {
	var rec ledger.AttestationRecord
	var body string
	if err := row.Scan(&rec.AttestationID, &rec.CreatedAt, &rec.InputDigest, &rec.AxiomSetHash,
		&rec.Verdict, &rec.Source, &rec.KeyID, &rec.Sig, &body); err != nil {
		return ledger.AttestationRecord{}, false
	}
	rec.BodyJSON = []byte(body)
	return rec, true
}

func (s *Store) PutOutbox(rec ledger.OutboxRecord) error {
	_, err := s.db.Exec(`INSERT INTO outbox
(attestation_id, status, attempt_count, next_attempt_at, last_error, sent_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (attestation_id) DO UPDATE SET
status = excluded.status,
attempt_count = excluded.attempt_count,
next_attempt_at = excluded.next_attempt_at,
last_error = excluded.last_error,
sent_at = excluded.sent_at,
updated_at = excluded.updated_at`,
		rec.AttestationID, rec.Status, rec.AttemptCount, rec.NextAttemptAt,
		rec.LastError, rec.SentAt, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (s *Store) GetOutbox(attestationID string) (ledger.OutboxRecord, bool) {
	var rec ledger.OutboxRecord
	row := s.db.QueryRow(`SELECT attestation_id, status, attempt_count, next_attempt_at, last_error, sent_at, created_at, updated_at
FROM outbox WHERE attestation_id = $1`, attestationID)
	if err := row.Scan(&rec.AttestationID, &rec.Status, &rec.AttemptCount, &rec.NextAttemptAt,
		&rec.LastError, &rec.SentAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return ledger.OutboxRecord{}, false
	}
	return rec, true
}

func (s *Store) ListOutboxDue(now string, limit int) ([]ledger.OutboxRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT attestation_id, status, attempt_count, next_attempt_at, last_error, sent_at, created_at, updated_at
FROM outbox
WHERE status = 'pending' AND next_attempt_at <= $1
ORDER BY created_at ASC
LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ledger.OutboxRecord{}
	for rows.Next() {
		var rec ledger.OutboxRecord
		if err := rows.Scan(&rec.AttestationID, &rec.Status, &rec.AttemptCount, &rec.NextAttemptAt,
			&rec.LastError, &rec.SentAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
