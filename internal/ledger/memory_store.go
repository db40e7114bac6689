package ledger

import (
	"sort"
	"sync"
)

type InMemoryStore struct {
	mu sync.Mutex

	keys         map[string]KeyRecord
	axiomSets    map[string]AxiomSetRecord
	attestations map[string]AttestationRecord
	byInput      map[string]string
	outbox       map[string]OutboxRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		keys:         make(map[string]KeyRecord),
		axiomSets:    make(map[string]AxiomSetRecord),
		attestations: make(map[string]AttestationRecord),
		byInput:      make(map[string]string),
		outbox:       make(map[string]OutboxRecord),
	}
}

func (s *InMemoryStore) PutKey(key KeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.KeyID] = key
	return nil
}

func (s *InMemoryStore) GetKey(keyID string) (KeyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[keyID]
	return key, ok
}

func (s *InMemoryStore) PutAxiomSet(set AxiomSetRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.axiomSets[set.Hash] = set
	return nil
}

func (s *InMemoryStore) GetAxiomSet(hash string) (AxiomSetRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.axiomSets[hash]
	return set, ok
}

func (s *InMemoryStore) AppendAttestation(att AttestationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attestations[att.AttestationID]; ok {
		return nil
	}
	s.attestations[att.AttestationID] = att
	s.byInput[att.AxiomSetHash+"|"+att.InputDigest] = att.AttestationID
	return nil
}

func (s *InMemoryStore) GetAttestation(attestationID string) (AttestationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	att, ok := s.attestations[attestationID]
	return att, ok
}

func (s *InMemoryStore) GetAttestationByInput(axiomSetHash, inputDigest string) (AttestationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byInput[axiomSetHash+"|"+inputDigest]
	if !ok {
		return AttestationRecord{}, false
	}
	att, ok := s.attestations[id]
	return att, ok
}

func (s *InMemoryStore) PutOutbox(rec OutboxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox[rec.AttestationID] = rec
	return nil
}

func (s *InMemoryStore) GetOutbox(attestationID string) (OutboxRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.outbox[attestationID]
	return rec, ok
}

func (s *InMemoryStore) ListOutboxDue(now string, limit int) ([]OutboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []OutboxRecord{}
	for _, rec := range s.outbox {
		if rec.Status != "pending" {
			continue
		}
		if rec.NextAttemptAt > now {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt < out[j].CreatedAt
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
