// Package outbox delivers signed attestations to downstream consumers.
//
// Delivery is decoupled from the decision path: the engine enqueues a
// pending record in the ledger, and a worker drains due records and
// publishes the attestation body. Failed publishes back off exponentially.
package outbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/axiomhive/axiomd/internal/ledger"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
)

// Publisher delivers one attestation body to the downstream transport.
type Publisher interface {
	PublishAttestation(ctx context.Context, attestationID string, body []byte) error
}

// Enqueue records a pending delivery for the given attestation. Re-enqueueing
// an attestation that already has an outbox record leaves it untouched.
func Enqueue(store ledger.Store, attestationID string, now time.Time) error {
	if store == nil {
		return fmt.Errorf("missing store")
	}
	if _, ok := store.GetOutbox(attestationID); ok {
		return nil
	}
	ts := now.UTC().Format(time.RFC3339)
	return store.PutOutbox(ledger.OutboxRecord{
		AttestationID: attestationID,
		Status:        StatusPending,
		AttemptCount:  0,
		NextAttemptAt: ts,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	})
}

// ProcessDue publishes due pending records and updates the outbox.
// It applies exponential backoff when publishing fails.
func ProcessDue(ctx context.Context, store ledger.Store, pub Publisher, now time.Time, limit int) (int, error) {
	if store == nil {
		return 0, fmt.Errorf("missing store")
	}
	if pub == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = 50
	}

	due, err := store.ListOutboxDue(now.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, rec := range due {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		if rec.Status != StatusPending {
			continue
		}

		att, ok := store.GetAttestation(rec.AttestationID)
		if !ok {
			// Orphaned record; mark as sent to prevent infinite retries.
			msg := "attestation not found in ledger"
			rec.LastError = &msg
			markSent(&rec, now)
			if err := store.PutOutbox(rec); err != nil {
				return processed, err
			}
			processed++
			continue
		}

		if err := pub.PublishAttestation(ctx, rec.AttestationID, att.BodyJSON); err != nil {
			next := nextAttempt(rec.AttemptCount)
			rec.AttemptCount++
			rec.NextAttemptAt = now.UTC().Add(next).Format(time.RFC3339)
			msg := err.Error()
			rec.LastError = &msg
			rec.UpdatedAt = now.UTC().Format(time.RFC3339)
			if err := store.PutOutbox(rec); err != nil {
				return processed, err
			}
			processed++
			continue
		}

		rec.LastError = nil
		markSent(&rec, now)
		if err := store.PutOutbox(rec); err != nil {
			return processed, err
		}
		processed++
	}

	return processed, nil
}

func markSent(rec *ledger.OutboxRecord, now time.Time) {
	sentAt := now.UTC().Format(time.RFC3339)
	rec.Status = StatusSent
	rec.SentAt = &sentAt
	rec.UpdatedAt = sentAt
}

func nextAttempt(attemptCount int) time.Duration {
	// 5s, 10s, 20s, 40s, 80s, 160s, ... capped at 5m.
	base := 5 * time.Second
	max := 5 * time.Minute
	if attemptCount <= 0 {
		return base
	}
	// base<<7 already exceeds the cap; larger shifts would overflow the
	// duration and schedule the retry in the past.
	if attemptCount >= 7 {
		return max
	}
	d := base << attemptCount
	if d > max {
		return max
	}
	return d
}

// Run polls and processes due outbox entries until ctx is cancelled.
func Run(ctx context.Context, store ledger.Store, pub Publisher, pollInterval time.Duration, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := ProcessDue(ctx, store, pub, now, 25); err != nil && ctx.Err() == nil {
				logger.Warn("outbox pass failed", zap.Error(err))
			}
		}
	}
}
