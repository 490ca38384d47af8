package bundb

import (
	"context"
	"errors"

	"github.com/federatedforum/fedcore/internal/db"
	"github.com/federatedforum/fedcore/internal/gtsmodel"
	"github.com/uptrace/bun"
)

// PutActivityLogEntry appends a new entry. A unique-constraint
// violation on ap_id is treated as a no-op by callers that check
// errors.Is(err, db.ErrAlreadyExists) to implement the inbound dedup
// rule (§4.3 step 2).
func (s *Store) PutActivityLogEntry(ctx context.Context, entry *gtsmodel.ActivityLogEntry) error {
	if _, err := s.conn.NewInsert().Model(entry).Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	return nil
}

func (s *Store) GetActivityLogEntryByAPID(ctx context.Context, apID string) (*gtsmodel.ActivityLogEntry, error) {
	var entry gtsmodel.ActivityLogEntry
	if err := s.conn.NewSelect().Model(&entry).
		Where("? = ?", bun.Ident("ap_id"), apID).
		Scan(ctx); err != nil {
		return nil, s.conn.ProcessError(err)
	}
	return &entry, nil
}

// GetActivityLogEntriesAfter is the outbound worker's batch read
// (§4.7 step 2): entries with id > afterID whose resolved recipient
// set contains forInstance, oldest first, capped at limit.
func (s *Store) GetActivityLogEntriesAfter(ctx context.Context, afterID int64, forInstance string, limit int) ([]*gtsmodel.ActivityLogEntry, error) {
	entries := make([]*gtsmodel.ActivityLogEntry, 0, limit)
	if err := s.conn.NewSelect().Model(&entries).
		Where("? > ?", bun.Ident("id"), afterID).
		Where("? = ANY(?)", forInstance, bun.Ident("recipients")).
		OrderExpr("? ASC", bun.Ident("id")).
		Limit(limit).
		Scan(ctx); err != nil {
		return nil, s.conn.ProcessError(err)
	}
	return entries, nil
}

func (s *Store) GetFederationQueueState(ctx context.Context, instanceID string) (*gtsmodel.FederationQueueState, error) {
	var state gtsmodel.FederationQueueState
	err := s.conn.NewSelect().Model(&state).
		Where("? = ?", bun.Ident("instance_id"), instanceID).
		Scan(ctx)
	if err != nil {
		if errors.Is(s.conn.ProcessError(err), db.ErrNoEntries) {
			return &gtsmodel.FederationQueueState{InstanceID: instanceID}, nil
		}
		return nil, s.conn.ProcessError(err)
	}
	return &state, nil
}

// UpsertFederationQueueState persists a cursor advance or failure-count
// update. Per §4.7 step 5 ("cursor advance and activity-log write
// happen in the same durability scope as the send attempt itself"),
// callers write this *before* the next send attempt begins, never
// after, so a crash mid-send never re-delivers past the cursor.
func (s *Store) UpsertFederationQueueState(ctx context.Context, state *gtsmodel.FederationQueueState) error {
	if _, err := s.conn.NewInsert().Model(state).
		On("CONFLICT (instance_id) DO UPDATE").
		Set("? = EXCLUDED.last_successful_id", bun.Ident("last_successful_id")).
		Set("? = EXCLUDED.last_successful_published_at", bun.Ident("last_successful_published_at")).
		Set("? = EXCLUDED.fail_count", bun.Ident("fail_count")).
		Set("? = EXCLUDED.last_retry_at", bun.Ident("last_retry_at")).
		Set("? = EXCLUDED.first_failure_at", bun.Ident("first_failure_at")).
		Exec(ctx); err != nil {
		return s.conn.ProcessError(err)
	}
	return nil
}

var _ db.Federation = (*Store)(nil)
