package gtsmodel

import "time"

// ActivityLogEntry is the append-only record of every activity the
// local node has emitted or received (§3). Its monotonic ID is the
// sole ordering used by outbound workers; APID is unique and used for
// inbound dedup.
type ActivityLogEntry struct {
	ID     int64  `bun:"id,pk,autoincrement"`
	APID   string `bun:"ap_id,type:varchar,nullzero,notnull,unique"`
	Data   []byte `bun:"data,type:jsonb,nullzero,notnull"`
	Local  bool   `bun:"local,notnull,default:false"`

	// Sensitive entries (e.g. private messages) are never served back
	// by GET /activities/{type}/{id} (§6).
	Sensitive bool `bun:"sensitive,notnull,default:false"`

	// PublishedAt mirrors the activity's own "published" field, used
	// by outbound workers purely for observability; ordering itself
	// is by ID, never by this timestamp (§3 invariant).
	PublishedAt time.Time `bun:"published_at,nullzero,notnull"`

	// Recipients is the resolved set of remote instance domains this
	// activity must eventually be delivered to; send workers filter
	// their batch read on membership in this set (§4.7 step 2).
	Recipients []string `bun:"recipients,array"`
}

// FederationQueueState is the per-remote-instance cursor and retry
// counters described in §3 and driven by the send workers in §4.7.
type FederationQueueState struct {
	InstanceID                string     `bun:"instance_id,pk,type:varchar,nullzero,notnull"`
	LastSuccessfulID          *int64     `bun:"last_successful_id"`
	LastSuccessfulPublishedAt *time.Time `bun:"last_successful_published_at"`
	FailCount                 int32      `bun:"fail_count,notnull,default:0"`
	LastRetryAt               *time.Time `bun:"last_retry_at"`

	// FirstFailureAt anchors the dead-instance threshold: the
	// wall-clock span of *continuous* failure, reset to nil on any
	// successful delivery (§4.7 step 7, Open Question decision in
	// SPEC_FULL.md).
	FirstFailureAt *time.Time `bun:"first_failure_at"`
}

// Cursor returns the id after which the next batch read should start,
// treating an unset LastSuccessfulID as "from the beginning".
func (f *FederationQueueState) Cursor() int64 {
	if f.LastSuccessfulID == nil {
		return 0
	}
	return *f.LastSuccessfulID
}

// IsDead reports whether this instance has been failing continuously
// for at least deadAfter (§3 Dead liveness tag, §4.6/§4.7 "the instance
// transitions to Dead"). Both the send manager (to tear the worker
// down) and internal/stats (to report the gauge) derive Dead from this
// one method so the two never disagree about which instances are dead.
func (f *FederationQueueState) IsDead(deadAfter time.Duration) bool {
	if f.FirstFailureAt == nil || deadAfter <= 0 {
		return false
	}
	return time.Since(*f.FirstFailureAt) >= deadAfter
}
