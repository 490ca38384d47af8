package gtsmodel

import "time"

// Instance is a remote or local federation peer, keyed by domain (§3
// "InstanceId — opaque identifier of a remote or local instance, keyed
// by domain").
type Instance struct {
	ID       string    `bun:"id,pk,type:varchar,nullzero,notnull,unique"`
	Domain   string    `bun:"domain,type:varchar,nullzero,notnull,unique"`
	LastSeen time.Time `bun:"last_seen,nullzero"`
	Software string    `bun:"software,type:varchar,nullzero"`
	Version  string    `bun:"version,type:varchar,nullzero"`

	// InboxURL is the shared inbox to which the per-instance send worker
	// (§4.7) delivers outbound activities, adopted from the first
	// remote actor on this instance the resolver ever fetches.
	InboxURL string `bun:"inbox_url,type:varchar,nullzero"`

	// Allowed reflects the operator allow/block policy for this
	// instance, independent of liveness (§4.2, §6).
	Allowed bool `bun:"allowed,notnull,default:true"`
}

// LivenessTag is the derived view described in §3: Allowed, Blocked, Dead.
type LivenessTag int

const (
	LivenessAllowed LivenessTag = iota
	LivenessBlocked
	LivenessDead
)

func (l LivenessTag) String() string {
	switch l {
	case LivenessAllowed:
		return "allowed"
	case LivenessBlocked:
		return "blocked"
	case LivenessDead:
		return "dead"
	default:
		return "unknown"
	}
}
