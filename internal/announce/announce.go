// Package announce implements the community announce side-effect
// (§4.4 last paragraph, §4.5): when a local community authoritatively
// receives a community-scoped activity, it republishes that activity,
// wrapped in Announce, to every remote follower's inbox.
package announce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/federatedforum/fedcore/internal/ap"
	"github.com/federatedforum/fedcore/internal/db"
	"github.com/federatedforum/fedcore/internal/gtsmodel"
	"github.com/federatedforum/fedcore/internal/id"
	"github.com/federatedforum/fedcore/internal/urlfilter"
)

// Announcer wraps community-scoped activities for redistribution and
// appends them to the activity log for the send workers to pick up.
type Announcer struct {
	db        db.DB
	filter    *urlfilter.Filter
	host      string
	deadAfter time.Duration
}

// New builds an Announcer. deadAfter is the same dead-instance
// threshold the send manager uses (internal/send.Config.DeadThreshold,
// internal/gtsmodel.FederationQueueState.IsDead) — an instance that's
// Dead to the send manager is also Dead here, so recipientSet never
// resolves a follower inbox the send manager has already stopped
// delivering to.
func New(store db.DB, filter *urlfilter.Filter, host string, deadAfter time.Duration) *Announcer {
	return &Announcer{db: store, filter: filter, host: host, deadAfter: deadAfter}
}

// Announce republishes a received activity on behalf of a local
// community (§4.4, §4.5). raw is the exact bytes the activity was
// decoded from, embedded in the Announce envelope with whitespace
// compacted and otherwise unchanged. The inbox of the actor at
// originatingActorURI is excluded from the recipient set to avoid echo.
func (a *Announcer) Announce(ctx context.Context, community *gtsmodel.Actor, act *ap.Activity, raw []byte, originatingActorURI string) error {
	if !community.IsCommunity() || !community.Local {
		return nil
	}
	if !community.FederatesPublicly() {
		return nil
	}

	recipients, inboxes, err := a.recipientSet(ctx, community, originatingActorURI)
	if err != nil {
		return fmt.Errorf("announce: resolve recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil
	}

	to := []string{community.FollowersURL}
	cc := []string{ap.PublicURI}

	envelopeID := community.URI + "/activities/announce/" + id.New()
	wire, err := ap.BuildAnnounce(envelopeID, community.URI, to, cc, json.RawMessage(raw))
	if err != nil {
		return fmt.Errorf("announce: build envelope: %w", err)
	}

	if err := a.logForDelivery(ctx, envelopeID, wire, recipients, false); err != nil {
		return err
	}

	// Compatibility duplicate for Create<Page>/Update<Page> (§4.5).
	if act.Type == ap.ActivityCreate || act.Type == ap.ActivityUpdate {
		if act.ObjectType == ap.ObjectPage && act.Object != nil {
			compatID := community.URI + "/activities/announce/" + id.New()
			compatWire, err := ap.BuildCompatibilityAnnounce(compatID, community.URI, to, cc, act.Object)
			if err == nil {
				_ = a.logForDelivery(ctx, compatID, compatWire, recipients, false)
			}
		}
	}

	_ = inboxes // recipients are resolved to instance domains for the
	// log's Recipients column; the per-instance send worker (§4.7)
	// delivers to that instance's stored InboxURL, not to these
	// per-follower inbox URLs.
	return nil
}

// logForDelivery appends an outbound activity-log entry. Recipients
// are instance domains (not inbox URLs): send workers batch-read by
// recipient-instance membership (§4.7 step 2).
func (a *Announcer) logForDelivery(ctx context.Context, apID string, wire []byte, recipients []string, sensitive bool) error {
	entry := &gtsmodel.ActivityLogEntry{
		APID:        apID,
		Data:        wire,
		Local:       true,
		Sensitive:   sensitive,
		PublishedAt: time.Now().UTC(),
		Recipients:  recipients,
	}
	return a.db.PutActivityLogEntry(ctx, entry)
}

// recipientSet resolves the community's follower set to a deduplicated
// instance-domain list (for the activity log) and a deduplicated
// inbox-URL list (informational). Drops inboxes whose host is on the
// block list, classified Dead, or that are the originating actor's
// preferred inbox (§4.5 "Drop inboxes whose host is on the block list
// or classified Dead").
func (a *Announcer) recipientSet(ctx context.Context, community *gtsmodel.Actor, originatingActorURI string) (instances []string, inboxes []string, err error) {
	allInboxes, err := a.db.GetFollowerInboxes(ctx, community.ID)
	if err != nil {
		return nil, nil, err
	}

	originInbox := ""
	if origin, oerr := a.db.GetActorByURI(ctx, originatingActorURI); oerr == nil {
		originInbox = origin.PreferredInbox()
	}

	seenInstance := make(map[string]bool, len(allInboxes))
	seenInbox := make(map[string]bool, len(allInboxes))

	for _, inbox := range allInboxes {
		if inbox == "" || inbox == originInbox || seenInbox[inbox] {
			continue
		}
		host := hostOf(inbox)
		if host == "" || host == a.host {
			continue
		}
		if a.filter.IsBlockedHost(host) {
			continue
		}
		inst, ierr := a.db.GetInstanceByDomain(ctx, host)
		if ierr == nil {
			if !inst.Allowed {
				continue
			}
			if state, serr := a.db.GetFederationQueueState(ctx, inst.ID); serr == nil && state.IsDead(a.deadAfter) {
				continue
			}
		}
		seenInbox[inbox] = true
		inboxes = append(inboxes, inbox)
		if !seenInstance[host] {
			seenInstance[host] = true
			instances = append(instances, host)
		}
	}
	return instances, inboxes, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
