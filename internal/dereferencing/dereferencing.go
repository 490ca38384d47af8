// Package dereferencing implements the actor resolver named in §4.2:
// fetch-or-use-cache by ap_id, the local/remote split, WebFinger-backed
// handle resolution, and the staleness/recursion-budget/URL-policy
// rules that gate every outbound fetch.
package dereferencing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/federatedforum/fedcore/internal/ap"
	"github.com/federatedforum/fedcore/internal/db"
	"github.com/federatedforum/fedcore/internal/gtserror"
	"github.com/federatedforum/fedcore/internal/gtscontext"
	"github.com/federatedforum/fedcore/internal/gtsmodel"
	"github.com/federatedforum/fedcore/internal/httpsig"
	"github.com/federatedforum/fedcore/internal/id"
	"github.com/federatedforum/fedcore/internal/log"
	"github.com/federatedforum/fedcore/internal/urlfilter"
	"github.com/federatedforum/fedcore/internal/webfinger"
	neturl "net/url"
)

// isNotFoundDB reports whether err is the store layer's not-found
// sentinel, distinct from gtserror.ErrNotFound (used only by this
// resolver's own terminal returns).
func isNotFoundDB(err error) bool {
	return errors.Is(err, db.ErrNoEntries)
}

// hostOf extracts the hostname from an ap_id URL, returning "" if the
// URL fails to parse (callers treat that as "not this host").
func hostOf(rawURL string) string {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Doer is the HTTP surface the resolver needs to fetch actor documents.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Resolver is the actor resolver described in §4.2. It is the one path
// by which a remote ap_id becomes a gtsmodel.Actor row: every other
// package (inbox, dispatch, send) asks this for an actor rather than
// hitting the DB or the network directly.
type Resolver struct {
	db       db.DB
	client   Doer
	filter   *urlfilter.Filter
	signer   *httpsig.Signer // nil: fetches unsigned (AllowUnauthedLookup)
	host     string
	staleAfter time.Duration
}

// New constructs a Resolver. signer may be nil, in which case actor
// fetches are sent unsigned — only valid when config.AllowUnauthedLookup
// is set, a decision made by the caller wiring this up.
func New(store db.DB, client Doer, filter *urlfilter.Filter, signer *httpsig.Signer, host string, staleAfter time.Duration) *Resolver {
	return &Resolver{
		db:         store,
		client:     client,
		filter:     filter,
		signer:     signer,
		host:       host,
		staleAfter: staleAfter,
	}
}

// Dereference resolves an ap_id to an Actor, per §4.2: local actors
// resolve from the DB only (DereferenceLocal semantics); for
// everything else, a cached-and-fresh row is returned as-is, a
// cached-but-stale row triggers a background-ineligible synchronous
// refetch, and a cache miss performs a full fetch, subject to the
// recursion budget and URL filter.
func (r *Resolver) Dereference(ctx context.Context, uri string) (*gtsmodel.Actor, error) {
	actor, err := r.db.GetActorByURI(ctx, uri)
	if err != nil && !isNotFoundDB(err) {
		return nil, gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
	}

	if actor != nil {
		if actor.Local {
			return actor, nil
		}
		if actor.Deleted {
			return nil, gtserror.ErrDeleted
		}
		if time.Since(actor.LastRefreshedAt) < r.staleAfter {
			return actor, nil
		}
		// Stale: fall through to refetch, but don't fail the whole
		// lookup if the refetch itself fails — serve the stale copy.
		refreshed, ferr := r.fetchAndStore(ctx, uri, actor)
		if ferr != nil {
			log.WithContext(ctx).Warnf("dereference: refresh of %s failed, serving stale copy: %v", uri, ferr)
			return actor, nil
		}
		return refreshed, nil
	}

	if r.host != "" && hostOf(uri) == r.host {
		return nil, gtserror.ErrNotFound
	}

	return r.fetchAndStore(ctx, uri, nil)
}

// DereferenceLocal resolves a username (and community flag) to a local
// actor, never touching the network (§4.2).
func (r *Resolver) DereferenceLocal(ctx context.Context, username string, isCommunity bool) (*gtsmodel.Actor, error) {
	actor, err := r.db.GetActorByUsernameDomain(ctx, username, r.host)
	if err != nil {
		return nil, err
	}
	wantCommunity := actor.Type == gtsmodel.ActorCommunity
	if wantCommunity != isCommunity {
		return nil, gtserror.ErrNotFound
	}
	return actor, nil
}

// ResolveHandle resolves "user@host" / "!community@host" to an Actor,
// going through WebFinger then Dereference (§4.2).
func (r *Resolver) ResolveHandle(ctx context.Context, handle string) (*gtsmodel.Actor, error) {
	local, isCommunity, host, err := webfinger.ParseHandle(handle)
	if err != nil {
		return nil, gtserror.Newf("%w: %w", gtserror.ErrCodecError, err)
	}
	if host == r.host {
		return r.DereferenceLocal(ctx, local, isCommunity)
	}

	if !r.filter.HostResolvable(ctx, host) {
		return nil, gtserror.Newf("%w: %s does not resolve", gtserror.ErrNotFound, host)
	}

	resp, err := webfinger.Resolve(ctx, r.client, local, isCommunity, host)
	if err != nil {
		return nil, err
	}
	actorURI, ok := resp.ActorURI()
	if !ok {
		return nil, gtserror.Newf("%w: webfinger response for %s had no actor link", gtserror.ErrNotFound, handle)
	}
	return r.Dereference(ctx, actorURI)
}

// fetchAndStore performs the actual outbound GET against uri, subject
// to the recursion budget and URL policy, and upserts the result.
// existing, if non-nil, is the row being refreshed (its ID is reused).
func (r *Resolver) fetchAndStore(ctx context.Context, uri string, existing *gtsmodel.Actor) (*gtsmodel.Actor, error) {
	if !gtscontext.ConsumeRecursionBudget(ctx) {
		return nil, gtserror.ErrRecursionLimit
	}
	if err := r.filter.Allowed(uri); err != nil {
		return nil, gtserror.Newf("%w: %w", gtserror.ErrUrlDisallowed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("dereferencing: build request: %w", err)
	}
	req.Header.Set("Accept", `application/activity+json`)
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	if r.signer != nil {
		if err := r.signer.Sign(req, nil); err != nil {
			return nil, fmt.Errorf("dereferencing: sign request: %w", err)
		}
	}

	rsp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dereferencing: fetch %s: %w", uri, err)
	}
	defer rsp.Body.Close()

	if rsp.StatusCode == http.StatusGone {
		if existing != nil {
			existing.Deleted = true
			_ = r.db.UpdateActor(ctx, existing, "deleted")
		}
		return nil, gtserror.ErrDeleted
	}
	if rsp.StatusCode == http.StatusNotFound {
		return nil, gtserror.ErrNotFound
	}
	if rsp.StatusCode != http.StatusOK {
		return nil, gtserror.NewFromResponse(rsp)
	}

	body, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, fmt.Errorf("dereferencing: read body: %w", err)
	}

	doc, err := ap.ParseActor(body)
	if err != nil {
		return nil, gtserror.Newf("%w: %w", gtserror.ErrCodecError, err)
	}

	instance, err := r.ensureInstance(ctx, hostOf(doc.ID), doc.SharedInbox)
	if err != nil {
		return nil, err
	}
	if !instance.Allowed {
		return nil, gtserror.ErrUrlDisallowed
	}

	actor := existing
	if actor == nil {
		actor = &gtsmodel.Actor{ID: id.New()}
	}
	actor.Type = toActorType(doc.Type)
	actor.URI = doc.ID
	actor.InstanceID = instance.ID
	actor.Username = doc.Username
	actor.Inbox = doc.Inbox
	actor.SharedInbox = doc.SharedInbox
	actor.Outbox = doc.Outbox
	actor.PublicKeyPEM = doc.PublicKeyPEM
	actor.LastRefreshedAt = time.Now().UTC()
	actor.Local = false
	actor.FollowersURL = doc.Followers
	actor.ModeratorsURL = doc.Moderators
	actor.FeaturedURL = doc.Featured
	if actor.Type == gtsmodel.ActorCommunity {
		actor.Visibility = gtsmodel.VisibilityPublic
	}

	if existing != nil {
		if err := r.db.UpdateActor(ctx, actor); err != nil {
			return nil, gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
		}
	} else {
		if err := r.db.PutActor(ctx, actor); err != nil {
			return nil, gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
		}
	}
	return actor, nil
}

func (r *Resolver) ensureInstance(ctx context.Context, domain, sharedInbox string) (*gtsmodel.Instance, error) {
	inst, err := r.db.GetInstanceByDomain(ctx, domain)
	if err == nil {
		inst.LastSeen = time.Now().UTC()
		cols := []string{"last_seen"}
		if inst.InboxURL == "" && sharedInbox != "" {
			// Adopt the first shared inbox seen for this instance as its
			// delivery target for the outbound send worker (§4.7).
			inst.InboxURL = sharedInbox
			cols = append(cols, "inbox_url")
		}
		if uerr := r.db.UpdateInstance(ctx, inst, cols...); uerr != nil {
			log.WithContext(ctx).Warnf("dereference: update instance %s: %v", domain, uerr)
		}
		return inst, nil
	}
	if !isNotFoundDB(err) {
		return nil, gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
	}
	if r.filter.IsBlockedHost(domain) {
		return nil, gtserror.ErrUrlDisallowed
	}
	inst = &gtsmodel.Instance{
		ID:       id.New(),
		Domain:   domain,
		InboxURL: sharedInbox,
		LastSeen: time.Now().UTC(),
		Allowed:  true,
	}
	if err := r.db.PutInstance(ctx, inst); err != nil {
		return nil, gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
	}
	return inst, nil
}

func toActorType(t ap.ObjectType) gtsmodel.ActorType {
	switch t {
	case ap.ObjectGroup:
		return gtsmodel.ActorCommunity
	case "Application":
		return gtsmodel.ActorSite
	default:
		return gtsmodel.ActorPerson
	}
}
