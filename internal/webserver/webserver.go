// Package webserver assembles the federation core's external HTTP
// surface (§6): the shared inbox, WebFinger, the local activity-log
// lookup, and actor profile documents. It is the thinnest possible
// layer over the handlers the other packages already export — there is
// no routing library here, just the pattern-matching stdlib mux the
// rest of this module's HTTP code already relies on.
package webserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/federatedforum/fedcore/internal/ap"
	"github.com/federatedforum/fedcore/internal/db"
	"github.com/federatedforum/fedcore/internal/gtsmodel"
	"github.com/federatedforum/fedcore/internal/log"
	"github.com/federatedforum/fedcore/internal/webfinger"
)

// Deps collects everything the external surface needs to answer
// requests; everything here is already constructed by cmd/federation.
type Deps struct {
	Store   db.DB
	Inbox   http.Handler // internal/inbox.Manager
	Host    string
	Lookup  webfinger.ActorLookup
}

// Mux builds the complete external-facing handler (§6 "EXTERNAL
// INTERFACES"): shared inbox at the three documented paths, WebFinger,
// activity lookup, and actor profile documents.
func Mux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("POST /inbox", d.Inbox)
	mux.Handle("POST /u/{name}/inbox", d.Inbox)
	mux.Handle("POST /c/{name}/inbox", d.Inbox)

	mux.Handle("GET /.well-known/webfinger", webfinger.ServeHandler(d.Host, d.Lookup))

	activities := activityHandler{store: d.Store}
	mux.HandleFunc("GET /activities/{type}/{id}", activities.serve)
	mux.HandleFunc("GET /u/{name}/activities/{type}/{id}", activities.serve)
	mux.HandleFunc("GET /c/{name}/activities/{type}/{id}", activities.serve)

	actors := actorHandler{store: d.Store}
	mux.HandleFunc("GET /u/{name}", actors.serve)
	mux.HandleFunc("GET /c/{name}", actors.serve)

	return mux
}

// activityHandler implements GET /activities/{type}/{id} (§6): returns
// a previously-sent, non-sensitive local activity by its full ap_id,
// which the request's own scheme+host+path reconstructs exactly — the
// same string an actor's own activities are stored under (see
// internal/announce and internal/dispatch, which build ap_ids as
// `{actorURI}/activities/{type}/{id}`).
type activityHandler struct {
	store db.DB
}

func (h activityHandler) serve(w http.ResponseWriter, r *http.Request) {
	apID := requestURI(r)

	entry, err := h.store.GetActivityLogEntryByAPID(r.Context(), apID)
	if err != nil {
		if errors.Is(err, db.ErrNoEntries) {
			http.NotFound(w, r)
			return
		}
		log.WithContext(r.Context()).Errorf("webserver: activity lookup %s: %v", apID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if entry.Sensitive || !entry.Local {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/activity+json")
	_, _ = w.Write(entry.Data)
}

// actorHandler implements GET /{actor-path} (§6): actor JSON for
// federation clients, content negotiated on Accept. The text/html case
// is left to an external collaborator (the web UI) — this handler only
// ever answers the activity+json case, and 406s otherwise rather than
// guessing at HTML it has no template for.
type actorHandler struct {
	store db.DB
}

func (h actorHandler) serve(w http.ResponseWriter, r *http.Request) {
	if !acceptsActivityJSON(r) {
		http.Error(w, "this endpoint only serves application/activity+json", http.StatusNotAcceptable)
		return
	}

	apID := requestURI(r)
	actor, err := h.store.GetActorByURI(r.Context(), apID)
	if err != nil {
		if errors.Is(err, db.ErrNoEntries) {
			http.NotFound(w, r)
			return
		}
		log.WithContext(r.Context()).Errorf("webserver: actor lookup %s: %v", apID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !actor.Local || actor.Deleted {
		http.NotFound(w, r)
		return
	}

	doc, err := ap.BuildActor(actorDocument(actor))
	if err != nil {
		log.WithContext(r.Context()).Errorf("webserver: encode actor %s: %v", apID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/activity+json")
	_, _ = w.Write(doc)
}

func actorDocument(a *gtsmodel.Actor) *ap.ActorDocument {
	return &ap.ActorDocument{
		ID:           a.URI,
		Type:         ap.ObjectType(a.Type),
		Username:     a.Username,
		Inbox:        a.Inbox,
		Outbox:       a.Outbox,
		SharedInbox:  a.SharedInbox,
		Followers:    a.FollowersURL,
		Moderators:   a.ModeratorsURL,
		Featured:     a.FeaturedURL,
		PublicKeyID:  a.URI + "#main-key",
		PublicKeyPEM: a.PublicKeyPEM,
	}
}

// requestURI reconstructs the ap_id this request is addressing: the
// same scheme+host+path string the owning actor's ap_ids were minted
// with (§9 "store references as ap_id URLs").
func requestURI(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil && r.Header.Get("X-Forwarded-Proto") != "https" {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.Path
}

func acceptsActivityJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if accept == "" {
		return true
	}
	for _, want := range []string{"application/activity+json", "application/ld+json", "*/*"} {
		if strings.Contains(accept, want) {
			return true
		}
	}
	return false
}
