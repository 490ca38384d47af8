package webserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/federatedforum/fedcore/internal/db"
	"github.com/federatedforum/fedcore/internal/gtsmodel"
)

// fakeStore answers only the lookups activityHandler/actorHandler need
// and embeds db.DB so every other method is unimplemented-but-compiling.
type fakeStore struct {
	db.DB
	entries map[string]*gtsmodel.ActivityLogEntry
	actors  map[string]*gtsmodel.Actor
}

func (f *fakeStore) GetActivityLogEntryByAPID(ctx context.Context, apID string) (*gtsmodel.ActivityLogEntry, error) {
	entry, ok := f.entries[apID]
	if !ok {
		return nil, db.ErrNoEntries
	}
	return entry, nil
}

func (f *fakeStore) GetActorByURI(ctx context.Context, uri string) (*gtsmodel.Actor, error) {
	actor, ok := f.actors[uri]
	if !ok {
		return nil, db.ErrNoEntries
	}
	return actor, nil
}

func TestActivityHandlerServesLocalNonSensitiveEntry(t *testing.T) {
	apID := "https://forum.example/u/alice/activities/create/1"
	store := &fakeStore{entries: map[string]*gtsmodel.ActivityLogEntry{
		apID: {APID: apID, Data: []byte(`{"id":"` + apID + `"}`), Local: true, Sensitive: false},
	}}
	h := activityHandler{store: store}

	req := httptest.NewRequest(http.MethodGet, "/u/alice/activities/create/1", nil)
	req.Host = "forum.example"
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()

	h.serve(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/activity+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), apID)
}

func TestActivityHandlerHidesSensitiveEntry(t *testing.T) {
	apID := "https://forum.example/u/alice/activities/create/2"
	store := &fakeStore{entries: map[string]*gtsmodel.ActivityLogEntry{
		apID: {APID: apID, Data: []byte(`{}`), Local: true, Sensitive: true},
	}}
	h := activityHandler{store: store}

	req := httptest.NewRequest(http.MethodGet, "/u/alice/activities/create/2", nil)
	req.Host = "forum.example"
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()

	h.serve(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActivityHandlerMissingEntryIs404(t *testing.T) {
	store := &fakeStore{entries: map[string]*gtsmodel.ActivityLogEntry{}}
	h := activityHandler{store: store}

	req := httptest.NewRequest(http.MethodGet, "/u/alice/activities/create/404", nil)
	req.Host = "forum.example"
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()

	h.serve(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActorHandlerServesLocalActorAsActivityJSON(t *testing.T) {
	uri := "https://forum.example/u/alice"
	store := &fakeStore{actors: map[string]*gtsmodel.Actor{
		uri: {
			URI: uri, Type: gtsmodel.ActorPerson, Username: "alice",
			Inbox: uri + "/inbox", Outbox: uri + "/outbox",
			Local: true, PublicKeyPEM: "-----BEGIN PUBLIC KEY-----\nfake\n-----END PUBLIC KEY-----",
		},
	}}
	h := actorHandler{store: store}

	req := httptest.NewRequest(http.MethodGet, "/u/alice", nil)
	req.Host = "forum.example"
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("Accept", "application/activity+json")
	rec := httptest.NewRecorder()

	h.serve(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), uri)
	assert.Contains(t, rec.Body.String(), "alice")
}

func TestActorHandlerRejectsNonActivityJSONAccept(t *testing.T) {
	store := &fakeStore{actors: map[string]*gtsmodel.Actor{}}
	h := actorHandler{store: store}

	req := httptest.NewRequest(http.MethodGet, "/u/alice", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	h.serve(rec, req)

	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
}

func TestActorHandlerHidesRemoteActor(t *testing.T) {
	uri := "https://forum.example/u/bob"
	store := &fakeStore{actors: map[string]*gtsmodel.Actor{
		uri: {URI: uri, Type: gtsmodel.ActorPerson, Username: "bob", Local: false},
	}}
	h := actorHandler{store: store}

	req := httptest.NewRequest(http.MethodGet, "/u/bob", nil)
	req.Host = "forum.example"
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("Accept", "application/activity+json")
	rec := httptest.NewRecorder()

	h.serve(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestURIReconstructsSchemeHostPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/u/alice/activities/create/1", nil)
	req.Host = "forum.example"
	req.Header.Set("X-Forwarded-Proto", "https")

	assert.Equal(t, "https://forum.example/u/alice/activities/create/1", requestURI(req))
}

func TestAcceptsActivityJSON(t *testing.T) {
	cases := []struct {
		accept string
		want   bool
	}{
		{"", true},
		{"application/activity+json", true},
		{"application/ld+json; profile=\"https://www.w3.org/ns/activitystreams\"", true},
		{"*/*", true},
		{"text/html", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/u/alice", nil)
		req.Header.Set("Accept", tc.accept)
		assert.Equal(t, tc.want, acceptsActivityJSON(req), "Accept: %q", tc.accept)
	}
}
