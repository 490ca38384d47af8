package main

import (
	"context"
	"testing"

	"github.com/federatedforum/fedcore/internal/db"
	"github.com/federatedforum/fedcore/internal/gtsmodel"
)

type fakeActorStore struct {
	db.DB
	actors map[string]*gtsmodel.Actor // keyed by username
}

func (f *fakeActorStore) GetActorByUsernameDomain(ctx context.Context, username, domain string) (*gtsmodel.Actor, error) {
	actor, ok := f.actors[username]
	if !ok {
		return nil, db.ErrNoEntries
	}
	return actor, nil
}

func TestLocalActorLookupMatchesTypeAndLocality(t *testing.T) {
	store := &fakeActorStore{actors: map[string]*gtsmodel.Actor{
		"alice": {URI: "https://forum.example/u/alice", Type: gtsmodel.ActorPerson, Local: true},
		"myteam": {URI: "https://forum.example/c/myteam", Type: gtsmodel.ActorCommunity, Local: true},
		"remote": {URI: "https://other.example/u/remote", Type: gtsmodel.ActorPerson, Local: false},
	}}
	lookup := localActorLookup(store, "forum.example")

	uri, err := lookup(context.Background(), "alice", false)
	if err != nil || uri != "https://forum.example/u/alice" {
		t.Fatalf("alice lookup: uri=%q err=%v", uri, err)
	}

	uri, err = lookup(context.Background(), "myteam", true)
	if err != nil || uri != "https://forum.example/c/myteam" {
		t.Fatalf("myteam lookup: uri=%q err=%v", uri, err)
	}

	if _, err := lookup(context.Background(), "alice", true); err == nil {
		t.Fatal("expected error when actor type does not match requested kind")
	}

	if _, err := lookup(context.Background(), "remote", false); err == nil {
		t.Fatal("expected error for non-local actor")
	}

	if _, err := lookup(context.Background(), "nobody", false); err == nil {
		t.Fatal("expected error for unknown username")
	}
}
