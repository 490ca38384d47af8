package ap

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCreateNote(t *testing.T) {
	raw := []byte(`{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id": "https://remote.example/activities/1",
		"type": "Create",
		"actor": "https://remote.example/users/alice",
		"to": ["https://www.w3.org/ns/activitystreams#Public"],
		"published": "2026-01-02T15:04:05Z",
		"object": {
			"id": "https://remote.example/comments/1",
			"type": "Note",
			"attributedTo": "https://remote.example/users/alice",
			"inReplyTo": "https://remote.example/posts/1"
		}
	}`)

	act, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, ActivityCreate, act.Type)
	assert.Equal(t, ObjectNote, act.ObjectType)
	assert.Equal(t, "https://remote.example/comments/1", act.ObjectID)
	require.NotNil(t, act.Published)
	assert.True(t, act.To.Contains(PublicURI))
}

func TestParseRejectsUnknownVariant(t *testing.T) {
	raw := []byte(`{
		"id": "https://remote.example/activities/2",
		"type": "Create",
		"actor": "https://remote.example/users/alice",
		"object": {"id": "https://remote.example/x/1", "type": "Tombstone"}
	}`)
	_, err := Parse(raw)
	assert.True(t, errors.Is(err, ErrUnknownVariant))
}

func TestParseRejectsMissingID(t *testing.T) {
	raw := []byte(`{"type": "Create", "object": {"id": "x", "type": "Note"}}`)
	_, err := Parse(raw)
	assert.True(t, errors.Is(err, ErrMissingID))
}

func TestParseAnnounceWrappedCreate(t *testing.T) {
	raw := []byte(`{
		"id": "https://community.example/activities/ann1",
		"type": "Announce",
		"actor": "https://community.example/c/linux",
		"to": ["https://www.w3.org/ns/activitystreams#Public"],
		"object": {
			"id": "https://remote.example/activities/1",
			"type": "Create",
			"actor": "https://remote.example/users/alice",
			"object": {"id": "https://remote.example/posts/1", "type": "Page"}
		}
	}`)
	act, err := Parse(raw)
	require.NoError(t, err)
	assert.True(t, act.IsAnnounce())
	require.NotNil(t, act.Inner)
	assert.Equal(t, ActivityCreate, act.Inner.Type)
	assert.Equal(t, ObjectPage, act.Inner.ObjectType)
	assert.False(t, act.BareAnnounceObject)
}

func TestParseAnnounceBarePage(t *testing.T) {
	raw := []byte(`{
		"id": "https://community.example/activities/ann2",
		"type": "Announce",
		"actor": "https://community.example/c/linux",
		"object": {"id": "https://remote.example/posts/1", "type": "Page"}
	}`)
	act, err := Parse(raw)
	require.NoError(t, err)
	assert.True(t, act.BareAnnounceObject)
	assert.Equal(t, ObjectPage, act.ObjectType)
}

func TestParseAnnounceRejectsDisallowedInner(t *testing.T) {
	raw := []byte(`{
		"id": "https://community.example/activities/ann3",
		"type": "Announce",
		"actor": "https://community.example/c/linux",
		"object": {"id": "https://remote.example/users/bob", "type": "Person"}
	}`)
	_, err := Parse(raw)
	assert.True(t, errors.Is(err, ErrAnnounceNotAllowed))
}

func TestParseUndoFollowByBareIRI(t *testing.T) {
	raw := []byte(`{
		"id": "https://remote.example/activities/undo1",
		"type": "Undo",
		"actor": "https://remote.example/users/alice",
		"object": "https://remote.example/activities/follow1"
	}`)
	act, err := Parse(raw)
	require.NoError(t, err)
	require.NotNil(t, act.Inner)
	assert.Equal(t, "https://remote.example/activities/follow1", act.Inner.ID)
	assert.Empty(t, act.Inner.Type)
}

func TestParseUndoRejectsNonUndoableInner(t *testing.T) {
	raw := []byte(`{
		"id": "https://remote.example/activities/undo2",
		"type": "Undo",
		"actor": "https://remote.example/users/alice",
		"object": {
			"id": "https://remote.example/activities/create1",
			"type": "Create",
			"actor": "https://remote.example/users/alice",
			"object": {"id": "https://remote.example/posts/2", "type": "Page"}
		}
	}`)
	_, err := Parse(raw)
	assert.True(t, errors.Is(err, ErrUnknownVariant))
}

func TestParseFollowBareObject(t *testing.T) {
	raw := []byte(`{
		"id": "https://remote.example/activities/follow2",
		"type": "Follow",
		"actor": "https://remote.example/users/alice",
		"object": "https://community.example/c/linux"
	}`)
	act, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, ActivityFollow, act.Type)
	assert.Equal(t, "https://community.example/c/linux", act.ObjectID)
	assert.Empty(t, act.ObjectType)
}

func TestBuildAndParseRoundTrip(t *testing.T) {
	obj := json.RawMessage(`{"id":"https://local.example/comments/9","type":"Note","attributedTo":"https://local.example/users/carol"}`)
	raw, err := Build(
		"https://local.example/activities/10",
		ActivityCreate,
		"https://local.example/users/carol",
		[]string{PublicURI},
		nil,
		obj,
	)
	require.NoError(t, err)

	act, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, ActivityCreate, act.Type)
	assert.Equal(t, ObjectNote, act.ObjectType)
	assert.Equal(t, "https://local.example/comments/9", act.ObjectID)
}

func TestBuildAnnounceRejectsNonAnnouncableInner(t *testing.T) {
	inner, err := Build(
		"https://remote.example/activities/follow3",
		ActivityFollow,
		"https://remote.example/users/alice",
		nil, nil,
		"https://community.example/c/linux",
	)
	require.NoError(t, err)

	_, err = BuildAnnounce("https://community.example/activities/ann4", "https://community.example/c/linux", nil, nil, inner)
	assert.True(t, errors.Is(err, ErrAnnounceNotAllowed))
}

func TestBuildUndoRejectsNonUndoableType(t *testing.T) {
	_, err := BuildUndo("https://local.example/activities/undo3", "https://local.example/users/carol", nil, nil, "https://local.example/activities/create1", ActivityCreate)
	assert.True(t, errors.Is(err, ErrUnknownVariant))
}
