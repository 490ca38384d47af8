package ap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// wireActivity mirrors envelope but with json.Marshal-friendly ordering
// and an always-present @context, used only for outbound construction.
type wireActivity struct {
	Context   any             `json:"@context"`
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Actor     string          `json:"actor,omitempty"`
	To        StringSlice     `json:"to,omitempty"`
	Cc        StringSlice     `json:"cc,omitempty"`
	Published string          `json:"published,omitempty"`
	Object    json.RawMessage `json:"object,omitempty"`
	Target    json.RawMessage `json:"target,omitempty"`
}

// Build constructs the wire JSON for a direct (non-Announce, non-Undo)
// activity: Create/Update/Delete/Remove/Block/Like/Dislike/Follow/
// Accept/Reject/Flag, whose object is the given value (marshaled
// inline) or, if object is a string, addressed by bare IRI.
func Build(id string, typ ActivityType, actor string, to, cc []string, object any) ([]byte, error) {
	objRaw, err := marshalObjectField(object)
	if err != nil {
		return nil, fmt.Errorf("ap: build %s: %w", typ, err)
	}
	w := wireActivity{
		Context:   DefaultContext,
		ID:        id,
		Type:      string(typ),
		Actor:     actor,
		To:        StringSlice(to),
		Cc:        StringSlice(cc),
		Published: time.Now().UTC().Format(time.RFC3339),
		Object:    objRaw,
	}
	return json.Marshal(w)
}

// BuildCollectionMutation constructs an Add/Remove activity against a
// community's moderators or featured collection (§4.1 SUPPLEMENTED).
func BuildCollectionMutation(id string, add bool, actor string, to, cc []string, object any, targetIRI string) ([]byte, error) {
	typ := "Remove"
	if add {
		typ = "Add"
	}
	objRaw, err := marshalObjectField(object)
	if err != nil {
		return nil, fmt.Errorf("ap: build collection mutation: %w", err)
	}
	targetRaw, err := json.Marshal(targetIRI)
	if err != nil {
		return nil, err
	}
	w := wireActivity{
		Context:   DefaultContext,
		ID:        id,
		Type:      typ,
		Actor:     actor,
		To:        StringSlice(to),
		Cc:        StringSlice(cc),
		Published: time.Now().UTC().Format(time.RFC3339),
		Object:    objRaw,
		Target:    targetRaw,
	}
	return json.Marshal(w)
}

// BuildUndo wraps a previously-sent activity (identified by id, and
// optionally its type) in an Undo (§4.1).
func BuildUndo(id string, actor string, to, cc []string, wrappedID string, wrappedType ActivityType) ([]byte, error) {
	if wrappedType != "" && !IsUndoable(wrappedType) {
		return nil, fmt.Errorf("%w: %s is not undoable", ErrUnknownVariant, wrappedType)
	}
	objRaw, err := json.Marshal(wrappedID)
	if err != nil {
		return nil, err
	}
	w := wireActivity{
		Context:   DefaultContext,
		ID:        id,
		Type:      string(ActivityUndo),
		Actor:     actor,
		To:        StringSlice(to),
		Cc:        StringSlice(cc),
		Published: time.Now().UTC().Format(time.RFC3339),
		Object:    objRaw,
	}
	return json.Marshal(w)
}

// BuildAnnounce wraps inner (a fully-formed, already-marshaled activity
// or bare content object) in a community Announce (§4.1, §4.5). The
// inner JSON is embedded with insignificant whitespace compacted and
// is otherwise unchanged, so the result is not byte-identical to an
// inner that was sent with whitespace; only the envelope's own
// id/actor/to/cc are new.
func BuildAnnounce(id string, actor string, to, cc []string, inner json.RawMessage) ([]byte, error) {
	_, isBare, p, err := peek(inner)
	if err != nil {
		return nil, fmt.Errorf("ap: build announce: %w", err)
	}
	if isBare {
		return nil, fmt.Errorf("%w: announce inner must be an object, not a bare IRI", ErrMalformedObject)
	}
	announcable := isActivityTypeName(p.Type)
	if announcable {
		if !IsAnnouncable(ActivityType(p.Type), "") {
			// Delete/Update/etc. need only the activity-type check;
			// object-type-gated forms (bare Page/Note) fall through below.
			return nil, ErrAnnounceNotAllowed
		}
	} else if !IsAnnouncable("", ObjectType(p.Type)) {
		return nil, ErrAnnounceNotAllowed
	}

	w := wireActivity{
		Context:   DefaultContext,
		ID:        id,
		Type:      string(ActivityAnnounce),
		Actor:     actor,
		To:        StringSlice(to),
		Cc:        StringSlice(cc),
		Published: time.Now().UTC().Format(time.RFC3339),
		Object:    compactJSON(inner),
	}
	return json.Marshal(w)
}

// BuildCompatibilityAnnounce constructs the bare Announce<Page>/
// Announce<Note> duplicate emitted alongside Announce<Create<Page>>
// for peers that don't understand the wrapped-activity form (§4.4).
func BuildCompatibilityAnnounce(id string, actor string, to, cc []string, object json.RawMessage) ([]byte, error) {
	_, isBare, p, err := peek(object)
	if err != nil {
		return nil, fmt.Errorf("ap: build compatibility announce: %w", err)
	}
	if isBare || !announcableObjects[ObjectType(p.Type)] {
		return nil, ErrAnnounceNotAllowed
	}
	w := wireActivity{
		Context:   DefaultContext,
		ID:        id,
		Type:      string(ActivityAnnounce),
		Actor:     actor,
		To:        StringSlice(to),
		Cc:        StringSlice(cc),
		Published: time.Now().UTC().Format(time.RFC3339),
		Object:    compactJSON(object),
	}
	return json.Marshal(w)
}

func marshalObjectField(object any) (json.RawMessage, error) {
	switch v := object.(type) {
	case nil:
		return nil, nil
	case string:
		return json.Marshal(v)
	case json.RawMessage:
		return compactJSON(v), nil
	default:
		return json.Marshal(v)
	}
}

func compactJSON(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
