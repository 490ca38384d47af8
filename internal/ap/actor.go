package ap

import (
	"encoding/json"
	"fmt"
)

// wireKey is the nested "publicKey" object of an actor document.
type wireKey struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

// wireEndpoints carries the sharedInbox pointer, which historically
// lived either at top level or nested under "endpoints" depending on
// implementation vintage; this codec accepts either.
type wireEndpoints struct {
	SharedInbox string `json:"sharedInbox"`
}

// wireActor is the wire shape of a Person/Group/Application actor
// document, mirroring wireActivity's marshal-only envelope approach.
type wireActor struct {
	Context           any           `json:"@context"`
	ID                string        `json:"id"`
	Type              ObjectType    `json:"type"`
	PreferredUsername string        `json:"preferredUsername"`
	Inbox             string        `json:"inbox"`
	Outbox            string        `json:"outbox"`
	Followers         string        `json:"followers,omitempty"`
	Moderators        string        `json:"moderators,omitempty"`
	Featured          string        `json:"featured,omitempty"`
	SharedInbox       string        `json:"sharedInbox,omitempty"`
	Endpoints         *wireEndpoints `json:"endpoints,omitempty"`
	PublicKey         *wireKey      `json:"publicKey,omitempty"`
}

// ActorDocument is the decoded form of a remote actor profile, the unit
// internal/dereferencing fetches and translates into a gtsmodel.Actor.
type ActorDocument struct {
	ID          string
	Type        ObjectType
	Username    string
	Inbox       string
	Outbox      string
	SharedInbox string
	Followers   string
	Moderators  string
	Featured    string
	PublicKeyID string
	PublicKeyPEM string
}

// ParseActor decodes a fetched actor document. It rejects documents
// missing the fields the rest of the module depends on (id, inbox,
// public key) rather than leaving zero values to surface as confusing
// failures later.
func ParseActor(raw []byte) (*ActorDocument, error) {
	var w wireActor
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedObject, err)
	}
	if w.ID == "" {
		return nil, fmt.Errorf("%w: actor document missing id", ErrMalformedObject)
	}
	if w.Inbox == "" {
		return nil, fmt.Errorf("%w: actor document missing inbox", ErrMalformedObject)
	}
	switch w.Type {
	case ObjectPerson, ObjectGroup, "Application":
	default:
		return nil, fmt.Errorf("%w: unrecognized actor type %q", ErrUnknownVariant, w.Type)
	}

	shared := w.SharedInbox
	if shared == "" && w.Endpoints != nil {
		shared = w.Endpoints.SharedInbox
	}

	doc := &ActorDocument{
		ID:          w.ID,
		Type:        w.Type,
		Username:    w.PreferredUsername,
		Inbox:       w.Inbox,
		Outbox:      w.Outbox,
		SharedInbox: shared,
		Followers:   w.Followers,
		Moderators:  w.Moderators,
		Featured:    w.Featured,
	}
	if w.PublicKey != nil {
		doc.PublicKeyID = w.PublicKey.ID
		doc.PublicKeyPEM = w.PublicKey.PublicKeyPem
	}
	return doc, nil
}

// BuildActor marshals a local actor's own profile document for serving
// on GET /actor/{username} and similar.
func BuildActor(doc *ActorDocument) ([]byte, error) {
	w := wireActor{
		Context:           DefaultContext,
		ID:                doc.ID,
		Type:              doc.Type,
		PreferredUsername: doc.Username,
		Inbox:             doc.Inbox,
		Outbox:            doc.Outbox,
		Followers:         doc.Followers,
		Moderators:        doc.Moderators,
		Featured:          doc.Featured,
	}
	if doc.SharedInbox != "" {
		w.Endpoints = &wireEndpoints{SharedInbox: doc.SharedInbox}
	}
	if doc.PublicKeyPEM != "" {
		w.PublicKey = &wireKey{
			ID:           doc.PublicKeyID,
			Owner:        doc.ID,
			PublicKeyPem: doc.PublicKeyPEM,
		}
	}
	return json.Marshal(w)
}
