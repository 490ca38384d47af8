package ap

import (
	"encoding/json"
	"time"
)

// Activity is the decoded, structured form of one wire activity: the
// closed tagged union described in spec §4.1. Every recognized variant
// decodes into this one struct; the Type/ObjectType pair (plus Inner,
// for Undo/Announce) is what the dispatcher (internal/dispatch)
// switches on. There is no interface hierarchy here on purpose — see
// the package doc comment.
type Activity struct {
	ID    string
	Type  ActivityType
	Actor string
	To    StringSlice
	Cc    StringSlice

	// Published is nil when the wire activity had no top-level
	// "published" field; its presence/absence is significant to the
	// inbound queue (§4.3 step 6/7: absence triggers immediate
	// processing rather than ordered enqueue).
	Published *time.Time

	// ObjectType/ObjectID/Object describe the activity's direct
	// object. ObjectID is populated whether Object was a bare IRI or
	// a nested value (taken from the nested value's own "id"). Object
	// holds the raw nested JSON when present (nil for bare-IRI
	// objects, e.g. Like<Note> addressing a Note purely by URL).
	ObjectType ObjectType
	ObjectID   string
	Object     json.RawMessage

	// Target is used by Follow (rarely), and by CollectionAdd/Remove
	// to name the moderators/featured collection being mutated.
	TargetID         string
	CollectionTarget CollectionTarget

	// Inner is set for Undo<X> and Announce<X>: the wrapped activity.
	// For Undo, Inner may carry only an ID (the sender referenced the
	// prior activity purely by IRI) with Type left "" — receive
	// handlers then look the prior activity up by ID equivalence
	// (§4.4 Undo policy).
	Inner *Activity

	// BareAnnounceObject is true when this is the Announce<Page>
	// compatibility form: the inner object is a bare content object,
	// not a nested Create/Update activity (§4.1, §4.4).
	BareAnnounceObject bool

	// Raw preserves the exact bytes this activity was decoded from,
	// so Announce can re-emit the wrapped object; ap.BuildAnnounce
	// compacts its whitespace and leaves it otherwise unchanged.
	Raw json.RawMessage
}

// IsAnnounce reports whether this is an Announce activity.
func (a *Activity) IsAnnounce() bool { return a.Type == ActivityAnnounce }

// IsUndo reports whether this is an Undo activity.
func (a *Activity) IsUndo() bool { return a.Type == ActivityUndo }
