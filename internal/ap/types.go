// Package ap implements the closed, externally-tagged activity codec
// described in spec §4.1: a fixed enum of (ActivityType, ObjectType)
// pairs plus a single Announce envelope, decoded from and encoded to
// plain JSON with a conventional @context preamble. It deliberately
// does not implement general JSON-LD processing, and deliberately does
// not use a trait-object/vocabulary-codegen library — the dispatch
// matrix must stay small and auditable (§9 REDESIGN FLAGS).
package ap

// ActivityType is the top-level "type" discriminator of an activity.
type ActivityType string

const (
	ActivityCreate           ActivityType = "Create"
	ActivityUpdate           ActivityType = "Update"
	ActivityDelete           ActivityType = "Delete"
	ActivityUndo             ActivityType = "Undo"
	ActivityRemove           ActivityType = "Remove"
	ActivityBlock            ActivityType = "Block"
	ActivityCollectionAdd    ActivityType = "Add"
	ActivityCollectionRemove ActivityType = "Remove_Collection"
	ActivityLike             ActivityType = "Like"
	ActivityDislike          ActivityType = "Dislike"
	ActivityFollow           ActivityType = "Follow"
	ActivityAccept           ActivityType = "Accept"
	ActivityReject           ActivityType = "Reject"
	ActivityAnnounce         ActivityType = "Announce"
	ActivityFlag             ActivityType = "Flag"
)

// ObjectType is the "type" discriminator of an activity's object (or,
// for Follow/Block/content activities, the kind of thing acted upon).
type ObjectType string

const (
	ObjectNote    ObjectType = "Note"    // Comment
	ObjectPage    ObjectType = "Page"    // Post
	ObjectGroup   ObjectType = "Group"   // Community
	ObjectPerson  ObjectType = "Person"
	ObjectPrivate ObjectType = "Private" // PrivateMessage (Note addressed only to recipient, no community)
)

// CollectionTarget distinguishes which community collection a
// CollectionAdd/CollectionRemove activity targets (SPEC_FULL).
type CollectionTarget string

const (
	CollectionModerators CollectionTarget = "moderators"
	CollectionFeatured   CollectionTarget = "featured"
)

// variantKey identifies one recognized (activity, object) pair in the
// closed union enumerated in spec §4.1.
type variantKey struct {
	Activity ActivityType
	Object   ObjectType
}

// recognizedVariants is the full closed set the codec accepts. Any
// (ActivityType, ObjectType) pair not present here is rejected by
// Parse with ErrUnknownVariant. Every entry names a concrete object
// type; when a bare-IRI object leaves ObjectType empty, Parse skips
// this check and the dispatcher resolves the type instead.
var recognizedVariants = map[variantKey]bool{
	{ActivityCreate, ObjectNote}:    true,
	{ActivityCreate, ObjectPage}:    true,
	{ActivityCreate, ObjectPrivate}: true,
	{ActivityUpdate, ObjectNote}:    true,
	{ActivityUpdate, ObjectPage}:    true,
	{ActivityDelete, ObjectNote}:    true,
	{ActivityDelete, ObjectPage}:    true,
	{ActivityDelete, ObjectGroup}:   true,
	{ActivityRemove, ObjectNote}:    true,
	{ActivityRemove, ObjectPage}:    true,
	{ActivityRemove, ObjectGroup}:   true,
	{ActivityBlock, ObjectPerson}:   true,
	{ActivityLike, ObjectNote}:      true,
	{ActivityLike, ObjectPage}:      true,
	{ActivityDislike, ObjectNote}:   true,
	{ActivityDislike, ObjectPage}:   true,
	{ActivityFollow, ObjectGroup}:   true,
	{ActivityFollow, ObjectPerson}:  true,
	{ActivityAccept, ObjectPerson}:  true, // Accept<Follow> wrapping is inner-activity based, see decode.go
	{ActivityReject, ObjectPerson}:  true,
	{ActivityFlag, ObjectNote}:      true,
	{ActivityFlag, ObjectPage}:      true,
	{ActivityFlag, ObjectPerson}:    true,
}

// undoableActivities is the set of activity types an Undo may wrap
// (§4.1: Undo<Delete>, Undo<Remove>, Undo<Block>, Undo<Like|Dislike>,
// Undo<Follow>).
var undoableActivities = map[ActivityType]bool{
	ActivityDelete:  true,
	ActivityRemove:  true,
	ActivityBlock:   true,
	ActivityLike:    true,
	ActivityDislike: true,
	ActivityFollow:  true,
}

// announcableActivities is the subset of top-level activity types a
// Community is permitted to wrap in Announce (§4.1, §4.5). A bare
// object type (Page, Note) is also announcable for the compatibility
// path (§4.4: "Announce whose inner is Page (bare)").
var announcableActivities = map[ActivityType]bool{
	ActivityCreate:           true,
	ActivityUpdate:           true,
	ActivityDelete:           true,
	ActivityUndo:             true,
	ActivityRemove:           true,
	ActivityLike:             true,
	ActivityDislike:          true,
	ActivityCollectionAdd:    true,
	ActivityCollectionRemove: true,
}

var announcableObjects = map[ObjectType]bool{
	ObjectNote: true,
	ObjectPage: true,
}

// IsAnnouncable reports whether an activity of the given type (with
// object of the given type, if applicable) may appear as the inner
// object of an Announce.
func IsAnnouncable(activity ActivityType, object ObjectType) bool {
	if announcableActivities[activity] {
		return true
	}
	// Bare-object compatibility form: Announce<Page> / Announce<Note>.
	return activity == "" && announcableObjects[object]
}

// IsUndoable reports whether Undo may wrap the given activity type.
func IsUndoable(a ActivityType) bool { return undoableActivities[a] }

// IsRecognized reports whether the (activity, object) pair is part of
// the closed variant set this codec accepts, outside of the special
// cases (Undo, Announce, CollectionAdd/Remove) handled in decode.go.
func IsRecognized(a ActivityType, o ObjectType) bool {
	return recognizedVariants[variantKey{a, o}]
}
