// Package dispatch implements the receive side of the federation core
// (§4.4): a match over the closed activity variant set, each handler
// performing the verify/receive contract described there, adapted from
// the teacher's ProcessFromFediAPI switch.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/federatedforum/fedcore/internal/announce"
	"github.com/federatedforum/fedcore/internal/ap"
	"github.com/federatedforum/fedcore/internal/db"
	"github.com/federatedforum/fedcore/internal/dereferencing"
	"github.com/federatedforum/fedcore/internal/gtserror"
	"github.com/federatedforum/fedcore/internal/gtsmodel"
	"github.com/federatedforum/fedcore/internal/id"
	"github.com/federatedforum/fedcore/internal/log"
)

// dropper evicts a not-yet-delivered queued copy of an object from the
// outbound send workers (§4.6/§4.7). Satisfied by *internal/send.Manager;
// kept as a narrow interface here rather than importing that package's
// concrete type, since a Processor under test or run without outbound
// delivery configured has no worker queue to evict from.
type dropper interface {
	DropQueued(objectURI string)
}

// Processor is the dispatcher described in §4.4. Its Dispatch method
// satisfies internal/inbox.Dispatcher.
type Processor struct {
	db       db.DB
	resolver *dereferencing.Resolver
	announce *announce.Announcer
	sender   dropper
	host     string
}

func New(store db.DB, resolver *dereferencing.Resolver, announcer *announce.Announcer, sender dropper, host string) *Processor {
	return &Processor{db: store, resolver: resolver, announce: announcer, sender: sender, host: host}
}

// dropQueued evicts objectURI from the outbound send queue, if this
// Processor has one wired. No-op when sender is nil (delivery disabled).
func (p *Processor) dropQueued(objectURI string) {
	if p.sender != nil && objectURI != "" {
		p.sender.DropQueued(objectURI)
	}
}

// Dispatch is the top-level switch (§4.4), grounded on the teacher's
// ProcessFromFediAPI: one case per (ActivityType, ObjectType) pair,
// each delegating to a focused receive handler.
func (p *Processor) Dispatch(ctx context.Context, sourceInstance string, act *ap.Activity) error {
	l := log.WithContext(ctx).WithFields()
	l.Infof("dispatch: %s/%s from %s", act.Type, act.ObjectType, sourceInstance)

	switch act.Type {
	case ap.ActivityCreate, ap.ActivityUpdate:
		return p.receiveCreateOrUpdate(ctx, sourceInstance, act)
	case ap.ActivityDelete:
		return p.receiveDeleteOrRemove(ctx, sourceInstance, act, true)
	case ap.ActivityRemove, ap.ActivityCollectionRemove:
		if act.CollectionTarget != "" {
			return p.receiveCollectionMutation(ctx, sourceInstance, act, false)
		}
		return p.receiveDeleteOrRemove(ctx, sourceInstance, act, false)
	case ap.ActivityCollectionAdd:
		return p.receiveCollectionMutation(ctx, sourceInstance, act, true)
	case ap.ActivityLike:
		return p.receiveVote(ctx, sourceInstance, act, 1)
	case ap.ActivityDislike:
		return p.receiveVote(ctx, sourceInstance, act, -1)
	case ap.ActivityFollow:
		return p.receiveFollow(ctx, sourceInstance, act)
	case ap.ActivityAccept:
		return p.receiveAccept(ctx, sourceInstance, act)
	case ap.ActivityReject:
		return p.receiveReject(ctx, sourceInstance, act)
	case ap.ActivityBlock:
		return p.receiveBlock(ctx, sourceInstance, act)
	case ap.ActivityUndo:
		return p.receiveUndo(ctx, sourceInstance, act)
	case ap.ActivityAnnounce:
		return p.receiveAnnounce(ctx, sourceInstance, act)
	case ap.ActivityFlag:
		return p.receiveFlag(ctx, sourceInstance, act)
	default:
		return gtserror.Newf("%w: unhandled activity type %s", gtserror.ErrCodecError, act.Type)
	}
}

// verifyActor resolves act.Actor, refusing banned/deleted/unresolvable
// actors per the verify contract (§4.4).
func (p *Processor) verifyActor(ctx context.Context, act *ap.Activity) (*gtsmodel.Actor, error) {
	if act.Actor == "" {
		return nil, gtserror.Newf("%w: activity has no actor", gtserror.ErrCodecError)
	}
	actor, err := p.resolver.Dereference(ctx, act.Actor)
	if err != nil {
		return nil, err
	}
	if actor.Deleted {
		return nil, gtserror.ErrDeleted
	}
	return actor, nil
}

// resolveCommunity looks up a community by URI, refusing unknown or
// remote-unreachable communities.
func (p *Processor) resolveCommunity(ctx context.Context, communityURI string) (*gtsmodel.Actor, error) {
	if communityURI == "" {
		return nil, gtserror.Newf("%w: content object has no community", gtserror.ErrCodecError)
	}
	community, err := p.resolver.Dereference(ctx, communityURI)
	if err != nil {
		return nil, err
	}
	if !community.IsCommunity() {
		return nil, gtserror.Newf("%w: %s is not a community", gtserror.ErrCodecError, communityURI)
	}
	return community, nil
}

// maybeAnnounce fires the community announce side-effect (§4.4 last
// paragraph) when the target community is local and authoritative for
// this activity.
func (p *Processor) maybeAnnounce(ctx context.Context, community *gtsmodel.Actor, act *ap.Activity, raw []byte, originatingActorURI string) {
	if community == nil || !community.Local {
		return
	}
	if err := p.announce.Announce(ctx, community, act, raw, originatingActorURI); err != nil {
		log.WithContext(ctx).Errorf("dispatch: announce side-effect failed for %s: %v", act.ID, err)
	}
}

// receiveCreateOrUpdate handles Create/Update<Note|Page> (§4.4): upsert
// content, keyed by ap_id for idempotency.
func (p *Processor) receiveCreateOrUpdate(ctx context.Context, sourceInstance string, act *ap.Activity) error {
	if act.Object == nil {
		return gtserror.Newf("%w: create/update with no inline object", gtserror.ErrCodecError)
	}
	content, err := ap.ParseContentObject(act.Object)
	if err != nil {
		return err
	}

	creator, err := p.verifyActor(ctx, act)
	if err != nil {
		return err
	}
	if content.AttributedTo != creator.URI {
		return gtserror.Newf("%w: attributedTo does not match activity actor", gtserror.ErrNotPermitted)
	}

	var community *gtsmodel.Actor
	if content.CommunityURI != "" {
		community, err = p.resolveCommunity(ctx, content.CommunityURI)
		if err != nil {
			return err
		}
	}

	switch act.ObjectType {
	case ap.ObjectPage:
		if err := p.upsertPost(ctx, content, creator, community); err != nil {
			return err
		}
	case ap.ObjectNote, ap.ObjectPrivate:
		if content.InReplyTo != "" || content.CommunityURI != "" {
			if err := p.upsertComment(ctx, content, creator); err != nil {
				return err
			}
		} else {
			if err := p.upsertPrivateMessage(ctx, content, creator); err != nil {
				return err
			}
			return nil // private messages are never announced
		}
	default:
		return gtserror.Newf("%w: unrecognized create/update object %s", gtserror.ErrCodecError, act.ObjectType)
	}

	p.maybeAnnounce(ctx, community, act, act.Raw, act.Actor)
	return nil
}

func (p *Processor) upsertPost(ctx context.Context, content *ap.ContentObject, creator, community *gtsmodel.Actor) error {
	existing, err := p.db.GetPostByURI(ctx, content.ID)
	if err != nil && !isNotFoundDB(err) {
		return gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
	}

	post := existing
	if post == nil {
		post = &gtsmodel.Post{ID: id.New(), URI: content.ID}
	}
	post.CreatorID = creator.ID
	if community != nil {
		post.CommunityID = community.ID
	}
	post.Title = content.Title
	post.URL = content.URL
	post.Body = content.Body
	post.PublishedAt = content.Published
	post.UpdatedAt = content.Updated
	post.Local = false

	if existing == nil {
		if err := wrapDB(p.db.PutPost(ctx, post)); err != nil {
			return err
		}
	} else if err := wrapDB(p.db.UpdatePost(ctx, post, "title", "url", "body", "updated_at")); err != nil {
		return err
	}

	p.scheduleLinkEnrichment(ctx, post.URI, post.Body)
	return nil
}

func (p *Processor) upsertComment(ctx context.Context, content *ap.ContentObject, creator *gtsmodel.Actor) error {
	existing, err := p.db.GetCommentByURI(ctx, content.ID)
	if err != nil && !isNotFoundDB(err) {
		return gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
	}

	comment := existing
	if comment == nil {
		comment = &gtsmodel.Comment{ID: id.New(), URI: content.ID}

		var postID, path string
		if content.InReplyTo != "" {
			parent, perr := p.db.GetCommentByURI(ctx, content.InReplyTo)
			var post *gtsmodel.Post
			if isNotFoundDB(perr) {
				// Not a known comment: a top-level reply to the post itself.
				post, perr = p.db.GetPostByURI(ctx, content.InReplyTo)
			}
			if perr != nil {
				if isNotFoundDB(perr) {
					return gtserror.Newf("%w: parent %s not found", gtserror.ErrNotFound, content.InReplyTo)
				}
				return gtserror.Newf("%w: %w", gtserror.ErrDbTransient, perr)
			}
			if post != nil {
				postID = post.ID
				path = comment.ID
			} else {
				postID = parent.PostID
				path = parent.Path + "." + comment.ID
			}
		} else {
			post, perr := p.db.GetPostByURI(ctx, content.CommunityURI)
			if perr != nil {
				return gtserror.Newf("%w: top-level comment target post not found", gtserror.ErrNotFound)
			}
			postID = post.ID
			path = comment.ID
		}
		comment.PostID = postID
		comment.Path = path
	}

	comment.CreatorID = creator.ID
	comment.Body = content.Body
	comment.PublishedAt = content.Published
	comment.UpdatedAt = content.Updated
	comment.Local = false

	if existing == nil {
		return wrapDB(p.db.PutComment(ctx, comment))
	}
	return wrapDB(p.db.UpdateComment(ctx, comment, "body", "updated_at"))
}

func (p *Processor) upsertPrivateMessage(ctx context.Context, content *ap.ContentObject, creator *gtsmodel.Actor) error {
	if len(content.To) == 0 {
		return gtserror.Newf("%w: private message has no recipient", gtserror.ErrCodecError)
	}
	recipient, err := p.resolver.Dereference(ctx, content.To[0])
	if err != nil {
		return err
	}
	pm := &gtsmodel.PrivateMessage{
		ID:          id.New(),
		URI:         content.ID,
		CreatorID:   creator.ID,
		RecipientID: recipient.ID,
		Body:        content.Body,
		PublishedAt: content.Published,
		UpdatedAt:   content.Updated,
	}
	return wrapDB(p.db.PutPrivateMessage(ctx, pm))
}

// receiveDeleteOrRemove handles Delete (isDelete=true, §4.4) and Remove
// (isDelete=false): authority check then flag flip.
func (p *Processor) receiveDeleteOrRemove(ctx context.Context, sourceInstance string, act *ap.Activity, isDelete bool) error {
	actor, err := p.verifyActor(ctx, act)
	if err != nil {
		return err
	}

	switch act.ObjectType {
	case ap.ObjectPage:
		post, err := p.db.GetPostByURI(ctx, act.ObjectID)
		if err != nil {
			if isNotFoundDB(err) {
				return nil // already gone: no-op
			}
			return gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
		}
		if err := p.authorizeModeration(ctx, actor, post.CreatorID, post.CommunityID, isDelete); err != nil {
			return err
		}
		if isDelete {
			post.Deleted = true
			err = p.db.UpdatePost(ctx, post, "deleted")
		} else {
			post.Removed = true
			err = p.db.UpdatePost(ctx, post, "removed")
		}
		if err == nil {
			p.dropQueued(act.ObjectID)
		}
		return wrapDB(err)

	case ap.ObjectNote:
		comment, err := p.db.GetCommentByURI(ctx, act.ObjectID)
		if err != nil {
			if isNotFoundDB(err) {
				return nil
			}
			return gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
		}
		post, perr := p.db.GetPostByID(ctx, comment.PostID)
		communityID := ""
		if perr == nil {
			communityID = post.CommunityID
		}
		if err := p.authorizeModeration(ctx, actor, comment.CreatorID, communityID, isDelete); err != nil {
			return err
		}
		if isDelete {
			comment.Deleted = true
			err = p.db.UpdateComment(ctx, comment, "deleted")
		} else {
			comment.Removed = true
			err = p.db.UpdateComment(ctx, comment, "removed")
		}
		if err == nil {
			p.dropQueued(act.ObjectID)
		}
		return wrapDB(err)

	case ap.ObjectGroup:
		if !isDelete {
			return gtserror.Newf("%w: Remove<Group> is not a recognized variant", gtserror.ErrCodecError)
		}
		community, err := p.db.GetActorByURI(ctx, act.ObjectID)
		if err != nil {
			if isNotFoundDB(err) {
				return nil
			}
			return gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
		}
		if community.ID != actor.ID {
			return gtserror.Newf("%w: only a community may delete itself", gtserror.ErrNotPermitted)
		}
		community.Deleted = true
		if err := p.db.UpdateActor(ctx, community, "deleted"); err != nil {
			return wrapDB(err)
		}
		p.dropQueued(act.ObjectID)
		return nil

	default:
		return gtserror.Newf("%w: unrecognized delete/remove object %s", gtserror.ErrCodecError, act.ObjectType)
	}
}

// authorizeModeration enforces §4.4's Delete/Remove policy: the
// creator may always delete their own content; removal (and deletion
// by someone other than the creator) requires the actor to be a
// moderator of the target community, and that community must be local
// to this instance. There is no separate admin check: an admin who is
// not a moderator of the community is refused.
func (p *Processor) authorizeModeration(ctx context.Context, actor *gtsmodel.Actor, creatorID, communityID string, isDelete bool) error {
	if isDelete && actor.ID == creatorID {
		return nil
	}
	if communityID == "" {
		return gtserror.Newf("%w: no community authority to check removal against", gtserror.ErrNotPermitted)
	}
	community, err := p.db.GetActorByID(ctx, communityID)
	if err != nil {
		return gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
	}
	if !community.Local {
		// Moderation against a remote community's content belongs to
		// that community's own instance; a local dispatcher never
		// arbitrates it.
		return gtserror.Newf("%w: community %s is not local to this instance", gtserror.ErrNotPermitted, community.URI)
	}
	isMod, err := p.db.IsCommunityModerator(ctx, communityID, actor.ID)
	if err != nil {
		return gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
	}
	if !isMod {
		return gtserror.Newf("%w: actor is not a moderator of %s", gtserror.ErrNotPermitted, community.URI)
	}
	return nil
}

// receiveVote handles Like/Dislike (§4.4): a vote row, always a
// replacement, never a delta.
func (p *Processor) receiveVote(ctx context.Context, sourceInstance string, act *ap.Activity, score int8) error {
	voter, err := p.verifyActor(ctx, act)
	if err != nil {
		return err
	}

	targetID, err := p.resolveVoteTarget(ctx, act)
	if err != nil {
		return err
	}

	vote := &gtsmodel.Vote{VoterID: voter.ID, TargetID: targetID, Score: score}
	return wrapDB(p.db.PutVote(ctx, vote))
}

func (p *Processor) resolveVoteTarget(ctx context.Context, act *ap.Activity) (string, error) {
	switch act.ObjectType {
	case ap.ObjectPage:
		post, err := p.db.GetPostByURI(ctx, act.ObjectID)
		if err != nil {
			return "", wrapNotFoundOrTransient(err)
		}
		return post.ID, nil
	case ap.ObjectNote:
		comment, err := p.db.GetCommentByURI(ctx, act.ObjectID)
		if err != nil {
			return "", wrapNotFoundOrTransient(err)
		}
		return comment.ID, nil
	default:
		return "", gtserror.Newf("%w: unrecognized vote target %s", gtserror.ErrCodecError, act.ObjectType)
	}
}

// receiveFollow handles Follow<Group|Person> (§4.4): for a local
// target, create/reaffirm the edge and emit Accept<Follow> back.
func (p *Processor) receiveFollow(ctx context.Context, sourceInstance string, act *ap.Activity) error {
	follower, err := p.verifyActor(ctx, act)
	if err != nil {
		return err
	}
	target, err := p.resolver.Dereference(ctx, act.ObjectID)
	if err != nil {
		return err
	}

	blocked, err := p.db.IsBlocked(ctx, target.ID, follower.ID)
	if err != nil {
		return gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
	}
	if blocked {
		return p.emitFollowResponse(ctx, target, follower, act, false)
	}

	existing, err := p.db.GetFollow(ctx, follower.ID, target.ID)
	if err != nil && !isNotFoundDB(err) {
		return gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
	}
	if existing == nil {
		follow := &gtsmodel.Follow{
			ID:              id.New(),
			URI:             act.ID,
			AccountID:       follower.ID,
			TargetAccountID: target.ID,
			CreatedAt:       time.Now().UTC(),
		}
		if err := p.db.PutFollow(ctx, follow); err != nil && !errors.Is(err, db.ErrAlreadyExists) {
			return gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
		}
	}

	if target.Local {
		return p.emitFollowResponse(ctx, target, follower, act, true)
	}
	return nil
}

// emitFollowResponse logs an Accept/Reject<Follow> for delivery back
// to the follower's inbox (§4.4).
func (p *Processor) emitFollowResponse(ctx context.Context, target, follower *gtsmodel.Actor, followAct *ap.Activity, accept bool) error {
	typ := ap.ActivityReject
	if accept {
		typ = ap.ActivityAccept
	}
	responseID := target.URI + "/activities/" + string(typ) + "/" + id.New()
	wire, err := ap.Build(responseID, typ, target.URI, []string{follower.URI}, nil, followAct.ID)
	if err != nil {
		return fmt.Errorf("dispatch: build %s: %w", typ, err)
	}
	followerInstance := hostOf(follower.URI)
	entry := &gtsmodel.ActivityLogEntry{
		APID:        responseID,
		Data:        wire,
		Local:       true,
		PublishedAt: time.Now().UTC(),
		Recipients:  []string{followerInstance},
	}
	return wrapDB(p.db.PutActivityLogEntry(ctx, entry))
}

// receiveAccept handles Accept<Follow> arriving for a follow this
// instance originated (outbound Follow previously sent).
func (p *Processor) receiveAccept(ctx context.Context, sourceInstance string, act *ap.Activity) error {
	if act.Inner == nil || act.Inner.Type != ap.ActivityFollow {
		return nil
	}
	_, err := p.db.GetFollowRequestByURI(ctx, act.Inner.ID)
	if err != nil {
		if isNotFoundDB(err) {
			return nil
		}
		return gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
	}
	return wrapDB(p.db.DeleteFollowRequestByURI(ctx, act.Inner.ID))
}

// receiveReject handles Reject<Follow>: the pending request is dropped
// without creating a follow edge.
func (p *Processor) receiveReject(ctx context.Context, sourceInstance string, act *ap.Activity) error {
	if act.Inner == nil || act.Inner.Type != ap.ActivityFollow {
		return nil
	}
	return wrapDB(p.db.DeleteFollowRequestByURI(ctx, act.Inner.ID))
}

// receiveBlock handles Block<Person> (§4.1 SUPPLEMENTED): records the
// block and tears down any existing follow edge in either direction.
func (p *Processor) receiveBlock(ctx context.Context, sourceInstance string, act *ap.Activity) error {
	actor, err := p.verifyActor(ctx, act)
	if err != nil {
		return err
	}
	target, err := p.resolver.Dereference(ctx, act.ObjectID)
	if err != nil {
		return err
	}

	block := &gtsmodel.Block{
		ID:              id.New(),
		URI:             act.ID,
		AccountID:       actor.ID,
		TargetAccountID: target.ID,
		CreatedAt:       time.Now().UTC(),
	}
	if err := p.db.PutBlock(ctx, block); err != nil && !errors.Is(err, db.ErrAlreadyExists) {
		return gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
	}
	_ = p.db.DeleteFollow(ctx, target.ID, actor.ID)
	_ = p.db.DeleteFollow(ctx, actor.ID, target.ID)
	return nil
}

// receiveUndo handles Undo<X> (§4.4): locate the prior activity by id
// equivalence and reverse it; absence is a logged no-op, not an error.
func (p *Processor) receiveUndo(ctx context.Context, sourceInstance string, act *ap.Activity) error {
	if act.Inner == nil {
		return gtserror.Newf("%w: undo with no inner reference", gtserror.ErrCodecError)
	}
	actor, err := p.verifyActor(ctx, act)
	if err != nil {
		return err
	}

	wrappedType := act.Inner.Type
	wrappedID := act.Inner.ID

	switch {
	case wrappedType == ap.ActivityFollow || wrappedType == "":
		if follow, ferr := p.db.GetFollowByURI(ctx, wrappedID); ferr == nil {
			if follow.AccountID != actor.ID {
				return gtserror.Newf("%w: undo actor does not own the follow", gtserror.ErrNotPermitted)
			}
			return wrapDB(p.db.DeleteFollowByURI(ctx, wrappedID))
		}
		_ = p.db.DeleteFollowRequestByURI(ctx, wrappedID)
		return nil

	case wrappedType == ap.ActivityBlock:
		if block, berr := p.db.GetBlockByURI(ctx, wrappedID); berr == nil {
			if block.AccountID != actor.ID {
				return gtserror.Newf("%w: undo actor does not own the block", gtserror.ErrNotPermitted)
			}
			return wrapDB(p.db.DeleteBlockByURI(ctx, wrappedID))
		}
		log.WithContext(ctx).Infof("dispatch: undo<block> %s had no matching prior block, no-op", wrappedID)
		return nil

	case wrappedType == ap.ActivityLike || wrappedType == ap.ActivityDislike:
		if act.Inner.ObjectID == "" {
			return nil
		}
		targetID, terr := p.resolveVoteTarget(ctx, act.Inner)
		if terr != nil {
			log.WithContext(ctx).Infof("dispatch: undo<like> target %s unresolvable, no-op", act.Inner.ObjectID)
			return nil
		}
		return wrapDB(p.db.DeleteVote(ctx, actor.ID, targetID))

	case wrappedType == ap.ActivityDelete || wrappedType == ap.ActivityRemove:
		return p.undoDeleteOrRemove(ctx, actor, act.Inner)

	default:
		log.WithContext(ctx).Infof("dispatch: undo of non-undoable type %s, no-op", wrappedType)
		return nil
	}
}

func (p *Processor) undoDeleteOrRemove(ctx context.Context, actor *gtsmodel.Actor, inner *ap.Activity) error {
	switch inner.ObjectType {
	case ap.ObjectPage:
		post, err := p.db.GetPostByURI(ctx, inner.ObjectID)
		if err != nil {
			return nil
		}
		if err := p.authorizeModeration(ctx, actor, post.CreatorID, post.CommunityID, inner.Type == ap.ActivityDelete); err != nil {
			return err
		}
		post.Deleted, post.Removed = false, false
		return wrapDB(p.db.UpdatePost(ctx, post, "deleted", "removed"))
	case ap.ObjectNote:
		comment, err := p.db.GetCommentByURI(ctx, inner.ObjectID)
		if err != nil {
			return nil
		}
		comment.Deleted, comment.Removed = false, false
		return wrapDB(p.db.UpdateComment(ctx, comment, "deleted", "removed"))
	default:
		return nil
	}
}

// receiveAnnounce handles an inbound Announce (§4.4): extract the
// inner activity (or bare Page), re-verify with the inner's rules,
// then receive it as if it had arrived directly.
func (p *Processor) receiveAnnounce(ctx context.Context, sourceInstance string, act *ap.Activity) error {
	if act.BareAnnounceObject {
		// Compatibility form: Announce<Page bare> is a post create.
		synth := &ap.Activity{
			ID:         act.ID,
			Type:       ap.ActivityCreate,
			Actor:      objectAttributedTo(act.Object),
			ObjectType: ap.ObjectPage,
			ObjectID:   act.ObjectID,
			Object:     act.Object,
			Raw:        act.Raw,
		}
		if synth.Actor == "" {
			synth.Actor = act.Actor
		}
		return p.receiveCreateOrUpdate(ctx, sourceInstance, synth)
	}
	if act.Inner == nil {
		return gtserror.Newf("%w: announce with no inner activity", gtserror.ErrCodecError)
	}
	return p.Dispatch(ctx, sourceInstance, act.Inner)
}

func objectAttributedTo(raw []byte) string {
	content, err := ap.ParseContentObject(raw)
	if err != nil {
		return ""
	}
	return content.AttributedTo
}

// receiveCollectionMutation handles Add/Remove on a community's
// moderators or featured collection (§4.4 SUPPLEMENTED).
func (p *Processor) receiveCollectionMutation(ctx context.Context, sourceInstance string, act *ap.Activity, add bool) error {
	actor, err := p.verifyActor(ctx, act)
	if err != nil {
		return err
	}

	switch act.CollectionTarget {
	case ap.CollectionModerators:
		community, err := p.communityForCollection(ctx, act)
		if err != nil {
			return err
		}
		if err := p.authorizeCollectionMutation(ctx, actor, community); err != nil {
			return err
		}
		target, err := p.resolver.Dereference(ctx, act.ObjectID)
		if err != nil {
			return err
		}
		if add {
			isMod, _ := p.db.IsCommunityModerator(ctx, community.ID, target.ID)
			if isMod {
				return nil // already a moderator: no-op (ordering-sensitive per spec)
			}
			return wrapDB(p.db.PutCommunityModerator(ctx, community.ID, target.ID))
		}
		return wrapDB(p.db.DeleteCommunityModerator(ctx, community.ID, target.ID))

	case ap.CollectionFeatured:
		post, err := p.db.GetPostByURI(ctx, act.ObjectID)
		if err != nil {
			return wrapNotFoundOrTransient(err)
		}
		if err := p.authorizeModeration(ctx, actor, post.CreatorID, post.CommunityID, false); err != nil {
			return err
		}
		post.Featured = add
		return wrapDB(p.db.UpdatePost(ctx, post, "featured"))

	default:
		return gtserror.Newf("%w: unrecognized collection target", gtserror.ErrCodecError)
	}
}

// communityForCollection recovers the community actor URI from the
// collection IRI decode.go stored in TargetID (".../moderators" or
// ".../featured") and dereferences it.
func (p *Processor) communityForCollection(ctx context.Context, act *ap.Activity) (*gtsmodel.Actor, error) {
	if act.TargetID == "" {
		return nil, gtserror.Newf("%w: collection mutation has no target community", gtserror.ErrCodecError)
	}
	communityURI := strings.TrimSuffix(strings.TrimSuffix(act.TargetID, "/moderators"), "/featured")
	if communityURI == act.TargetID {
		return nil, gtserror.Newf("%w: unrecognized collection target %q", gtserror.ErrCodecError, act.TargetID)
	}
	return p.resolver.Dereference(ctx, communityURI)
}

func (p *Processor) authorizeCollectionMutation(ctx context.Context, actor, community *gtsmodel.Actor) error {
	if !community.Local {
		return gtserror.Newf("%w: community %s is not local to this instance", gtserror.ErrNotPermitted, community.URI)
	}
	isMod, err := p.db.IsCommunityModerator(ctx, community.ID, actor.ID)
	if err != nil {
		return gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
	}
	if !isMod {
		return gtserror.Newf("%w: actor is not a moderator of %s", gtserror.ErrNotPermitted, community.URI)
	}
	return nil
}

// receiveFlag handles Flag (§4.1 SUPPLEMENTED): accepted as a report,
// never re-announced.
func (p *Processor) receiveFlag(ctx context.Context, sourceInstance string, act *ap.Activity) error {
	reporter, err := p.verifyActor(ctx, act)
	if err != nil {
		return err
	}
	report := &gtsmodel.Report{
		ID:         id.New(),
		URI:        act.ID,
		ReporterID: reporter.ID,
		TargetURI:  act.ObjectID,
		CreatedAt:  time.Now().UTC(),
	}
	return wrapDB(p.db.PutReport(ctx, report))
}

// isNotFoundDB reports whether err is the store's not-found sentinel,
// as opposed to a transient failure worth retrying.
func isNotFoundDB(err error) bool {
	return errors.Is(err, db.ErrNoEntries)
}

func wrapDB(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, db.ErrAlreadyExists) {
		return nil
	}
	return gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
}

func wrapNotFoundOrTransient(err error) error {
	if isNotFoundDB(err) {
		return err
	}
	return gtserror.Newf("%w: %w", gtserror.ErrDbTransient, err)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
