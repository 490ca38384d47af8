package gtsmodel

import "time"

// ActorType distinguishes the three actor variants named in §3.
type ActorType string

const (
	ActorPerson    ActorType = "Person"
	ActorCommunity ActorType = "Group"
	ActorSite      ActorType = "Application"
)

// CommunityVisibility controls whether a community's content is ever
// eligible for outbound federation (§3 invariant: "A Community with
// visibility != Public never appears as the target of an outbound
// federation activity").
type CommunityVisibility string

const (
	VisibilityPublic    CommunityVisibility = "public"
	VisibilityLocalOnly CommunityVisibility = "local_only"
)

// Actor is the federation participant record shared by Person,
// Community (Group), and Site (Application) variants (§3). Rather than
// three separate Go types joined by an interface, the core keeps one
// struct with a Type discriminant and variant-only fields left zero
// where inapplicable — actors are referenced everywhere by ap_id URL
// string, never by pointer, so there is no benefit to a richer type
// hierarchy here (§9 "store references as ap_id URLs, never as owning
// pointers").
type Actor struct {
	ID         string    `bun:"id,pk,type:varchar,nullzero,notnull,unique"`
	Type       ActorType `bun:"type,type:varchar,nullzero,notnull"`
	URI        string    `bun:"uri,type:varchar,nullzero,notnull,unique"` // ap_id
	InstanceID string    `bun:"instance_id,type:varchar,nullzero,notnull"`

	Username string `bun:"username,type:varchar,nullzero,notnull"`

	Inbox       string `bun:"inbox,type:varchar,nullzero,notnull"`
	SharedInbox string `bun:"shared_inbox,type:varchar,nullzero"`
	Outbox      string `bun:"outbox,type:varchar,nullzero"`

	PublicKeyPEM  string `bun:"public_key_pem,type:text,nullzero,notnull"`
	PrivateKeyPEM string `bun:"private_key_pem,type:text,nullzero"` // local actors only

	LastRefreshedAt time.Time `bun:"last_refreshed_at,nullzero"`

	Local   bool `bun:"local,notnull,default:false"`
	Deleted bool `bun:"deleted,notnull,default:false"`

	// Community-only fields (§3). Left zero for Person/Site actors.
	FollowersURL   string              `bun:"followers_url,type:varchar,nullzero"`
	ModeratorsURL  string              `bun:"moderators_url,type:varchar,nullzero"`
	FeaturedURL    string              `bun:"featured_url,type:varchar,nullzero"`
	Visibility     CommunityVisibility `bun:"visibility,type:varchar,nullzero"`
}

// IsCommunity reports whether this actor is a Group/community actor.
func (a *Actor) IsCommunity() bool { return a.Type == ActorCommunity }

// FederatesPublicly reports whether a community is eligible to ever be
// the target of outbound federation (§3 invariant).
func (a *Actor) FederatesPublicly() bool {
	if !a.IsCommunity() {
		return true
	}
	return a.Visibility == VisibilityPublic
}

// PreferredInbox returns the shared inbox if set, falling back to the
// actor's own inbox, per the recipient-set resolution rules in §4.5.
func (a *Actor) PreferredInbox() string {
	if a.SharedInbox != "" {
		return a.SharedInbox
	}
	return a.Inbox
}
