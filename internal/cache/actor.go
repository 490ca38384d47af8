package cache

import (
	"sync"

	"github.com/federatedforum/fedcore/internal/gtsmodel"
)

// ActorCache fronts the actor table: every remote actor dereferenced
// gets a cache entry so repeated mentions in a burst of inbound
// activities don't each cost a round trip (§4.2).
type ActorCache struct {
	byID *TTLCache[string, *gtsmodel.Actor]

	mu         sync.RWMutex
	byURI      map[string]string // uri -> id
	byUsername map[string]string // "username@domain" -> id (recorded by Load); Put also records "username@instanceID"
}

func NewActorCache() *ActorCache {
	return &ActorCache{
		byID:       newTTLCache[string, *gtsmodel.Actor](),
		byURI:      make(map[string]string),
		byUsername: make(map[string]string),
	}
}

// Load fetches an actor by one of the supported lookup kinds ("ID",
// "URI"), calling loader on a cache miss and populating the cache with
// the result.
func (c *ActorCache) Load(lookup string, loader func() (*gtsmodel.Actor, error), keyParts ...any) (*gtsmodel.Actor, error) {
	var id string
	switch lookup {
	case "ID":
		id = keyParts[0].(string)
	case "URI":
		c.mu.RLock()
		cachedID, ok := c.byURI[keyParts[0].(string)]
		c.mu.RUnlock()
		if !ok {
			actor, err := loader()
			if err != nil {
				return nil, err
			}
			c.Put(actor)
			return actor, nil
		}
		id = cachedID
	case "Username.Domain":
		c.mu.RLock()
		key := keyParts[0].(string) + "@" + keyParts[1].(string)
		cachedID, ok := c.byUsername[key]
		c.mu.RUnlock()
		if !ok {
			actor, err := loader()
			if err != nil {
				return nil, err
			}
			c.Put(actor)
			if actor != nil && actor.ID != "" {
				c.mu.Lock()
				c.byUsername[key] = actor.ID
				c.mu.Unlock()
			}
			return actor, nil
		}
		id = cachedID
	default:
		actor, err := loader()
		if err != nil {
			return nil, err
		}
		c.Put(actor)
		return actor, nil
	}

	if actor, ok := c.byID.Get(id); ok {
		return actor, nil
	}
	actor, err := loader()
	if err != nil {
		return nil, err
	}
	c.Put(actor)
	return actor, nil
}

// Put inserts or refreshes an actor in the cache and its secondary
// indices.
func (c *ActorCache) Put(actor *gtsmodel.Actor) {
	if actor == nil || actor.ID == "" {
		return
	}
	c.byID.Set(actor.ID, actor)

	c.mu.Lock()
	if actor.URI != "" {
		c.byURI[actor.URI] = actor.ID
	}
	if actor.Username != "" && actor.InstanceID != "" {
		c.byUsername[actor.Username+"@"+actor.InstanceID] = actor.ID
	}
	c.mu.Unlock()
}

// Invalidate drops an actor from the cache by the given lookup kind.
func (c *ActorCache) Invalidate(lookup string, key string) {
	id := key
	if lookup != "ID" {
		c.mu.RLock()
		var ok bool
		switch lookup {
		case "URI":
			id, ok = c.byURI[key]
		case "Username.Domain":
			id, ok = c.byUsername[key]
		}
		c.mu.RUnlock()
		if !ok {
			return
		}
	}
	c.byID.Invalidate(id)
}
