package cache

import (
	"sync"

	"github.com/federatedforum/fedcore/internal/gtsmodel"
)

// ContentCache fronts posts and comments by ID/URI, letting the
// dispatcher resolve a Like/Dislike/reply target's local ID from its
// ap_id without a database round trip on every activity in a burst.
type ContentCache struct {
	posts    *TTLCache[string, *gtsmodel.Post]
	comments *TTLCache[string, *gtsmodel.Comment]

	mu          sync.RWMutex
	postURIs    map[string]string
	commentURIs map[string]string
}

func NewContentCache() *ContentCache {
	return &ContentCache{
		posts:       newTTLCache[string, *gtsmodel.Post](),
		comments:    newTTLCache[string, *gtsmodel.Comment](),
		postURIs:    make(map[string]string),
		commentURIs: make(map[string]string),
	}
}

func (c *ContentCache) LoadPost(lookup string, loader func() (*gtsmodel.Post, error), key string) (*gtsmodel.Post, error) {
	id := key
	if lookup == "URI" {
		c.mu.RLock()
		cachedID, ok := c.postURIs[key]
		c.mu.RUnlock()
		if !ok {
			post, err := loader()
			if err != nil {
				return nil, err
			}
			c.PutPost(post)
			return post, nil
		}
		id = cachedID
	}
	if post, ok := c.posts.Get(id); ok {
		return post, nil
	}
	post, err := loader()
	if err != nil {
		return nil, err
	}
	c.PutPost(post)
	return post, nil
}

func (c *ContentCache) PutPost(post *gtsmodel.Post) {
	if post == nil || post.ID == "" {
		return
	}
	c.posts.Set(post.ID, post)
	if post.URI != "" {
		c.mu.Lock()
		c.postURIs[post.URI] = post.ID
		c.mu.Unlock()
	}
}

func (c *ContentCache) InvalidatePost(id string) {
	c.posts.Invalidate(id)
}

func (c *ContentCache) LoadComment(lookup string, loader func() (*gtsmodel.Comment, error), key string) (*gtsmodel.Comment, error) {
	id := key
	if lookup == "URI" {
		c.mu.RLock()
		cachedID, ok := c.commentURIs[key]
		c.mu.RUnlock()
		if !ok {
			comment, err := loader()
			if err != nil {
				return nil, err
			}
			c.PutComment(comment)
			return comment, nil
		}
		id = cachedID
	}
	if comment, ok := c.comments.Get(id); ok {
		return comment, nil
	}
	comment, err := loader()
	if err != nil {
		return nil, err
	}
	c.PutComment(comment)
	return comment, nil
}

func (c *ContentCache) PutComment(comment *gtsmodel.Comment) {
	if comment == nil || comment.ID == "" {
		return
	}
	c.comments.Set(comment.ID, comment)
	if comment.URI != "" {
		c.mu.Lock()
		c.commentURIs[comment.URI] = comment.ID
		c.mu.Unlock()
	}
}

func (c *ContentCache) InvalidateComment(id string) {
	c.comments.Invalidate(id)
}
