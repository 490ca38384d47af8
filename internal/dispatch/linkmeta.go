package dispatch

import (
	"context"

	"mvdan.cc/xurls/v2"

	"github.com/federatedforum/fedcore/internal/log"
)

// bareURL finds the first bare URL mentioned in a post/comment body, a
// relaxed scan (schemeless hosts like "example.com/x" count) since
// federated authors rarely bother with an explicit "https://".
var bareURL = xurls.Relaxed()

// scheduleLinkEnrichment triggers downstream link-metadata enrichment
// (thumbnail, embed) for a newly received or updated post (§4.4: "is
// triggered asynchronously and is not part of the receive transaction").
// Finding no URL in the body is the common case and isn't logged; actually
// fetching and caching the remote page's metadata is done out of process
// by whatever consumes this log signal, not by the federation core itself.
func (p *Processor) scheduleLinkEnrichment(ctx context.Context, postURI, body string) {
	if body == "" {
		return
	}
	go func() {
		link := bareURL.FindString(body)
		if link == "" {
			return
		}
		log.Infof("dispatch: post %s references %s, scheduling link enrichment", postURI, link)
	}()
}
