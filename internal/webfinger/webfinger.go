// Package webfinger implements both sides of the discovery protocol
// named in §4.2/§6: resolving a remote "user@host" / "!community@host"
// handle to an actor URL, and serving GET /.well-known/webfinger for
// local actors.
package webfinger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/federatedforum/fedcore/internal/gtserror"
)

// Link is one entry in a WebFinger response's "links" array.
type Link struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href,omitempty"`
}

// Response is the minimal WebFinger JRD this package understands: a
// subject plus the actor-profile link.
type Response struct {
	Subject string `json:"subject"`
	Links   []Link `json:"links"`
}

const activityStreamsType = `application/activity+json`

// ActorURI extracts the ActivityPub actor URL from a WebFinger
// response: the href of the first "self" link whose type contains
// "json" (activity+json or ld+json), in the order the links are listed.
func (r *Response) ActorURI() (string, bool) {
	for _, l := range r.Links {
		if l.Rel == "self" && strings.Contains(l.Type, "json") {
			return l.Href, true
		}
	}
	return "", false
}

// ParseHandle splits "user@host" or "!community@host" into its parts.
func ParseHandle(handle string) (local string, isCommunity bool, host string, err error) {
	handle = strings.TrimPrefix(handle, "acct:")
	if strings.HasPrefix(handle, "!") {
		isCommunity = true
		handle = handle[1:]
	}
	at := strings.LastIndexByte(handle, '@')
	if at < 1 || at == len(handle)-1 {
		return "", false, "", fmt.Errorf("webfinger: malformed handle %q", handle)
	}
	return handle[:at], isCommunity, handle[at+1:], nil
}

// Doer is the minimal HTTP surface webfinger needs; internal/httpclient.Client
// satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Resolve performs the host's WebFinger lookup for a local/community
// handle and returns the response.
func Resolve(ctx context.Context, client Doer, local string, isCommunity bool, host string) (*Response, error) {
	resource := "acct:" + local + "@" + host
	if isCommunity {
		resource = "acct:!" + local + "@" + host
	}

	u := &url.URL{
		Scheme: "https",
		Host:   host,
		Path:   "/.well-known/webfinger",
	}
	q := u.Query()
	q.Set("resource", resource)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("webfinger: build request: %w", err)
	}
	req.Header.Set("Accept", "application/jrd+json, application/json")

	rsp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webfinger: request failed: %w", err)
	}
	defer rsp.Body.Close()

	if rsp.StatusCode == http.StatusNotFound {
		return nil, gtserror.ErrNotFound
	}
	if rsp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("webfinger: unexpected status %d", rsp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(rsp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("webfinger: read response: %w", err)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("webfinger: decode response: %w", err)
	}
	return &out, nil
}

// ActorLookup resolves a local username (and, for communities, a flag)
// to the actor's own ap_id, used to build the ServeHandler response.
type ActorLookup func(ctx context.Context, username string, isCommunity bool) (actorURI string, err error)

// ServeHandler handles GET /.well-known/webfinger for a given host.
func ServeHandler(host string, lookup ActorLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resource := r.URL.Query().Get("resource")
		local, isCommunity, reqHost, err := ParseHandle(resource)
		if err != nil || reqHost != host {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		actorURI, err := lookup(r.Context(), local, isCommunity)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		resp := Response{
			Subject: resource,
			Links: []Link{
				{Rel: "self", Type: activityStreamsType, Href: actorURI},
			},
		}

		w.Header().Set("Content-Type", "application/jrd+json")
		json.NewEncoder(w).Encode(resp)
	}
}
