package ap

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireContent is the wire shape shared by Note and Page content
// objects; Page additionally carries name/url, Note is body-only.
type wireContent struct {
	ID           string      `json:"id"`
	Type         ObjectType  `json:"type"`
	AttributedTo string      `json:"attributedTo"`
	Context      string      `json:"context,omitempty"`
	InReplyTo    string      `json:"inReplyTo,omitempty"`
	Name         string      `json:"name,omitempty"`
	URL          string      `json:"url,omitempty"`
	Content      string      `json:"content"`
	Published    string      `json:"published,omitempty"`
	Updated      string      `json:"updated,omitempty"`
	To           StringSlice `json:"to,omitempty"`
	Cc           StringSlice `json:"cc,omitempty"`
}

// ContentObject is the decoded, normalized form of a Note/Page content
// object: a Post (Page), a threaded Comment (Note with InReplyTo or
// Context), or a PrivateMessage (Note addressed only to a recipient,
// distinguished by the caller from the absence of Context).
type ContentObject struct {
	ID           string
	Type         ObjectType
	AttributedTo string
	CommunityURI string // wireContent.Context: the community this content belongs to
	InReplyTo    string
	Title        string
	URL          string
	Body         string
	Published    time.Time
	Updated      *time.Time
	To           []string
	Cc           []string
}

// ParseContentObject decodes a Note or Page object (already known to
// be a direct, not bare-IRI, object per ap.Activity.Object).
func ParseContentObject(raw json.RawMessage) (*ContentObject, error) {
	var w wireContent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedObject, err)
	}
	if w.ID == "" || w.AttributedTo == "" {
		return nil, fmt.Errorf("%w: content object missing id or attributedTo", ErrMalformedObject)
	}

	out := &ContentObject{
		ID:           w.ID,
		Type:         w.Type,
		AttributedTo: w.AttributedTo,
		CommunityURI: w.Context,
		InReplyTo:    w.InReplyTo,
		Title:        w.Name,
		URL:          w.URL,
		Body:         w.Content,
		To:           w.To,
		Cc:           w.Cc,
	}
	if w.Published != "" {
		if t, err := time.Parse(time.RFC3339, w.Published); err == nil {
			out.Published = t
		}
	}
	if out.Published.IsZero() {
		out.Published = time.Now().UTC()
	}
	if w.Updated != "" {
		if t, err := time.Parse(time.RFC3339, w.Updated); err == nil {
			out.Updated = &t
		}
	}
	return out, nil
}

// BuildContentObject marshals a Post/Comment as a Note or Page object,
// the inline "object" value of a Create/Update (and, for Page, the
// inner of a compatibility Announce).
func BuildContentObject(obj *ContentObject) (json.RawMessage, error) {
	w := wireContent{
		ID:           obj.ID,
		Type:         obj.Type,
		AttributedTo: obj.AttributedTo,
		Context:      obj.CommunityURI,
		InReplyTo:    obj.InReplyTo,
		Name:         obj.Title,
		URL:          obj.URL,
		Content:      obj.Body,
		Published:    obj.Published.UTC().Format(time.RFC3339),
		To:           obj.To,
		Cc:           obj.Cc,
	}
	if obj.Updated != nil {
		w.Updated = obj.Updated.UTC().Format(time.RFC3339)
	}
	return json.Marshal(w)
}
