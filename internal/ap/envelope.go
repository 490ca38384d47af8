package ap

import (
	"bytes"
	"encoding/json"

	"codeberg.org/gruf/go-byteutil"
)

// PublicURI is the well-known ActivityStreams public audience IRI.
const PublicURI = "https://www.w3.org/ns/activitystreams#Public"

// DefaultContext is the @context preamble this codec emits on every
// outbound activity. Interop with the wider fediverse needs the base
// AS namespace plus the security (RSA signature key) extension.
var DefaultContext = []any{
	"https://www.w3.org/ns/activitystreams",
	"https://w3id.org/security/v1",
}

// StringSlice accepts either a bare JSON string or an array of strings
// for fields like "to"/"cc" that ActivityPub allows either shape for,
// and always marshals back out as an array.
type StringSlice []string

func (s *StringSlice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || byteutil.B2S(data) == "null" {
		*s = nil
		return nil
	}
	if data[0] == '[' {
		var arr []string
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		*s = arr
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*s = []string{one}
	return nil
}

func (s StringSlice) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string(s))
}

// Contains reports whether v is present in s.
func (s StringSlice) Contains(v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// envelope is the wire shape of every activity this codec handles: a
// plain JSON object with a conventional @context preamble and a type
// discriminator, per spec §4.1 ("treats the wire format as plain JSON
// ... not as a general JSON-LD processor").
type envelope struct {
	Context   any             `json:"@context,omitempty"`
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Actor     string          `json:"actor,omitempty"`
	To        StringSlice     `json:"to,omitempty"`
	Cc        StringSlice     `json:"cc,omitempty"`
	Published *string         `json:"published,omitempty"`
	Object    json.RawMessage `json:"object,omitempty"`
	Target    json.RawMessage `json:"target,omitempty"`
}

// objectPeek is used to sniff the "type" and "id"/"attributedTo" of an
// Object or Target field without committing to its full shape, since
// the object may be a bare IRI string, a nested activity, or a nested
// content object (Note/Page/Group).
type objectPeek struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	AttributedTo string `json:"attributedTo"`
	InReplyTo    string `json:"inReplyTo"`
}

// peek inspects raw (an Object/Target field) and returns whether it
// was a bare IRI string, and if not, its id/type.
func peek(raw json.RawMessage) (bareIRI string, isBare bool, p objectPeek, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || byteutil.B2S(raw) == "null" {
		return "", false, objectPeek{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false, objectPeek{}, err
		}
		return s, true, objectPeek{}, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", false, objectPeek{}, err
	}
	return "", false, p, nil
}
