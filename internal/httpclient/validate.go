package httpclient

import "net/http"

// ValidateRequest rejects requests that are structurally unsafe to
// perform: no host, no scheme, or a scheme other than http(s).
func ValidateRequest(req *http.Request) error {
	if req.URL == nil || req.URL.Host == "" {
		return ErrInvalidRequest
	}
	switch req.URL.Scheme {
	case "http", "https":
	default:
		return ErrInvalidRequest
	}
	return nil
}
