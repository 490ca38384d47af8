package gtserror

import "errors"

// Sentinel errors for the §7 error-kind table. Handlers return these
// (wrapped with New/Newf/Wrap, or bare) and callers classify with
// errors.Is; the dispatcher and send workers branch on them rather than
// on a single sprawling enum.
var (
	// ErrNotFound: terminal at call site; may translate to 404 or to
	// "skip this activity".
	ErrNotFound = errors.New("not found")

	// ErrUrlDisallowed: terminal; refuses the activity.
	ErrUrlDisallowed = errors.New("url disallowed by instance policy")

	// ErrRecursionLimit: terminal; drops activity with log.
	ErrRecursionLimit = errors.New("recursion budget exhausted")

	// ErrSignatureInvalid: returns 401 to sender; never retried inbound.
	ErrSignatureInvalid = errors.New("http signature invalid")

	// ErrCodecError: returns 400 to sender; logs sample.
	ErrCodecError = errors.New("activity could not be decoded")

	// ErrDbTransient: retries with backoff (same activity).
	ErrDbTransient = errors.New("transient database error")

	// ErrDbPermanent: fails inbound (5xx); outbound treats as retryable.
	ErrDbPermanent = errors.New("permanent database error")

	// Business-rule refusals: surfaced to callers, never to federation peers.
	ErrLocked  = errors.New("account is locked")
	ErrRemoved = errors.New("object has been removed")
	ErrDeleted = errors.New("object has been deleted")
	ErrBanned  = errors.New("actor is banned")

	// ErrNotPermitted covers authority/permission refusals: cross-instance
	// moderation actions, addressing mismatches, and similar (§4.4, §8.6).
	ErrNotPermitted = errors.New("not permitted")
)

// IsRetryableUpstream reports whether an outbound HTTP status code
// should be retried with backoff (408/429/5xx) versus dropped
// definitively (other 4xx), per §4.7 steps 5-6.
func IsRetryableUpstream(statusCode int) bool {
	switch statusCode {
	case 408, 429:
		return true
	default:
		return statusCode >= 500
	}
}

// NotFound reports whether err is (or wraps) ErrNotFound.
func NotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// UrlDisallowed reports whether err is (or wraps) ErrUrlDisallowed.
func UrlDisallowed(err error) bool { return errors.Is(err, ErrUrlDisallowed) }

// RecursionLimit reports whether err is (or wraps) ErrRecursionLimit.
func RecursionLimit(err error) bool { return errors.Is(err, ErrRecursionLimit) }

// NotPermitted reports whether err is (or wraps) ErrNotPermitted.
func NotPermitted(err error) bool { return errors.Is(err, ErrNotPermitted) }

// IsUnretrievable is a softer check used when deciding whether a
// federated object reference should simply be skipped rather than
// treated as a hard failure (e.g. a boosted status whose domain is
// blocked): true for not-found, disallowed-url, or recursion-limited.
func IsUnretrievable(err error) bool {
	return NotFound(err) || UrlDisallowed(err) || RecursionLimit(err)
}
