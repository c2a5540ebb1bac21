// Package glasserrors classifies the recoverable error kinds the
// associator's ingress path can hit, per the error handling design: nothing
// here is retried automatically, callers log-and-drop or log-and-evict.
package glasserrors

import "github.com/pkg/errors"

// Sentinel error kinds. Wrap a more specific cause with errors.Wrap(Kind,
// "detail") and classify it later with errors.Is.
var (
	// ErrMalformedInput: missing required field, unparsable time, or an
	// otherwise unprocessable message. Log at warn, drop the message.
	ErrMalformedInput = errors.New("malformed input")

	// ErrDuplicateInput: a pick or correlation matches one already held
	// within the configured time window. Log at debug, drop.
	ErrDuplicateInput = errors.New("duplicate input")

	// ErrCapacityEvicted: adding the item would exceed a bounded list's
	// capacity; the list evicted its oldest member to make room. Not
	// fatal — the caller proceeds with the insert.
	ErrCapacityEvicted = errors.New("capacity evicted")

	// ErrUnviableHypo: cancelCheck found the hypo no longer viable.
	ErrUnviableHypo = errors.New("unviable hypo")

	// ErrUnresolvedSite: a pick referenced a site this process has never
	// seen; a SiteLookup request should be queued and the pick dropped.
	ErrUnresolvedSite = errors.New("unresolved site")
)

// Classify returns the sentinel kind err was wrapped from, or nil if err
// does not match any known kind.
func Classify(err error) error {
	for _, kind := range []error{
		ErrMalformedInput,
		ErrDuplicateInput,
		ErrCapacityEvicted,
		ErrUnviableHypo,
		ErrUnresolvedSite,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
