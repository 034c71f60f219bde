package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkUnavailable indicates the reachability probe failed before
	// any extraction attempt was made.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrEmptyResponse indicates an empty or structurally malformed platform response.
	ErrEmptyResponse = errors.New("empty or malformed response")
	// ErrNoMatchingFormat indicates no offered format satisfied the quality mode.
	ErrNoMatchingFormat = errors.New("no matching format")
	// ErrCipherDecryptFailed indicates signature descrambling failed.
	ErrCipherDecryptFailed = errors.New("cipher decrypt failed")
	// ErrExtractorOutdated indicates the player script no longer matches any
	// known descramble-function pattern and the extractor needs updating.
	ErrExtractorOutdated = errors.New("extractor outdated")
	// ErrAllExtractorsExhausted indicates every strategy in the chain failed.
	ErrAllExtractorsExhausted = errors.New("all extractors exhausted")
	// ErrResolutionTimeout indicates the resolution hit its overall deadline.
	ErrResolutionTimeout = errors.New("resolution timeout")
	// ErrStallTimeout indicates playback sat in ready state without progress
	// for longer than the stall window.
	ErrStallTimeout = errors.New("stall timeout")
	// ErrRetryLimitReached indicates automatic recovery stopped at the retry cap.
	ErrRetryLimitReached = errors.New("retry limit reached")
)

// HTTPError carries a non-success HTTP status from a platform endpoint.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http failure: status %d (%s)", e.Status, e.URL)
}

// NotPlayableError carries the platform's playability refusal reason
// (geo block, age restriction, private video and similar).
type NotPlayableError struct {
	Status string
	Reason string
}

func (e *NotPlayableError) Error() string {
	if e.Reason == "" {
		return "not playable: " + e.Status
	}
	return "not playable: " + e.Reason
}

// IsNotPlayable reports whether err is a platform playability refusal.
func IsNotPlayable(err error) bool {
	var npe *NotPlayableError
	return errors.As(err, &npe)
}
