package search

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Provider failure classes. Provider implementations wrap one of these so that
// callers can classify failures with errors.Is.
var (
	// ErrTimeout indicates the provider did not answer in time.
	ErrTimeout = errors.New("provider timeout")

	// ErrConnection indicates the provider could not be reached.
	ErrConnection = errors.New("provider connection failed")

	// ErrRateLimited indicates the provider refused the request with a rate limit.
	ErrRateLimited = errors.New("too many requests")

	// ErrRejected indicates the provider permanently refused the request
	// (bad credentials, malformed query). Retrying will not help.
	ErrRejected = errors.New("provider rejected request")
)

// ProviderError carries the provider's own error code and message.
type ProviderError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	return msg
}

// Unwrap returns the failure class, if any.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Kind is the classification of a provider failure.
type Kind int

const (
	// KindGeneric is any failure not covered by another kind.
	KindGeneric Kind = iota
	// KindTimeout is a slow provider.
	KindTimeout
	// KindConnection is an unreachable provider.
	KindConnection
	// KindRateLimited is a rate-limit refusal.
	KindRateLimited
)

// String returns the kind's name as used in logs and audit events.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "generic"
	}
}

// Classify maps err to a Kind. Typed failures win; rate limiting is then
// recognized from the provider's message text ("429", "too many requests")
// for providers that do not wrap ErrRateLimited.
func Classify(err error) Kind {
	if err == nil {
		return KindGeneric
	}
	if errors.Is(err, ErrRateLimited) {
		return KindRateLimited
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, ErrConnection) {
		return KindConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}
	msg := strings.ToLower(providerText(err))
	if strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") {
		return KindRateLimited
	}
	return KindGeneric
}

// providerText returns the part of err that the provider wrote, leaving out
// request URLs carried by transport errors.
func providerText(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Message + " " + pe.Code
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err.Error()
	}
	return err.Error()
}

// IsPermanent reports whether err is a refusal that retrying cannot fix.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrRejected)
}
