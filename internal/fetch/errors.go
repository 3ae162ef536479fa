package fetch

import "fmt"

// Kind classifies fetch failures. 4xx responses are never retried; 5xx
// and transport errors are.
type Kind int

const (
	KindTimeout Kind = iota
	KindDNS
	KindConnect
	KindHTTP4xx
	KindHTTP5xx
	KindTooManyRetries
	KindDisallowed
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindDNS:
		return "dns"
	case KindConnect:
		return "connect"
	case KindHTTP4xx:
		return "http_4xx"
	case KindHTTP5xx:
		return "http_5xx"
	case KindTooManyRetries:
		return "too_many_retries"
	case KindDisallowed:
		return "disallowed"
	}
	return "unknown"
}

// Error is a classified fetch failure. Status is set for HTTP errors.
type Error struct {
	Kind   Kind
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Kind, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindHTTP4xx, KindDisallowed, KindTooManyRetries:
		return false
	}
	return true
}
