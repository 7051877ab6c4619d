package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyCity is returned when a query names no city.
var ErrEmptyCity = errors.New("city is required")

// ConfigurationError reports missing or invalid local configuration, such as an
// absent API key. It is always raised before any network I/O.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Msg }

// NetworkError reports a transport failure: DNS, refused connection, timeout,
// or cancellation.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %s: %v", e.Op, e.Err) }

func (e *NetworkError) Unwrap() error { return e.Err }

// UpstreamError reports an error answered by the weather provider itself,
// either through the HTTP status or the "cod" field of the payload.
type UpstreamError struct {
	StatusCode int    // HTTP status
	Code       string // payload "cod", may be empty
	Message    string
	Err        error // decode failure, if any
}

func (e *UpstreamError) Error() string { return e.Message }

func (e *UpstreamError) Unwrap() error { return e.Err }

// LocationError reports that the caller's city could not be detected.
type LocationError struct {
	Msg string
	Err error
}

func (e *LocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *LocationError) Unwrap() error { return e.Err }

// Kind enumerates the outcome of a weather call.
type Kind int

const (
	KindNone Kind = iota
	KindConfiguration
	KindNetwork
	KindUpstream
	KindLocation
	KindInvalid
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindConfiguration:
		return "configuration"
	case KindNetwork:
		return "network"
	case KindUpstream:
		return "upstream"
	case KindLocation:
		return "location"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// KindOf classifies err. A nil error is KindNone.
func KindOf(err error) Kind {
	var (
		cfgErr *ConfigurationError
		netErr *NetworkError
		upErr  *UpstreamError
		locErr *LocationError
	)
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.As(err, &netErr):
		return KindNetwork
	case errors.As(err, &upErr):
		return KindUpstream
	case errors.As(err, &locErr):
		return KindLocation
	case errors.Is(err, ErrEmptyCity):
		return KindInvalid
	default:
		return KindUnknown
	}
}
