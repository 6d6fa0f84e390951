package feed

import "fmt"

// AuthError reports a failed session handshake.
type AuthError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *AuthError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("feed handshake failed: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("feed handshake failed: status %d %s", e.StatusCode, e.Reason)
	default:
		return fmt.Sprintf("feed handshake failed: %s", e.Reason)
	}
}

func (e *AuthError) Unwrap() error { return e.Err }

// FetchError reports a failed order book request.
type FetchError struct {
	StatusCode int
	Body       string // excerpt
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feed fetch failed: %v", e.Err)
	}
	return fmt.Sprintf("feed fetch failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DecompressionError reports a body that could not be decoded for its
// Content-Encoding. The raw bytes are never passed on.
type DecompressionError struct {
	Encoding string
	Err      error
}

func (e *DecompressionError) Error() string {
	return fmt.Sprintf("decode %q body: %v", e.Encoding, e.Err)
}

func (e *DecompressionError) Unwrap() error { return e.Err }

// ParseError reports a structurally invalid payload.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse feed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse feed: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }
