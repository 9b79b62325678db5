package cluster

import (
	"context"
	"net"

	"github.com/jmgilman/go/errors"
)

// notFound reports that the owning node does not hold key (absent or
// expired). Callers match it with IsNotFound.
func notFound(key string) error {
	return errors.WithContext(errors.New(errors.CodeNotFound, "key not found"), "key", key)
}

// IsNotFound reports whether err means the key is absent.
func IsNotFound(err error) bool {
	return errors.GetCode(err) == errors.CodeNotFound
}

// IsPeerFailure reports whether err is a routing transport failure: the
// owner could not be reached, timed out or answered with an unexpected
// status.
func IsPeerFailure(err error) bool {
	switch errors.GetCode(err) {
	case errors.CodeNetwork, errors.CodeTimeout, errors.CodeUnavailable:
		return true
	}
	return false
}

// peerError classifies a failed peer call and attaches peer/op context.
func peerError(err error, peer, op string) error {
	if err == nil {
		return nil
	}
	code := errors.CodeNetwork
	var ne net.Error
	switch {
	case errors.GetCode(err) != errors.CodeUnknown:
		code = errors.GetCode(err)
	case errors.Is(err, context.DeadlineExceeded):
		code = errors.CodeTimeout
	case errors.As(err, &ne) && ne.Timeout():
		code = errors.CodeTimeout
	}
	return errors.WrapWithContext(err, code, "peer call failed", map[string]interface{}{
		"peer": peer,
		"op":   op,
	})
}
