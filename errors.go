package goWA

import (
	"errors"

	"github.com/MrEthical07/goWA/client"
	"github.com/MrEthical07/goWA/internal/dispatch"
	"github.com/MrEthical07/goWA/session"
)

var (
	// ErrDuplicateSession is returned by CreateSession when the id is already registered.
	ErrDuplicateSession = session.ErrDuplicateSession
	// ErrSessionNotFound is returned when no session is registered under the id.
	ErrSessionNotFound = session.ErrSessionNotFound
	// ErrExternalClient wraps any failure reported by the messaging client, timeouts included.
	ErrExternalClient = session.ErrExternalClient
	// ErrClientUnavailable is reported when a session has no client handle yet or anymore.
	ErrClientUnavailable = session.ErrClientUnavailable
	// ErrClientTimeout marks an external call that exceeded its configured deadline.
	ErrClientTimeout = client.ErrTimeout
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = dispatch.ErrValidation
	// ErrSendFailed is matched by every *SendError.
	ErrSendFailed = dispatch.ErrSendFailed
	// ErrChallengeUnavailable is returned by ChallengeImage before the client issued a challenge.
	ErrChallengeUnavailable = errors.New("challenge not available yet")
	// ErrAlreadyAuthenticated is returned by ChallengeImage for an authenticated session.
	ErrAlreadyAuthenticated = errors.New("session already authenticated")
	// ErrEngineClosed is returned by every operation after Close.
	ErrEngineClosed = errors.New("engine closed")
)

// ValidationError reports a request rejected before it reached the client.
type ValidationError = dispatch.ValidationError

// SendError reports one recipient whose send failed; Cause keeps the
// original client error.
type SendError = dispatch.SendError
