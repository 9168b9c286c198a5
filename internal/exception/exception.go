package exception

import "github.com/pkg/errors"

// Notification errors
var (
	ErrMalformedNotification = errors.New("notification: malformed")
	ErrUnsupportedInstrument = errors.New("notification: unsupported instrument")
	ErrEmptyContent          = errors.New("notification: empty content")
)

// Exchange errors
var (
	ErrTransport    = errors.New("exchange: transport failure")
	ErrExchange     = errors.New("exchange: rejected by exchange")
	ErrSigning      = errors.New("exchange: cannot sign request")
	ErrInvalidOrder = errors.New("exchange: invalid order request")
)

// Queue errors
var (
	ErrQueueClosed     = errors.New("queue: closed")
	ErrInvalidDelivery = errors.New("queue: invalid delivery")
	ErrQueueLockLost   = errors.New("queue: consumer lock lost")
	ErrClaimPending    = errors.New("queue: claim held by an unfinished delivery")
)
