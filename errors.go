package agent

import (
	"errors"
)

var (
	// ErrMaxRetriesExceeded is returned once the connect attempts or the detected
	// disconnects go past broker.retries.
	ErrMaxRetriesExceeded = errors.New("exceeded maximum retries")
	// ErrInvalidBrokerURI is returned when the broker host cannot be used to build a client.
	ErrInvalidBrokerURI = errors.New("invalid broker uri")

	ErrConnectTimeout     = errors.New("client timed out while trying to connect to the broker")
	ErrPublishTimeout     = errors.New("publish timeout")
	ErrSubscribeTimeout   = errors.New("subscribe timeout")
	ErrUnsubscribeTimeout = errors.New("unsubscribe timeout")
)

func isTimeout(err error) bool {
	return errors.Is(err, ErrConnectTimeout) ||
		errors.Is(err, ErrPublishTimeout) ||
		errors.Is(err, ErrSubscribeTimeout) ||
		errors.Is(err, ErrUnsubscribeTimeout)
}
