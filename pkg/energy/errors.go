package energy

import "errors"

var (
	// ErrClassifierUnavailable indicates the external classifier could not
	// produce a signature for the message.
	ErrClassifierUnavailable = errors.New("energy classifier unavailable")
)
