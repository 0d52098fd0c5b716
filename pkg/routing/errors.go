package routing

import "errors"

var (
	// ErrOracleUnavailable indicates the base-score oracle could not be reached.
	ErrOracleUnavailable = errors.New("routing oracle unavailable")
	// ErrMalformedScores indicates the oracle replied with an unusable payload.
	ErrMalformedScores = errors.New("routing oracle returned malformed scores")
)
