package model

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrDataUnavailable means no usable dataset snapshot exists. It is a distinct
// user-visible state, never an empty result.
var ErrDataUnavailable = eris.New("data unavailable")

// ErrInvalidParameter marks a rejected query parameter such as top_n < 1 or a
// malformed date window.
var ErrInvalidParameter = eris.New("invalid parameter")

// Unavailable marks err as a dataset acquisition failure. Both
// ErrDataUnavailable and err stay reachable through errors.Is.
func Unavailable(err error, msg string) error {
	return fmt.Errorf("%s: %w: %w", msg, ErrDataUnavailable, err)
}
