package channels

import "errors"

// ErrNoSubscribers indicates a broadcast channel had no live clients left
// by the time delivery ran.
var ErrNoSubscribers = errors.New("no subscribers connected")
