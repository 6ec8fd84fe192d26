package portspec

import "errors"

// ErrInvalidPort indicates a port specification segment is not an integer,
// is outside 1..65535, or is a malformed range.
var ErrInvalidPort = errors.New("portspec: invalid port")
