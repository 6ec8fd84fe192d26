package input

import "errors"

// Sentinel errors for address expansion failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrInvalidAddress indicates a token is not a valid address, range
	// or CIDR block. Expansion is all-or-nothing: one bad token fails
	// the whole input.
	ErrInvalidAddress = errors.New("input: invalid address")

	// ErrNoAddresses indicates the input contained no tokens at all.
	ErrNoAddresses = errors.New("input: no addresses given")

	// ErrExpansionTooLarge indicates a range or block exceeds MaxExpansion.
	ErrExpansionTooLarge = errors.New("input: expansion too large")
)
