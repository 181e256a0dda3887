package cmd

import (
	"errors"

	"xorkevin.dev/bitmend/bruteforce"
	"xorkevin.dev/bitmend/fileio"
	"xorkevin.dev/bitmend/parity"
	"xorkevin.dev/bitmend/stripe"
)

const (
	exitOK            = 0
	exitFailure       = 1
	exitIO            = 2
	exitFormat        = 3
	exitUncorrectable = 4
	exitNotFound      = 5
	exitMismatch      = 6
)

// exitCode maps an error to the process exit status
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, parity.ErrUncorrectable):
		return exitUncorrectable
	case errors.Is(err, bruteforce.ErrNotFound):
		return exitNotFound
	case errors.Is(err, stripe.ErrFormat):
		return exitFormat
	case errors.Is(err, fileio.ErrIO):
		return exitIO
	default:
		return exitFailure
	}
}
