package bytefmt

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"xorkevin.dev/kerrors"
)

// ErrInvalid is returned when a byte size string is invalid
var ErrInvalid errInvalid

type (
	errInvalid struct{}
)

func (e errInvalid) Error() string {
	return "Invalid byte size"
}

// ToString formats a byte count with binary prefixes
func ToString(b int64) string {
	if b < 0 {
		return "-" + humanize.IBytes(uint64(-b))
	}
	return humanize.IBytes(uint64(b))
}

var unitShift = map[string]uint{
	"":    0,
	"b":   0,
	"k":   10,
	"kb":  10,
	"kib": 10,
	"m":   20,
	"mb":  20,
	"mib": 20,
	"g":   30,
	"gb":  30,
	"gib": 30,
	"t":   40,
	"tb":  40,
	"tib": 40,
}

// FromString parses a byte size such as 4096, 4k, or 1MiB
//
// All unit prefixes are powers of 1024.
func FromString(s string) (int64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	idx := strings.IndexFunc(s, func(r rune) bool {
		return r < '0' || r > '9'
	})
	num := s
	unit := ""
	if idx >= 0 {
		num = s[:idx]
		unit = strings.TrimSpace(s[idx:])
	}
	if num == "" {
		return 0, kerrors.WithKind(nil, ErrInvalid, "Missing byte size value")
	}
	shift, ok := unitShift[unit]
	if !ok {
		return 0, kerrors.WithKind(nil, ErrInvalid, "Unknown byte size unit")
	}
	v, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return 0, kerrors.WithKind(err, ErrInvalid, "Invalid byte size value")
	}
	if v > (1<<63-1)>>shift {
		return 0, kerrors.WithKind(nil, ErrInvalid, "Byte size overflows")
	}
	return v << shift, nil
}
