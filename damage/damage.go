// Package damage injects byte and bit errors into data for testing repairs.
package damage

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"

	"xorkevin.dev/kerrors"
)

// ErrScript is returned when a damage script is malformed
var ErrScript errScript

type (
	errScript struct{}
)

func (e errScript) Error() string {
	return "Invalid damage script"
}

type (
	// Options configure random damage
	Options struct {
		// Count is the number of bursts
		Count int
		// Burst is the number of consecutive bytes in a burst
		Burst int
		// Mask is xored into every damaged byte
		Mask byte
	}

	// Change is a single modified byte
	Change struct {
		Offset int
		From   byte
		To     byte
	}
)

func DefaultOptions() Options {
	return Options{
		Count: 1,
		Burst: 1,
		Mask:  0xff,
	}
}

// Random xors the mask into bursts of bytes at random offsets
//
// Bursts are clamped to the end of data.
func Random(rng *rand.Rand, data []byte, opts Options) []Change {
	if len(data) == 0 {
		return nil
	}
	var changes []Change
	for range opts.Count {
		start := rng.Intn(len(data))
		end := min(start+max(opts.Burst, 1), len(data))
		for i := start; i < end; i++ {
			orig := data[i]
			data[i] ^= opts.Mask
			changes = append(changes, Change{Offset: i, From: orig, To: data[i]})
		}
	}
	return changes
}

type (
	unit int
	op   int

	instruction struct {
		line  int
		unit  unit
		start int
		end   int
		op    op
		value byte
	}
)

const (
	unitByte unit = iota
	unitBit
)

const (
	opSet op = iota
	opXor
	opRand
)

// Apply runs a damage script against data
//
// Each line is "byte|bit <n>[-<m>] set|xor|rand [value]" where the range
// excludes m, bits are numbered from the most significant bit of byte 0, and
// value is decimal or prefixed by 0x, 0o, or 0b. Value defaults to 0 for set
// and 0xff for xor. For bits any nonzero value is 1. Blank lines and lines
// starting with # are ignored. The script is fully parsed before data is
// modified.
func Apply(rng *rand.Rand, data []byte, script io.Reader) ([]Change, error) {
	instrs, err := parseScript(script)
	if err != nil {
		return nil, err
	}
	for _, i := range instrs {
		limit := len(data)
		if i.unit == unitBit {
			limit = len(data) * 8
		}
		if i.end > limit {
			return nil, kerrors.WithKind(nil, ErrScript, fmt.Sprintf("Line %d: range exceeds data", i.line))
		}
	}
	var changes []Change
	for _, i := range instrs {
		for idx := i.start; idx < i.end; idx++ {
			var c Change
			if i.unit == unitBit {
				c = applyBit(rng, data, idx, i)
			} else {
				c = applyByte(rng, data, idx, i)
			}
			if c.From != c.To {
				changes = append(changes, c)
			}
		}
	}
	return changes, nil
}

func applyByte(rng *rand.Rand, data []byte, idx int, i instruction) Change {
	orig := data[idx]
	switch i.op {
	case opSet:
		data[idx] = i.value
	case opXor:
		data[idx] ^= i.value
	case opRand:
		data[idx] = byte(rng.Intn(256))
	}
	return Change{Offset: idx, From: orig, To: data[idx]}
}

func applyBit(rng *rand.Rand, data []byte, idx int, i instruction) Change {
	offset := idx / 8
	mask := byte(1) << (7 - idx%8)
	orig := data[offset]
	var bit bool
	switch i.op {
	case opSet:
		bit = i.value != 0
	case opXor:
		bit = (orig&mask != 0) != (i.value != 0)
	case opRand:
		bit = rng.Intn(2) == 1
	}
	if bit {
		data[offset] |= mask
	} else {
		data[offset] &^= mask
	}
	return Change{Offset: offset, From: orig, To: data[offset]}
}

func parseScript(script io.Reader) ([]instruction, error) {
	var instrs []instruction
	scanner := bufio.NewScanner(script)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		instr, err := parseLine(line)
		if err != nil {
			return nil, kerrors.WithKind(err, ErrScript, fmt.Sprintf("Line %d: %s", lineNum, line))
		}
		instr.line = lineNum
		instrs = append(instrs, instr)
	}
	if err := scanner.Err(); err != nil {
		return nil, kerrors.WithMsg(err, "Failed reading damage script")
	}
	return instrs, nil
}

func parseLine(line string) (instruction, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 || len(fields) > 4 {
		return instruction{}, kerrors.WithMsg(nil, "Expected 3 or 4 fields")
	}
	var instr instruction
	switch fields[0] {
	case "byte":
		instr.unit = unitByte
	case "bit":
		instr.unit = unitBit
	default:
		return instruction{}, kerrors.WithMsg(nil, "Unknown unit "+fields[0])
	}
	startStr, endStr, isRange := strings.Cut(fields[1], "-")
	start, err := strconv.Atoi(startStr)
	if err != nil || start < 0 {
		return instruction{}, kerrors.WithMsg(err, "Invalid index "+startStr)
	}
	end := start + 1
	if isRange {
		end, err = strconv.Atoi(endStr)
		if err != nil || end < start {
			return instruction{}, kerrors.WithMsg(err, "Invalid range "+fields[1])
		}
	}
	instr.start = start
	instr.end = end
	switch fields[2] {
	case "set":
		instr.op = opSet
	case "xor":
		instr.op = opXor
		instr.value = 0xff
	case "rand":
		instr.op = opRand
	default:
		return instruction{}, kerrors.WithMsg(nil, "Unknown operation "+fields[2])
	}
	if len(fields) == 4 {
		v, err := ParseValue(fields[3])
		if err != nil {
			return instruction{}, err
		}
		instr.value = v
	}
	return instr, nil
}

// ParseValue parses a byte value in decimal or with a 0x, 0o, or 0b prefix
func ParseValue(s string) (byte, error) {
	base := 10
	digits := s
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 10 {
			digits = s[2:]
		}
	}
	v, err := strconv.ParseUint(digits, base, 8)
	if err != nil {
		return 0, kerrors.WithKind(err, ErrScript, "Invalid value "+s)
	}
	return byte(v), nil
}
