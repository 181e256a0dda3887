package stripe

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"xorkevin.dev/bitmend/digest"
	"xorkevin.dev/kerrors"
)

// WriteTo writes the redundancy file
func (o *Object) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: bufio.NewWriter(w)}
	fmt.Fprintf(cw, "%s,%d,%d,%d,%d\n", o.Kind, o.NumDataDisks, o.NumParityDisks, o.BlockSize, o.FileSize)
	fmt.Fprintf(cw, "%s\n", o.Algorithm.Name())
	for _, i := range o.Checksums {
		fmt.Fprintf(cw, "%s\n", i)
	}
	for _, i := range o.Parity {
		enc := hex.NewEncoder(cw)
		enc.Write(i)
		io.WriteString(cw, "\n")
	}
	if cw.err != nil {
		return cw.n, kerrors.WithMsg(cw.err, "Failed writing redundancy file")
	}
	if err := cw.w.Flush(); err != nil {
		return cw.n, kerrors.WithMsg(err, "Failed writing redundancy file")
	}
	return cw.n, nil
}

// MarshalText returns the redundancy file contents
func (o *Object) MarshalText() ([]byte, error) {
	var b bytes.Buffer
	if _, err := o.WriteTo(&b); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

type (
	// countWriter keeps the first write error so formatting can be done
	// without checking every write
	countWriter struct {
		w   *bufio.Writer
		n   int64
		err error
	}
)

func (c *countWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}

type (
	lineReader struct {
		r    *bufio.Reader
		line int
	}
)

func (r *lineReader) next() (string, error) {
	s, err := r.r.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", kerrors.WithMsg(err, "Failed reading redundancy file")
		}
		if s == "" {
			return "", kerrors.WithKind(nil, ErrFormat, fmt.Sprintf("Missing line %d", r.line+1))
		}
	}
	r.line++
	return strings.TrimRight(s, "\r\n"), nil
}

func (r *lineReader) formatErr(err error, msg string) error {
	return kerrors.WithKind(err, ErrFormat, fmt.Sprintf("%s on line %d", msg, r.line))
}

// Parse reads a redundancy file
//
// The returned object has no data buffer. The header must agree with the
// layout implied by its own file size, block size, and parity type.
func Parse(rd io.Reader) (*Object, error) {
	r := &lineReader{r: bufio.NewReader(rd)}

	header, err := r.next()
	if err != nil {
		return nil, err
	}
	flds := strings.Split(strings.TrimSpace(header), ",")
	if len(flds) != 5 {
		return nil, r.formatErr(nil, "Header must have 5 fields")
	}
	kind := Kind(strings.TrimSpace(flds[0]))
	if _, ok := kindNames[kind]; !ok {
		return nil, r.formatErr(nil, "Unknown parity type")
	}
	var nums [4]int64
	for n, i := range flds[1:] {
		v, err := strconv.ParseInt(strings.TrimSpace(i), 10, 64)
		if err != nil {
			return nil, r.formatErr(err, "Invalid header field")
		}
		if v < 0 {
			return nil, r.formatErr(nil, "Negative header field")
		}
		nums[n] = v
	}
	numDataDisks, numParityDisks, blockSize, fileSize := nums[0], nums[1], nums[2], nums[3]
	if blockSize < 1 || blockSize > int64(maxInt) || numParityDisks > int64(maxInt) {
		return nil, r.formatErr(nil, "Header field out of range")
	}
	layout, err := Partition(fileSize, Config{
		BlockSize:   int(blockSize),
		ParityDisks: int(numParityDisks),
		Kind:        kind,
	})
	if err != nil {
		return nil, r.formatErr(err, "Invalid header")
	}
	if int64(layout.NumDataDisks) != numDataDisks {
		return nil, r.formatErr(nil, "Header data disk count does not match file size")
	}
	if int64(layout.NumParityDisks) != numParityDisks {
		return nil, r.formatErr(nil, "Header parity disk count does not match layout")
	}

	algName, err := r.next()
	if err != nil {
		return nil, err
	}
	alg, err := digest.Lookup(algName)
	if err != nil {
		return nil, r.formatErr(err, "Invalid checksum algorithm")
	}

	obj := &Object{
		Layout:    *layout,
		Algorithm: alg,
		// header values are untrusted until every line is read
		Checksums: make([]string, 0, min(layout.NumDataDisks, 1<<16)),
		Parity:    make([][]byte, 0, min(layout.NumParityDisks, 1<<10)),
	}
	for range layout.NumDataDisks {
		s, err := r.next()
		if err != nil {
			return nil, err
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if _, err := alg.Decode(s); err != nil {
			return nil, r.formatErr(err, "Invalid checksum")
		}
		obj.Checksums = append(obj.Checksums, s)
	}
	for range layout.NumParityDisks {
		s, err := r.next()
		if err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		if len(s) != 2*layout.BlockSize {
			return nil, r.formatErr(nil, "Parity block has wrong length")
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, r.formatErr(err, "Parity block is not hex")
		}
		obj.Parity = append(obj.Parity, b)
	}
	for {
		s, err := r.next()
		if err != nil {
			if errors.Is(err, ErrFormat) {
				break
			}
			return nil, err
		}
		if strings.TrimSpace(s) != "" {
			return nil, r.formatErr(nil, "Unexpected trailing line")
		}
	}
	return obj, nil
}
