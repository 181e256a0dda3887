package reedsolomon

import (
	"xorkevin.dev/kerrors"
)

// MaxCodewordLength is the maximum total shard count of a [Codec]
const MaxCodewordLength = gf8MulGroupOrder

type (
	// Codec is a systematic polynomial Reed-Solomon code applied per byte
	// offset across shards
	//
	// Codewords are polynomials with the first data symbol as the highest
	// degree coefficient. The generator polynomial has roots a^0 through
	// a^(parityShards-1) in [GF256].
	Codec struct {
		f            *Field
		dataShards   int
		parityShards int
		gen          []byte
	}
)

func NewCodec(dataShards, parityShards int) (*Codec, error) {
	if dataShards < 1 {
		return nil, kerrors.WithKind(nil, ErrShape, "Must have at least 1 data shard")
	}
	if parityShards < 1 {
		return nil, kerrors.WithKind(nil, ErrShape, "Must have at least 1 parity shard")
	}
	if dataShards+parityShards > MaxCodewordLength {
		return nil, kerrors.WithKind(nil, ErrShape, "Codeword length may not exceed 255")
	}
	f := GF256
	// gen = prod (x - a^i) for i in [0, parityShards)
	gen := []byte{1}
	for i := 0; i < parityShards; i++ {
		next := make([]byte, len(gen)+1)
		r := f.ExpInt(i)
		for n, c := range gen {
			next[n] ^= c
			next[n+1] ^= f.Mul(c, r)
		}
		gen = next
	}
	return &Codec{
		f:            f,
		dataShards:   dataShards,
		parityShards: parityShards,
		gen:          gen,
	}, nil
}

// EncodeSymbols computes the parity symbols of a single message
func (c *Codec) EncodeSymbols(msg, parity []byte) error {
	if len(msg) != c.dataShards {
		return kerrors.WithKind(nil, ErrShape, "Invalid message length")
	}
	if len(parity) != c.parityShards {
		return kerrors.WithKind(nil, ErrShape, "Invalid parity length")
	}
	clear(parity)
	last := len(parity) - 1
	for _, m := range msg {
		fb := m ^ parity[0]
		for j := 0; j < last; j++ {
			parity[j] = parity[j+1] ^ c.f.Mul(fb, c.gen[j+1])
		}
		parity[last] = c.f.Mul(fb, c.gen[last+1])
	}
	return nil
}

func (c *Codec) Encode(data, parity [][]byte) error {
	if len(data) != c.dataShards {
		return kerrors.WithKind(nil, ErrShape, "Invalid number of data shards")
	}
	if len(parity) != c.parityShards {
		return kerrors.WithKind(nil, ErrShape, "Invalid number of parity shards")
	}
	blockSize := len(data[0])
	for _, i := range data {
		if len(i) != blockSize {
			return kerrors.WithKind(nil, ErrShape, "Varying data block size")
		}
	}
	for _, i := range parity {
		if len(i) != blockSize {
			return kerrors.WithKind(nil, ErrShape, "Varying parity block size")
		}
	}
	msg := make([]byte, c.dataShards)
	rem := make([]byte, c.parityShards)
	for off := 0; off < blockSize; off++ {
		for n, i := range data {
			msg[n] = i[off]
		}
		if err := c.EncodeSymbols(msg, rem); err != nil {
			return err
		}
		for n, i := range parity {
			i[off] = rem[n]
		}
	}
	return nil
}

type (
	// erasureDecoder solves for the symbols at a fixed set of erased codeword
	// positions
	erasureDecoder struct {
		f         *Field
		n         int
		erasures  []int
		roots     []byte
		solve     [][]byte
		syndromes []byte
	}
)

func (c *Codec) newErasureDecoder(erasures []int) (*erasureDecoder, error) {
	n := c.dataShards + c.parityShards
	e := len(erasures)
	if e > c.parityShards {
		return nil, kerrors.WithKind(nil, ErrTooFewShards, "Too many missing shards to reconstruct data")
	}
	// syndrome j is sum over erased positions p of v_p * X_p^j where
	// X_p = a^(n-1-p)
	m := make([][]byte, e)
	for j := range m {
		m[j] = make([]byte, e)
		for k, p := range erasures {
			m[j][k] = c.f.Pow(c.f.ExpInt(n-1-p), j)
		}
	}
	solve, ok := c.f.invertMatrix(m)
	if !ok {
		return nil, kerrors.WithKind(nil, ErrTooFewShards, "Singular erasure system")
	}
	roots := make([]byte, e)
	for j := range roots {
		roots[j] = c.f.ExpInt(j)
	}
	return &erasureDecoder{
		f:         c.f,
		n:         n,
		erasures:  erasures,
		roots:     roots,
		solve:     solve,
		syndromes: make([]byte, e),
	}, nil
}

// decode fills the erased positions of codeword which must hold zero there
func (d *erasureDecoder) decode(codeword []byte) {
	for j, r := range d.roots {
		// horner evaluation at a^j
		var acc byte
		for _, s := range codeword {
			acc = d.f.Mul(acc, r) ^ s
		}
		d.syndromes[j] = acc
	}
	for k, p := range d.erasures {
		var v byte
		for j, s := range d.syndromes {
			v ^= d.f.Mul(d.solve[k][j], s)
		}
		codeword[p] = v
	}
}

func (c *Codec) ReconstructData(data, parity [][]byte) error {
	if len(data) != c.dataShards {
		return kerrors.WithKind(nil, ErrShape, "Invalid number of data shards")
	}
	if len(parity) != c.parityShards {
		return kerrors.WithKind(nil, ErrShape, "Invalid number of parity shards")
	}
	blockSize, err := shardSize(data, parity)
	if err != nil {
		return err
	}
	var erasures []int
	for n, i := range data {
		if len(i) == 0 {
			erasures = append(erasures, n)
		} else if len(i) != blockSize {
			return kerrors.WithKind(nil, ErrShape, "Varying data block size")
		}
	}
	hasMissingData := len(erasures) > 0
	for n, i := range parity {
		if len(i) == 0 {
			erasures = append(erasures, c.dataShards+n)
		} else if len(i) != blockSize {
			return kerrors.WithKind(nil, ErrShape, "Varying parity block size")
		}
	}
	if !hasMissingData {
		return nil
	}
	dec, err := c.newErasureDecoder(erasures)
	if err != nil {
		return err
	}
	for n, i := range data {
		if len(i) == 0 {
			if cap(i) >= blockSize {
				data[n] = i[:blockSize]
			} else {
				data[n] = make([]byte, blockSize)
			}
		}
	}
	codeword := make([]byte, dec.n)
	for off := 0; off < blockSize; off++ {
		clear(codeword)
		for n, i := range data {
			codeword[n] = i[off]
		}
		for n, i := range parity {
			if len(i) != 0 {
				codeword[c.dataShards+n] = i[off]
			}
		}
		for _, p := range erasures {
			codeword[p] = 0
		}
		dec.decode(codeword)
		for _, p := range erasures {
			if p < c.dataShards {
				data[p][off] = codeword[p]
			}
		}
	}
	return nil
}
