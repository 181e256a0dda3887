package parity

import (
	"math/bits"
)

type (
	// bitSet is a set of small non-negative ints
	bitSet struct {
		bits []uint64
		size int
	}
)

func newBitSet(size int) *bitSet {
	return &bitSet{
		bits: make([]uint64, (size+63)/64),
		size: 0,
	}
}

func (s *bitSet) Size() int {
	return s.size
}

func (s *bitSet) Contains(i int) bool {
	a := i / 64
	b := i % 64
	mask := uint64(1) << b
	return s.bits[a]&mask != 0
}

func (s *bitSet) Add(i int) {
	a := i / 64
	b := i % 64
	mask := uint64(1) << b
	if s.bits[a]&mask == 0 {
		s.bits[a] |= mask
		s.size++
	}
}

func (s *bitSet) Rm(i int) {
	a := i / 64
	b := i % 64
	mask := uint64(1) << b
	if s.bits[a]&mask != 0 {
		s.bits[a] &= ^mask
		s.size--
	}
}

// Slice returns the members in increasing order
func (s *bitSet) Slice() []int {
	res := make([]int, 0, s.size)
	for n, i := range s.bits {
		for i != 0 {
			res = append(res, n*64+bits.TrailingZeros64(i))
			i &= i - 1
		}
	}
	return res
}
