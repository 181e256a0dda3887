package parity

import (
	"testing"

	"github.com/stretchr/testify/require"
	"xorkevin.dev/bitmend/stripe"
)

func fillBlocks(numBlocks, blockSize int) [][]byte {
	blocks := make([][]byte, numBlocks)
	for d := range blocks {
		b := make([]byte, blockSize)
		for i := range b {
			b[i] = byte(d*31 + i*7 + 3)
		}
		blocks[d] = b
	}
	return blocks
}

func cloneBlocks(blocks [][]byte) [][]byte {
	res := make([][]byte, len(blocks))
	for n, i := range blocks {
		res[n] = append([]byte(nil), i...)
	}
	return res
}

func allocParity(count, blockSize int) [][]byte {
	res := make([][]byte, count)
	for i := range res {
		res[i] = make([]byte, blockSize)
	}
	return res
}

func corrupt(blocks [][]byte, failed []int) {
	for n, d := range failed {
		mask := byte(0xff >> (n % 8))
		for i := range blocks[d] {
			blocks[d][i] ^= mask
		}
	}
}

func TestBitSet(t *testing.T) {
	t.Parallel()

	assert := require.New(t)

	s := newBitSet(130)
	s.Add(129)
	s.Add(0)
	s.Add(64)
	s.Add(129)
	assert.Equal(3, s.Size())
	assert.True(s.Contains(64))
	assert.False(s.Contains(65))
	assert.Equal([]int{0, 64, 129}, s.Slice())
	s.Rm(64)
	s.Rm(64)
	assert.Equal(2, s.Size())
	assert.False(s.Contains(64))
	assert.Equal([]int{0, 129}, s.Slice())
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		Kind   stripe.Kind
		Parity int
	}{
		{Kind: stripe.KindInterleaved, Parity: 2},
		{Kind: stripe.KindReedSolomon, Parity: 2},
		{Kind: stripe.KindHypercube},
		{Kind: stripe.KindMatrix, Parity: 2},
	} {
		tc := tc
		t.Run(tc.Kind.String(), func(t *testing.T) {
			t.Parallel()

			assert := require.New(t)

			layout, err := stripe.Partition(1000, stripe.Config{
				BlockSize:   64,
				ParityDisks: tc.Parity,
				Kind:        tc.Kind,
			})
			assert.NoError(err)
			engine, err := New(*layout)
			assert.NoError(err)

			blocks := fillBlocks(layout.NumBlocks, layout.BlockSize)
			orig := cloneBlocks(blocks)
			parity := allocParity(layout.NumParityDisks, layout.BlockSize)
			assert.NoError(engine.ComputeParity(blocks, parity))

			// every single block is correctable for every engine
			for b := range blocks {
				corrupt(blocks, []int{b})
				var failed []int
				if tc.Kind == stripe.KindHypercube {
					failed = FailedBlocks(*layout, []int{0})
				} else {
					failed = FailedBlocks(*layout, []int{b})
				}
				assert.NoError(engine.Repair(blocks, failed, parity))
				assert.Equal(orig, blocks)
			}
		})
	}

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		_, err := New(stripe.Layout{Kind: "q", NumBlocks: 1, NumDataDisks: 1, NumParityDisks: 1, BlockSize: 1})
		assert.ErrorIs(err, ErrConfig)
	})

	t.Run("reed solomon codeword too long", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		_, err := NewReedSolomon(254, 2)
		assert.ErrorIs(err, ErrConfig)
		_, err = NewReedSolomon(253, 2)
		assert.NoError(err)
	})
}

func TestFailedBlocks(t *testing.T) {
	t.Parallel()

	assert := require.New(t)

	layout, err := stripe.Partition(300, stripe.Config{BlockSize: 100, Kind: stripe.KindHypercube})
	assert.NoError(err)
	assert.Equal([]int{0, 1, 2}, FailedBlocks(*layout, []int{0}))
	assert.Nil(FailedBlocks(*layout, nil))

	layout, err = stripe.Partition(300, stripe.Config{BlockSize: 100, ParityDisks: 1, Kind: stripe.KindInterleaved})
	assert.NoError(err)
	assert.Equal([]int{2}, FailedBlocks(*layout, []int{2}))
}

func TestInterleaved(t *testing.T) {
	t.Parallel()

	t.Run("parity is group xor", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		e, err := NewInterleaved(2)
		assert.NoError(err)
		blocks := [][]byte{{0x01}, {0x02}, {0x04}, {0x08}, {0x10}}
		parity := allocParity(2, 1)
		assert.NoError(e.ComputeParity(blocks, parity))
		assert.Equal([][]byte{{0x15}, {0x0a}}, parity)
	})

	for _, tc := range []struct {
		Test    string
		Failed  []int
		Damaged []int
		Err     error
	}{
		{Test: "one per group", Failed: []int{0, 4, 2}, Damaged: []int{0, 4, 2}},
		{Test: "suspect intact", Failed: []int{0, 4, 2}, Damaged: []int{0, 4}},
		{Test: "duplicate index", Failed: []int{1, 1}, Damaged: []int{1}},
		{Test: "co-group failures", Failed: []int{0, 3}, Err: ErrUncorrectable},
		{Test: "out of range", Failed: []int{6}, Err: ErrShape},
	} {
		tc := tc
		t.Run(tc.Test, func(t *testing.T) {
			t.Parallel()

			assert := require.New(t)

			e, err := NewInterleaved(3)
			assert.NoError(err)
			blocks := fillBlocks(6, 16)
			orig := cloneBlocks(blocks)
			parity := allocParity(3, 16)
			assert.NoError(e.ComputeParity(blocks, parity))
			if tc.Err != nil {
				corrupt(blocks, []int{0})
				damaged := cloneBlocks(blocks)
				assert.ErrorIs(e.Repair(blocks, tc.Failed, parity), tc.Err)
				assert.Equal(damaged, blocks)
				return
			}
			corrupt(blocks, tc.Damaged)
			assert.NotEqual(orig, blocks)
			assert.NoError(e.Repair(blocks, tc.Failed, parity))
			assert.Equal(orig, blocks)
		})
	}

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		_, err := NewInterleaved(0)
		assert.ErrorIs(err, ErrConfig)
		e, err := NewInterleaved(2)
		assert.NoError(err)
		assert.ErrorIs(e.ComputeParity(fillBlocks(2, 4), allocParity(1, 4)), ErrShape)
		assert.ErrorIs(e.ComputeParity(fillBlocks(2, 4), allocParity(2, 3)), ErrShape)
	})
}

func TestErasure(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		Test   string
		New    func(d, p int) (*Erasure, error)
		Failed []int
		Err    error
	}{
		{Test: "reed solomon at capacity", New: NewReedSolomon, Failed: []int{1, 4, 6}},
		{Test: "reed solomon none failed", New: NewReedSolomon},
		{Test: "reed solomon over capacity", New: NewReedSolomon, Failed: []int{0, 1, 2, 3}, Err: ErrUncorrectable},
		{Test: "matrix at capacity", New: NewMatrix, Failed: []int{0, 2, 7}},
		{Test: "matrix over capacity", New: NewMatrix, Failed: []int{0, 1, 2, 3}, Err: ErrUncorrectable},
	} {
		tc := tc
		t.Run(tc.Test, func(t *testing.T) {
			t.Parallel()

			assert := require.New(t)

			e, err := tc.New(8, 3)
			assert.NoError(err)
			blocks := fillBlocks(8, 32)
			orig := cloneBlocks(blocks)
			parity := allocParity(3, 32)
			assert.NoError(e.ComputeParity(blocks, parity))
			origParity := cloneBlocks(parity)

			corrupt(blocks, tc.Failed)
			err = e.Repair(blocks, tc.Failed, parity)
			assert.Equal(origParity, parity)
			if tc.Err != nil {
				assert.ErrorIs(err, tc.Err)
				return
			}
			assert.NoError(err)
			assert.Equal(orig, blocks)
		})
	}

	t.Run("reed solomon fixture", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		e, err := NewReedSolomon(8, 4)
		assert.NoError(err)
		blocks := make([][]byte, 8)
		for n, i := range []byte("ABCDEFGH") {
			blocks[n] = []byte{i}
		}
		parity := allocParity(4, 1)
		assert.NoError(e.ComputeParity(blocks, parity))
		assert.Equal([][]byte{{0xb6}, {0x4d}, {0xcc}, {0x3f}}, parity)
	})
}

func TestHypercube(t *testing.T) {
	t.Parallel()

	t.Run("parity by coordinate", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		e, err := NewHypercube(4)
		assert.NoError(err)
		blocks := [][]byte{{0x01}, {0x02}, {0x04}, {0x08}}
		parity := allocParity(4, 1)
		assert.NoError(e.ComputeParity(blocks, parity))
		// axis 0: even blocks, odd blocks; axis 1: low half, high half
		assert.Equal([][]byte{{0x05}, {0x0a}, {0x03}, {0x0c}}, parity)
	})

	for _, tc := range []struct {
		Test      string
		NumBlocks int
		Damaged   []int
		Err       error
	}{
		{Test: "single block file", NumBlocks: 1, Damaged: []int{0}},
		{Test: "one block", NumBlocks: 8, Damaged: []int{5}},
		{Test: "partial cube", NumBlocks: 5, Damaged: []int{4}},
		{Test: "blocks differing on one axis", NumBlocks: 8, Damaged: []int{0, 1}},
		{Test: "blocks on a high axis", NumBlocks: 16, Damaged: []int{3, 11}},
		{Test: "blocks differing on every axis", NumBlocks: 8, Damaged: []int{0, 7}, Err: ErrUncorrectable},
		{Test: "square of blocks", NumBlocks: 8, Damaged: []int{0, 1, 2, 3}, Err: ErrUncorrectable},
		{Test: "damage missing from parity", NumBlocks: 8, Err: ErrUncorrectable},
	} {
		tc := tc
		t.Run(tc.Test, func(t *testing.T) {
			t.Parallel()

			assert := require.New(t)

			e, err := NewHypercube(tc.NumBlocks)
			assert.NoError(err)
			blocks := fillBlocks(tc.NumBlocks, 24)
			orig := cloneBlocks(blocks)
			parity := allocParity(2*stripe.HypercubeAxes(tc.NumBlocks), 24)
			assert.NoError(e.ComputeParity(blocks, parity))

			corrupt(blocks, tc.Damaged)
			all := make([]int, tc.NumBlocks)
			for i := range all {
				all[i] = i
			}
			err = e.Repair(blocks, all, parity)
			if tc.Err != nil {
				assert.ErrorIs(err, tc.Err)
				return
			}
			assert.NoError(err)
			assert.Equal(orig, blocks)
		})
	}

	t.Run("no failed blocks", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		e, err := NewHypercube(4)
		assert.NoError(err)
		blocks := fillBlocks(4, 2)
		assert.NoError(e.Repair(blocks, nil, allocParity(4, 2)))
	})

	t.Run("wrong block count", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		e, err := NewHypercube(4)
		assert.NoError(err)
		assert.ErrorIs(e.ComputeParity(fillBlocks(3, 2), allocParity(4, 2)), ErrShape)
		_, err = NewHypercube(0)
		assert.ErrorIs(err, ErrConfig)
	})
}
