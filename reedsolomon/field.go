package reedsolomon

const (
	gf8Order         = 1 << 8
	gf8MulGroupOrder = gf8Order - 1
)

type (
	// Field is GF(2^8) with log and exp tables for a primitive element
	Field struct {
		log [gf8Order]byte // log[0] is unused
		exp [gf8MulGroupOrder * 2]byte
	}
)

// NewField creates GF(2^8) from the low 8 bits of a primitive polynomial and
// a generator element
func NewField(poly, a int) *Field {
	if poly >= gf8Order {
		panic("Invalid generator poly")
	}
	poly |= gf8Order
	f := &Field{}
	x := 1
	// a^255 is 1
	for i := 0; i < gf8MulGroupOrder; i++ {
		f.exp[i] = byte(x)
		f.exp[i+gf8MulGroupOrder] = byte(x)
		f.log[x] = byte(i)
		x = mul(x, a, poly)
	}
	f.log[0] = gf8MulGroupOrder
	return f
}

// GF256 is the field with primitive polynomial x^8+x^4+x^3+x^2+1 (0x11d) and
// generator 2
var GF256 = NewField(0x1d, 2)

func (f *Field) Exp(x byte) byte {
	return f.exp[x]
}

func (f *Field) Log(x byte) byte {
	return f.log[x]
}

// Pow returns x^n
func (f *Field) Pow(x byte, n int) byte {
	if n == 0 {
		return 1
	}
	if x == 0 {
		return 0
	}
	e := (int(f.log[x]) * n) % gf8MulGroupOrder
	if e < 0 {
		e += gf8MulGroupOrder
	}
	return f.exp[e]
}

// ExpInt returns a^n for the field generator a
func (f *Field) ExpInt(n int) byte {
	n %= gf8MulGroupOrder
	if n < 0 {
		n += gf8MulGroupOrder
	}
	return f.exp[n]
}

func (f *Field) Add(x, y byte) byte {
	return x ^ y
}

func (f *Field) Mul(x, y byte) byte {
	if x == 0 || y == 0 {
		return 0
	}
	return f.exp[int(f.log[x])+int(f.log[y])]
}

// Inv returns the multiplicative inverse of x, and 0 for 0 which has none
func (f *Field) Inv(x byte) byte {
	if x == 0 {
		return 0
	}
	return f.exp[gf8MulGroupOrder-int(f.log[x])]
}

func (f *Field) Div(x, y byte) byte {
	return f.Mul(x, f.Inv(y))
}

func mul(x, y, poly int) int {
	z := 0
	for y > 0 {
		if y&1 != 0 {
			z ^= x
		}
		y >>= 1
		x <<= 1
		if x&gf8Order != 0 {
			x ^= poly
		}
	}
	return z
}

// invertMatrix inverts a square matrix in place with Gauss-Jordan elimination
func (f *Field) invertMatrix(m [][]byte) ([][]byte, bool) {
	n := len(m)
	inv := make([][]byte, n)
	for i := range inv {
		inv[i] = make([]byte, n)
		inv[i][i] = 1
	}
	for col := 0; col < n; col++ {
		pivot := -1
		for row := col; row < n; row++ {
			if m[row][col] != 0 {
				pivot = row
				break
			}
		}
		if pivot < 0 {
			return nil, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		inv[col], inv[pivot] = inv[pivot], inv[col]
		if s := m[col][col]; s != 1 {
			k := f.Inv(s)
			for j := 0; j < n; j++ {
				m[col][j] = f.Mul(m[col][j], k)
				inv[col][j] = f.Mul(inv[col][j], k)
			}
		}
		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			k := m[row][col]
			if k == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				m[row][j] ^= f.Mul(k, m[col][j])
				inv[row][j] ^= f.Mul(k, inv[col][j])
			}
		}
	}
	return inv, true
}
