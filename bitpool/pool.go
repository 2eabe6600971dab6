// Package bitpool implements a first-in first-out queue of bits.
//
// A Pool is used both as the auxiliary bit pool of bits-back coding,
// where bits are taken from the front and recovered bits appended to the back,
// and as the buffer an arithmetic encoder writes its output to.
package bitpool

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
)

// ErrShortPool is returned when more bits are requested than a Pool holds.
var ErrShortPool = fmt.Errorf("not enough bits in pool")

// A Pool is a queue of bits. The zero value is an empty pool ready to use.
type Pool struct {
	bits *bitset.BitSet
	head uint // index of the first unconsumed bit
	tail uint // one past the last appended bit
}

// A Mark records the read position of a Pool.
type Mark uint

// New returns an empty pool.
func New() *Pool {
	return &Pool{bits: bitset.New(0)}
}

// FromBytes returns a pool holding the first nbits bits of b, most significant bit of b[0] first.
func FromBytes(b []byte, nbits uint) (*Pool, error) {
	if nbits > uint(len(b))*8 {
		return nil, errors.Wrapf(ErrShortPool, "%d bits from %d bytes", nbits, len(b))
	}
	p := &Pool{bits: bitset.New(nbits)}
	for i := uint(0); i < nbits; i++ {
		if b[i/8]&(0x80>>(i%8)) != 0 {
			p.bits.Set(i)
		}
	}
	p.tail = nbits
	return p, nil
}

// FromBits returns a pool holding the given bits, each of which must be 0 or 1.
func FromBits(bits ...uint) *Pool {
	p := New()
	for _, b := range bits {
		p.WriteBit(b)
	}
	return p
}

func (p *Pool) lazyInit() {
	if p.bits == nil {
		p.bits = bitset.New(0)
	}
}

// Len returns the number of unconsumed bits.
func (p *Pool) Len() uint {
	return p.tail - p.head
}

// WriteBit appends a single bit. Any non-zero bit is taken as 1.
func (p *Pool) WriteBit(bit uint) {
	p.lazyInit()
	p.bits.SetTo(p.tail, bit != 0)
	p.tail++
}

// Append appends the k least significant bits of v, most significant first.
func (p *Pool) Append(v uint64, k uint) {
	for i := k; i > 0; i-- {
		p.WriteBit(uint(v>>(i-1)) & 1)
	}
}

// AppendPool appends the unconsumed bits of q without consuming them.
func (p *Pool) AppendPool(q *Pool) {
	for i := q.head; i < q.tail; i++ {
		var b uint
		if q.bits.Test(i) {
			b = 1
		}
		p.WriteBit(b)
	}
}

// Take consumes k bits from the front of the pool and returns them as an integer,
// the first bit taken being the most significant. k must not exceed 64.
// If fewer than k bits are available, nothing is consumed.
func (p *Pool) Take(k uint) (uint64, error) {
	if k > 64 {
		return 0, errors.Errorf("cannot take %d bits at once", k)
	}
	if p.Len() < k {
		return 0, errors.Wrapf(ErrShortPool, "want %d, have %d", k, p.Len())
	}
	var v uint64
	for i := uint(0); i < k; i++ {
		v <<= 1
		if p.bits.Test(p.head) {
			v |= 1
		}
		p.head++
	}
	return v, nil
}

// ReadBit consumes a single bit.
func (p *Pool) ReadBit() (uint, bool) {
	if p.Len() == 0 {
		return 0, false
	}
	v, _ := p.Take(1)
	return uint(v), true
}

// Mark returns the current read position, to be handed to Reset.
func (p *Pool) Mark() Mark {
	return Mark(p.head)
}

// Reset puts back every bit consumed since m was obtained.
func (p *Pool) Reset(m Mark) {
	if uint(m) <= p.tail {
		p.head = uint(m)
	}
}

// Bit returns the i-th unconsumed bit.
func (p *Pool) Bit(i uint) uint {
	if i >= p.Len() || !p.bits.Test(p.head+i) {
		return 0
	}
	return 1
}

// Bytes packs the unconsumed bits into bytes, most significant bit first.
// The last byte is zero padded.
func (p *Pool) Bytes() []byte {
	n := p.Len()
	b := make([]byte, (n+7)/8)
	for i := uint(0); i < n; i++ {
		if p.bits.Test(p.head + i) {
			b[i/8] |= 0x80 >> (i % 8)
		}
	}
	return b
}

// Clone returns an independent copy of the unconsumed bits.
func (p *Pool) Clone() *Pool {
	q := New()
	q.AppendPool(p)
	return q
}

// Equal reports whether p and q hold the same unconsumed bits.
func (p *Pool) Equal(q *Pool) bool {
	if p.Len() != q.Len() {
		return false
	}
	for i := uint(0); i < p.Len(); i++ {
		if p.Bit(i) != q.Bit(i) {
			return false
		}
	}
	return true
}

// String renders the unconsumed bits as a string of 0s and 1s.
func (p *Pool) String() string {
	s := make([]byte, p.Len())
	for i := range s {
		s[i] = '0' + byte(p.Bit(uint(i)))
	}
	return string(s)
}

// Reader returns a reader over the unconsumed bits that leaves p untouched.
func (p *Pool) Reader() *Reader {
	return &Reader{p: p, pos: p.head}
}

// A Reader reads the bits of a Pool without consuming them.
type Reader struct {
	p   *Pool
	pos uint
}

// ReadBit returns the next bit, or false at the end of the pool.
func (r *Reader) ReadBit() (uint, bool) {
	if r.pos >= r.p.tail {
		return 0, false
	}
	var b uint
	if r.p.bits.Test(r.pos) {
		b = 1
	}
	r.pos++
	return b, true
}

// Consumed returns the number of bits read so far.
func (r *Reader) Consumed() uint {
	return r.pos - r.p.head
}
