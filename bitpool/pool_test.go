package bitpool

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestTakeAppend(t *testing.T) {
	p := New()
	p.Append(0b1011, 4)
	p.Append(0, 3)
	p.WriteBit(1)
	if p.String() != "10110001" {
		t.Fatalf("%s", p)
	}

	v, err := p.Take(3)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if v != 0b101 {
		t.Errorf("%b", v)
	}
	v, err = p.Take(5)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if v != 0b10001 {
		t.Errorf("%b", v)
	}
	if p.Len() != 0 {
		t.Errorf("%d", p.Len())
	}
}

func TestTakeShort(t *testing.T) {
	p := FromBits(1, 0, 1)
	_, err := p.Take(4)
	if !errors.Is(err, ErrShortPool) {
		t.Fatalf("%+v", err)
	}
	if p.Len() != 3 {
		t.Errorf("short take consumed bits: %d", p.Len())
	}
	if v, err := p.Take(0); err != nil || v != 0 {
		t.Errorf("%d %+v", v, err)
	}
}

func TestZeroValue(t *testing.T) {
	var p Pool
	if p.Len() != 0 || p.String() != "" {
		t.Fatalf("%d %q", p.Len(), p.String())
	}
	if _, ok := p.ReadBit(); ok {
		t.Errorf("read from empty pool")
	}
	p.WriteBit(1)
	if b, ok := p.ReadBit(); !ok || b != 1 {
		t.Errorf("%d %v", b, ok)
	}
}

func TestMarkReset(t *testing.T) {
	p := FromBits(0, 1, 1, 0, 1)
	m := p.Mark()
	if _, err := p.Take(4); err != nil {
		t.Fatalf("%+v", err)
	}
	p.Reset(m)
	if p.String() != "01101" {
		t.Errorf("%s", p)
	}
}

func TestBytes(t *testing.T) {
	in := []byte{0xA5, 0xF0}
	p, err := FromBytes(in, 12)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if p.String() != "101001011111" {
		t.Fatalf("%s", p)
	}
	if diff := cmp.Diff([]byte{0xA5, 0xF0}, p.Bytes()); diff != "" {
		t.Errorf("%s", diff)
	}

	if _, err := p.Take(4); err != nil {
		t.Fatalf("%+v", err)
	}
	if diff := cmp.Diff([]byte{0x5F}, p.Bytes()); diff != "" {
		t.Errorf("%s", diff)
	}

	if _, err := FromBytes(in, 17); !errors.Is(err, ErrShortPool) {
		t.Errorf("%+v", err)
	}
}

func TestReader(t *testing.T) {
	p := FromBits(1, 1, 0)
	if _, err := p.Take(1); err != nil {
		t.Fatalf("%+v", err)
	}
	r := p.Reader()
	got := []uint{}
	for {
		b, ok := r.ReadBit()
		if !ok {
			break
		}
		got = append(got, b)
	}
	if diff := cmp.Diff([]uint{1, 0}, got); diff != "" {
		t.Errorf("%s", diff)
	}
	if r.Consumed() != 2 {
		t.Errorf("%d", r.Consumed())
	}
	if p.Len() != 2 {
		t.Errorf("reader consumed pool bits: %d", p.Len())
	}
}

func TestCloneEqual(t *testing.T) {
	p := FromBits(1, 0, 0, 1)
	q := p.Clone()
	if !p.Equal(q) {
		t.Fatalf("%s != %s", p, q)
	}
	q.WriteBit(0)
	if p.Equal(q) {
		t.Errorf("%s == %s", p, q)
	}
	if p.Len() != 4 {
		t.Errorf("clone shares storage")
	}
}

func TestRandom(t *testing.T) {
	a, err := NewRandom([]byte("seed"), 300)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	b, err := NewRandom([]byte("seed"), 300)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	c, err := NewRandom([]byte("other"), 300)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if a.Len() != 300 {
		t.Fatalf("%d", a.Len())
	}
	if !a.Equal(b) {
		t.Errorf("same seed gave different bits")
	}
	if a.Equal(c) {
		t.Errorf("different seeds gave the same bits")
	}

	ones := 0
	for i := uint(0); i < a.Len(); i++ {
		ones += int(a.Bit(i))
	}
	if ones < 100 || ones > 200 {
		t.Errorf("%d ones in 300 bits", ones)
	}
}
