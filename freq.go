package bitsback

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/fumin/bitsback/msbst"
)

// A FrequencyMap maps each symbol of a multiset to its multiplicity.
// Valid maps hold only positive counts, absent symbols have count zero.
type FrequencyMap[S constraints.Ordered] map[S]int64

// FromElements counts the occurrences of each element.
func FromElements[S constraints.Ordered](elements []S) FrequencyMap[S] {
	m := make(FrequencyMap[S])
	for _, e := range elements {
		m[e]++
	}
	return m
}

// FromEntries collects (symbol, count) pairs, as read from a header, into a map.
// A repeated symbol is an error.
func FromEntries[S constraints.Ordered](entries []msbst.Entry[S]) (FrequencyMap[S], error) {
	m := make(FrequencyMap[S], len(entries))
	for _, e := range entries {
		if _, ok := m[e.Symbol]; ok {
			return nil, errors.Wrapf(ErrInvalidMultiset, "symbol %v repeated", e.Symbol)
		}
		m[e.Symbol] = e.Count
	}
	return m, nil
}

// Total returns N, the number of elements in the multiset.
func (m FrequencyMap[S]) Total() int64 {
	var n int64
	for _, c := range m {
		n += c
	}
	return n
}

// Validate checks that every count is positive and that the multiset is not empty.
func (m FrequencyMap[S]) Validate() error {
	if len(m) == 0 {
		return errors.Wrap(ErrInvalidMultiset, "empty multiset")
	}
	var n int64
	for s, c := range m {
		if c <= 0 {
			return errors.Wrapf(ErrInvalidMultiset, "symbol %v has count %d", s, c)
		}
		if n > math.MaxInt64-c {
			return errors.Wrap(ErrInvalidMultiset, "total overflows")
		}
		n += c
	}
	return nil
}

// Symbols returns the symbols in increasing order.
func (m FrequencyMap[S]) Symbols() []S {
	symbols := maps.Keys(m)
	slices.Sort(symbols)
	return symbols
}

// Entries returns the (symbol, count) pairs in increasing symbol order.
func (m FrequencyMap[S]) Entries() []msbst.Entry[S] {
	entries := make([]msbst.Entry[S], 0, len(m))
	for _, s := range m.Symbols() {
		entries = append(entries, msbst.Entry[S]{Symbol: s, Count: m[s]})
	}
	return entries
}

// Equal reports whether m and o describe the same multiset.
func (m FrequencyMap[S]) Equal(o FrequencyMap[S]) bool {
	return maps.Equal(m, o)
}

// Log2Multinomial returns log2(N! / Π nᵢ!), the number of bits needed to
// single out one ordering of the multiset, which is what bits-back coding saves.
func (m FrequencyMap[S]) Log2Multinomial() float64 {
	lg := func(x int64) float64 {
		v, _ := math.Lgamma(float64(x) + 1)
		return v
	}
	bits := lg(m.Total())
	for _, c := range m {
		bits -= lg(c)
	}
	return bits / math.Ln2
}
