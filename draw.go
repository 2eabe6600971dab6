package bitsback

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"

	"github.com/fumin/bitsback/bitpool"
	"github.com/fumin/bitsback/msbst"
)

// The draw walks a binary code whose leaves are the live symbols of the tree.
// A node of the code is a range [a, b) of cumulative positions made of whole symbol intervals.
// It is split at a symbol boundary near its middle until a single symbol remains,
// so the codeword of a symbol depends on the tree alone and decoding can rebuild it.
// Every bit string leads to some leaf, thus any auxiliary bits form a valid draw.

// split returns the boundary at which [a, b) is divided, or false if [a, b) holds a single symbol.
//
// With [lo, hi) the interval of the symbol covering the middle of [a, b), the boundary is lo,
// unless that symbol starts the range, in which case it is hi.
// Within any two splits a symbol either becomes a leaf or its range is halved,
// which bounds codewords by 2⌈log2 total⌉ bits.
func split[S constraints.Ordered](tree *msbst.Tree[S], a, b int64) (int64, bool) {
	_, _, count := mustLocate(tree, a)
	if a+count >= b {
		return 0, false
	}
	_, lo, count := mustLocate(tree, a+(b-a)/2)
	if lo > a {
		return lo, true
	}
	return lo + count, true
}

func mustLocate[S constraints.Ordered](tree *msbst.Tree[S], p int64) (S, int64, int64) {
	symbol, low, count, err := tree.Locate(p)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return symbol, low, count
}

// drawSymbol consumes bits from the front of aux to pick a live symbol of tree.
// A symbol's chance of being picked is 2^-len of its codeword, roughly its count over the total.
func drawSymbol[S constraints.Ordered](tree *msbst.Tree[S], aux *bitpool.Pool) (S, error) {
	a, b := int64(0), tree.Total()
	for {
		s, ok := split(tree, a, b)
		if !ok {
			symbol, _, _ := mustLocate(tree, a)
			return symbol, nil
		}
		bit, err := aux.Take(1)
		if err != nil {
			var zero S
			return zero, err
		}
		if bit == 0 {
			b = s
		} else {
			a = s
		}
	}
}

// putSymbol appends the codeword drawSymbol reads for the symbol whose interval starts at low.
func putSymbol[S constraints.Ordered](dst *bitpool.Pool, tree *msbst.Tree[S], low int64) error {
	a, b := int64(0), tree.Total()
	for {
		s, ok := split(tree, a, b)
		if !ok {
			break
		}
		if low < s {
			dst.WriteBit(0)
			b = s
		} else {
			dst.WriteBit(1)
			a = s
		}
	}
	if a != low {
		return errors.Errorf("no symbol starts at %d", low)
	}
	return nil
}
