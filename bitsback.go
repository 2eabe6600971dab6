// Package bitsback compresses multisets with bits-back coding.
//
// A multiset of N elements with multiplicities n₁..n_D is encoded in close to
// log2(N! / Π nᵢ!) bits, which is what is left after subtracting from the cost of
// a sequence the bits that would only tell its orderings apart.
//
// Encode walks the multiset in an order chosen by bits taken from an auxiliary pool:
// at each step the next element is drawn through a prefix code over the live symbols
// whose codeword lengths follow their remaining multiplicities, and then arithmetic
// coded under the exact distribution count/total.
// Decode replays the walk and, since a codeword depends only on the symbol drawn,
// rebuilds exactly the auxiliary bits Encode consumed. Whatever payload the caller placed in the pool
// therefore rides along for free.
//
// The remaining multiplicities live in an order-statistics tree (see package msbst),
// so both directions take O(N log D) time and O(D) memory.
//
// Below is an example round trip:
//
//	freq := bitsback.FromElements([]string{"a", "b", "a", "c"})
//	aux, _ := bitsback.AuxFor(freq, payload, seed)
//	stream, err := bitsback.Encode(freq, aux)
//	elements, recovered, err := bitsback.Decode(stream, freq)
package bitsback

import (
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"

	"github.com/fumin/bitsback/ac"
	"github.com/fumin/bitsback/ac/witten"
	"github.com/fumin/bitsback/bitpool"
	"github.com/fumin/bitsback/msbst"
)

var (
	// ErrInvalidMultiset is returned for empty multisets, non-positive counts,
	// and multisets too large for the entropy coder.
	ErrInvalidMultiset = fmt.Errorf("invalid multiset")

	// ErrAuxExhausted is returned by Encode when the auxiliary pool runs out of bits.
	ErrAuxExhausted = fmt.Errorf("auxiliary bits exhausted")

	// ErrCorruptStream is returned by Decode when the stream does not match the frequency map.
	ErrCorruptStream = fmt.Errorf("corrupt stream")
)

// A Coder encodes and decodes multisets of symbols of type S.
// The zero value uses the Witten-Neal-Cleary coder at full precision and does not log.
// A Coder holds no state between calls and may be used concurrently.
type Coder[S constraints.Ordered] struct {
	// Codec creates the entropy coder for each call.
	Codec ac.Codec

	// Logger receives a debug record per call.
	Logger *slog.Logger
}

func (c *Coder[S]) codec() ac.Codec {
	if c.Codec == nil {
		return witten.Codec{}
	}
	return c.Codec
}

func (c *Coder[S]) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(discardHandler{})
	}
	return c.Logger
}

// build validates freq and returns a fresh working tree for it.
func build[S constraints.Ordered](freq FrequencyMap[S]) (*msbst.Tree[S], error) {
	if err := freq.Validate(); err != nil {
		return nil, err
	}
	tree, err := msbst.Build(freq.Entries())
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidMultiset, "%v", err)
	}
	return tree, nil
}

// mustDecrement removes one occurrence of a symbol that was just selected from tree.
// Failure means the tree's bookkeeping is broken.
func mustDecrement[S constraints.Ordered](tree *msbst.Tree[S], symbol S) {
	if err := tree.Decrement(symbol); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
}

// Encode compresses the multiset freq, spending bits from the front of aux to choose the order of its elements.
//
// On success the consumed bits are gone from aux and can be recovered by Decode.
// On failure aux is left untouched.
// ErrAuxExhausted is returned if aux holds fewer bits than the walk needs,
// AuxBound bits are always enough. A nil aux is an empty pool.
func (c *Coder[S]) Encode(freq FrequencyMap[S], aux *bitpool.Pool) (*bitpool.Pool, error) {
	tree, err := build(freq)
	if err != nil {
		return nil, err
	}
	n, distinct := tree.Total(), tree.Len()
	if aux == nil {
		aux = bitpool.New()
	}

	stream := bitpool.New()
	enc, err := c.codec().NewEncoder(stream, uint64(n))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidMultiset, "%v", err)
	}

	mark, before := aux.Mark(), aux.Len()
	for step := int64(0); tree.Total() > 0; step++ {
		total := tree.Total()
		symbol, err := drawSymbol(tree, aux)
		if err != nil {
			aux.Reset(mark)
			return nil, errors.Wrapf(ErrAuxExhausted, "step %d of %d: %v", step, n, err)
		}
		low, high := tree.Interval(symbol)
		if err := enc.Encode(uint64(low), uint64(high), uint64(total)); err != nil {
			aux.Reset(mark)
			return nil, errors.Wrapf(err, "step %d", step)
		}
		mustDecrement(tree, symbol)
	}
	if err := enc.Flush(); err != nil {
		aux.Reset(mark)
		return nil, errors.Wrap(err, "")
	}

	c.logger().Debug("encoded multiset",
		"n", n,
		"distinct", distinct,
		"stream_bits", stream.Len(),
		"aux_bits", before-aux.Len())
	return stream, nil
}

// streamCheck compares the output of an encoder against the stream being decoded.
type streamCheck struct {
	r       *bitpool.Reader
	written uint
	diff    bool
}

func (sc *streamCheck) WriteBit(bit uint) {
	b, ok := sc.r.ReadBit()
	if !ok || b != bit {
		sc.diff = true
	}
	sc.written++
}

// Decode reverses Encode given the same frequency map.
// It returns the elements of the multiset, in the order Encode visited them,
// together with the auxiliary bits Encode consumed. stream is not modified.
//
// The decoded elements are encoded again alongside, and a stream that is not
// exactly their encoding, such as a truncated or padded one, is reported as ErrCorruptStream.
func (c *Coder[S]) Decode(stream *bitpool.Pool, freq FrequencyMap[S]) ([]S, *bitpool.Pool, error) {
	tree, err := build(freq)
	if err != nil {
		return nil, nil, err
	}
	n, distinct := tree.Total(), tree.Len()

	dec, err := c.codec().NewDecoder(stream.Reader(), uint64(n))
	if err != nil {
		if errors.Is(err, ac.ErrDecodeInsufficientBits) {
			return nil, nil, errors.Wrapf(ErrCorruptStream, "%v", err)
		}
		return nil, nil, errors.Wrapf(ErrInvalidMultiset, "%v", err)
	}
	check := &streamCheck{r: stream.Reader()}
	enc, err := c.codec().NewEncoder(check, uint64(n))
	if err != nil {
		return nil, nil, errors.Wrapf(ErrInvalidMultiset, "%v", err)
	}

	elements := make([]S, 0, n)
	recovered := bitpool.New()
	for step := int64(0); tree.Total() > 0; step++ {
		total := tree.Total()
		p, err := dec.Decode(uint64(total))
		if err != nil {
			return nil, nil, errors.Wrapf(ErrCorruptStream, "step %d of %d: %v", step, n, err)
		}
		symbol, low, count, err := tree.Locate(int64(p))
		if err != nil {
			return nil, nil, errors.Wrapf(ErrCorruptStream, "step %d of %d: %v", step, n, err)
		}
		if err := dec.Narrow(uint64(low), uint64(low+count)); err != nil {
			return nil, nil, errors.Wrapf(ErrCorruptStream, "step %d of %d: %v", step, n, err)
		}
		if err := enc.Encode(uint64(low), uint64(low+count), uint64(total)); err != nil {
			return nil, nil, errors.Wrapf(ErrCorruptStream, "step %d of %d: %v", step, n, err)
		}
		if check.diff {
			return nil, nil, errors.Wrapf(ErrCorruptStream, "step %d of %d: stream differs at bit %d", step, n, check.written)
		}
		elements = append(elements, symbol)
		if err := putSymbol(recovered, tree, low); err != nil {
			panic(fmt.Sprintf("%+v", err))
		}
		mustDecrement(tree, symbol)
	}
	if err := enc.Flush(); err != nil {
		return nil, nil, errors.Wrap(err, "")
	}
	if check.diff || check.written != stream.Len() {
		return nil, nil, errors.Wrapf(ErrCorruptStream, "stream of %d bits, elements encode to %d", stream.Len(), check.written)
	}

	c.logger().Debug("decoded multiset",
		"n", n,
		"distinct", distinct,
		"stream_bits", stream.Len(),
		"aux_bits", recovered.Len())
	return elements, recovered, nil
}

// Encode encodes freq with the default Coder.
func Encode[S constraints.Ordered](freq FrequencyMap[S], aux *bitpool.Pool) (*bitpool.Pool, error) {
	var c Coder[S]
	return c.Encode(freq, aux)
}

// Decode decodes stream with the default Coder.
func Decode[S constraints.Ordered](stream *bitpool.Pool, freq FrequencyMap[S]) ([]S, *bitpool.Pool, error) {
	var c Coder[S]
	return c.Decode(stream, freq)
}
