// Package ac defines the interfaces the arithmetic coding algorithm requires.
// See its subpackages for particular finite precision realizations of the algorithm.
package ac

import (
	"fmt"
)

// ErrDecodeInsufficientBits is returned when there are insufficient bits sent to Decode to reconstruct the original data.
var ErrDecodeInsufficientBits = fmt.Errorf("insufficient bits sent to decoder")

// ErrPrecision is returned when a coder cannot represent totals as large as requested.
var ErrPrecision = fmt.Errorf("total exceeds coder precision")

// ErrInterval is returned when a symbol interval is not a non-empty sub-interval of [0, total).
var ErrInterval = fmt.Errorf("invalid symbol interval")

// A BitWriter receives the bits produced by an Encoder, most significant first.
type BitWriter interface {
	WriteBit(bit uint)
}

// A BitReader supplies the bits consumed by a Decoder.
// ReadBit returns false once the underlying stream is exhausted.
type BitReader interface {
	ReadBit() (bit uint, ok bool)
}

// An Encoder narrows its interval to [low, high) out of [0, total) for each symbol.
type Encoder interface {
	// Encode appends the bits that identify the sub-interval [low, high) of [0, total).
	Encode(low, high, total uint64) error

	// Flush writes the bits needed to terminate the stream.
	Flush() error
}

// A Decoder is the mirror of an Encoder.
// Each symbol is decoded by calling Decode followed by Narrow.
type Decoder interface {
	// Decode returns a value in [0, total) that lies within the interval of the next symbol.
	Decode(total uint64) (uint64, error)

	// Narrow advances the decoder past the symbol whose interval is [low, high),
	// relative to the total given to the preceding Decode.
	Narrow(low, high uint64) error
}

// A Codec creates matching encoders and decoders.
// maxTotal is the largest total that will be passed to Encode or Decode,
// implementations must fail with ErrPrecision if they cannot honor it.
type Codec interface {
	NewEncoder(w BitWriter, maxTotal uint64) (Encoder, error)
	NewDecoder(r BitReader, maxTotal uint64) (Decoder, error)
}
