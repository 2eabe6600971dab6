// Package witten implements the arithmetic coding algorithm described in
// Witten, Ian H.; Neal, Radford M.; Cleary, John G. (June 1987). "Arithmetic Coding for Data Compression". Communications of the ACM 30 (6): 520–540.
//
// The coder works on cumulative frequency intervals rather than single bits,
// so any model that can express a symbol as [low, high) out of [0, total) can drive it.
package witten

import (
	"github.com/pkg/errors"

	"github.com/fumin/bitsback/ac"
)

const (
	// MinPrecision and MaxPrecision bound the width of the code value registers in bits.
	// The registers live in uint64s, and range*total must not overflow,
	// which caps the precision at 32.
	MinPrecision = 8
	MaxPrecision = 32
)

// MaxTotal returns the largest total a coder of the given precision can handle.
// Every non-empty interval must remain non-empty after scaling to a range
// of at least a quarter of the code space.
func MaxTotal(precision uint) uint64 {
	return uint64(1) << (precision - 2)
}

// bounds holds the code space landmarks for a particular precision.
type bounds struct {
	precision uint
	topValue  uint64
	firstQtr  uint64
	half      uint64
	thirdQtr  uint64
	maxTotal  uint64
}

func newBounds(precision uint) (bounds, error) {
	if precision < MinPrecision || precision > MaxPrecision {
		return bounds{}, errors.Wrapf(ac.ErrPrecision, "precision %d not in [%d, %d]", precision, MinPrecision, MaxPrecision)
	}
	b := bounds{precision: precision}
	b.topValue = (uint64(1) << precision) - 1
	b.firstQtr = b.topValue/4 + 1
	b.half = 2 * b.firstQtr
	b.thirdQtr = 3 * b.firstQtr
	b.maxTotal = MaxTotal(precision)
	return b, nil
}

func (b bounds) checkInterval(low, high, total uint64) error {
	if total == 0 || total > b.maxTotal {
		return errors.Wrapf(ac.ErrPrecision, "total %d, max %d", total, b.maxTotal)
	}
	if low >= high || high > total {
		return errors.Wrapf(ac.ErrInterval, "[%d, %d) of %d", low, high, total)
	}
	return nil
}

// Codec creates Witten-Neal-Cleary coders.
// A zero Precision means MaxPrecision.
type Codec struct {
	Precision uint
}

func (c Codec) bounds(maxTotal uint64) (bounds, error) {
	precision := c.Precision
	if precision == 0 {
		precision = MaxPrecision
	}
	b, err := newBounds(precision)
	if err != nil {
		return bounds{}, err
	}
	if maxTotal > b.maxTotal {
		return bounds{}, errors.Wrapf(ac.ErrPrecision, "total %d needs more than %d bits", maxTotal, precision)
	}
	return b, nil
}

// NewEncoder implements ac.Codec.
func (c Codec) NewEncoder(w ac.BitWriter, maxTotal uint64) (ac.Encoder, error) {
	b, err := c.bounds(maxTotal)
	if err != nil {
		return nil, err
	}
	return newAE(w, b), nil
}

// NewDecoder implements ac.Codec.
func (c Codec) NewDecoder(r ac.BitReader, maxTotal uint64) (ac.Decoder, error) {
	b, err := c.bounds(maxTotal)
	if err != nil {
		return nil, err
	}
	return newAD(r, b)
}

// An arithmeticEncoder carries the state required by an encoder.
type arithmeticEncoder struct {
	bounds
	dst   ac.BitWriter
	low   uint64
	high  uint64
	fbits uint64
}

func newAE(dst ac.BitWriter, b bounds) *arithmeticEncoder {
	ae := &arithmeticEncoder{bounds: b, dst: dst}
	ae.high = b.topValue
	return ae
}

func (ae *arithmeticEncoder) bitPlusFollow(bit uint) {
	negbit := uint(0)
	if bit == 0 {
		negbit = 1
	}

	ae.dst.WriteBit(bit)
	for ae.fbits > 0 {
		ae.dst.WriteBit(negbit)
		ae.fbits -= 1
	}
}

// Encode narrows the encoder's range to the symbol interval [low, high) out of [0, total).
func (ae *arithmeticEncoder) Encode(low, high, total uint64) error {
	if err := ae.checkInterval(low, high, total); err != nil {
		return err
	}

	arange := (ae.high - ae.low) + 1
	ae.high = ae.low + arange*high/total - 1
	ae.low = ae.low + arange*low/total

	for {
		if ae.high < ae.half {
			ae.bitPlusFollow(0)
		} else if ae.low >= ae.half {
			ae.bitPlusFollow(1)
			ae.low -= ae.half
			ae.high -= ae.half
		} else if ae.low >= ae.firstQtr && ae.high < ae.thirdQtr {
			ae.fbits += 1
			ae.low -= ae.firstQtr
			ae.high -= ae.firstQtr
		} else {
			break
		}

		ae.low = 2 * ae.low
		ae.high = 2*ae.high + 1
	}
	return nil
}

// Flush emits two bits that select a quarter lying inside the final range.
func (ae *arithmeticEncoder) Flush() error {
	ae.fbits += 1
	if ae.low < ae.firstQtr {
		ae.bitPlusFollow(0)
	} else {
		ae.bitPlusFollow(1)
	}
	return nil
}

type arithmeticDecoder struct {
	bounds
	src         ac.BitReader
	low         uint64
	high        uint64
	value       uint64
	total       uint64
	garbageBits uint
}

func newAD(src ac.BitReader, b bounds) (*arithmeticDecoder, error) {
	ad := &arithmeticDecoder{bounds: b, src: src}
	ad.high = b.topValue
	for i := uint(1); i <= b.precision; i++ {
		inb, err := ad.readDecBit()
		if err != nil {
			return nil, err
		}
		ad.value = 2*ad.value + inb
	}
	return ad, nil
}

// readDecBit tolerates reading past the end of the stream by precision-2 bits,
// which is exactly how far the decoder runs ahead of a flushed encoder.
func (ad *arithmeticDecoder) readDecBit() (uint64, error) {
	b, ok := ad.src.ReadBit()
	if ok {
		return uint64(b), nil
	}
	ad.garbageBits++
	if ad.garbageBits > ad.precision-2 {
		return 0, ac.ErrDecodeInsufficientBits
	}
	return 1, nil // the returned bit can actually be random
}

// Decode returns the cumulative frequency the current code value points at.
func (ad *arithmeticDecoder) Decode(total uint64) (uint64, error) {
	if total == 0 || total > ad.maxTotal {
		return 0, errors.Wrapf(ac.ErrPrecision, "total %d, max %d", total, ad.maxTotal)
	}
	arange := (ad.high - ad.low) + 1
	cum := ((ad.value-ad.low+1)*total - 1) / arange
	if cum >= total {
		return 0, errors.Wrapf(ac.ErrInterval, "decoded %d of %d", cum, total)
	}
	ad.total = total
	return cum, nil
}

// Narrow mirrors arithmeticEncoder.Encode, pulling in a fresh bit for every rescaling.
func (ad *arithmeticDecoder) Narrow(low, high uint64) error {
	if err := ad.checkInterval(low, high, ad.total); err != nil {
		return err
	}

	arange := (ad.high - ad.low) + 1
	ad.high = ad.low + arange*high/ad.total - 1
	ad.low = ad.low + arange*low/ad.total

	// rescale interval
	for {
		if ad.high < ad.half {
			// do nothing
		} else if ad.low >= ad.half {
			ad.value -= ad.half
			ad.low -= ad.half
			ad.high -= ad.half
		} else if ad.low >= ad.firstQtr && ad.high < ad.thirdQtr {
			ad.value -= ad.firstQtr
			ad.low -= ad.firstQtr
			ad.high -= ad.firstQtr
		} else {
			break
		}

		ad.low = 2 * ad.low
		ad.high = 2*ad.high + 1
		inb, err := ad.readDecBit()
		if err != nil {
			return err
		}
		ad.value = 2*ad.value + inb
	}
	return nil
}
