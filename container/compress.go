package container

import (
	"io"

	"github.com/pkg/errors"

	"github.com/fumin/bitsback"
	"github.com/fumin/bitsback/bitpool"
)

// Compress encodes freq and writes it to w as a container.
// The payload, which may be empty, is smuggled through the auxiliary pool,
// topped up with bits seeded by seed as far as the multiset needs.
// Of the auxiliary bits Encode leaves over, only those still holding payload are written.
func Compress(w io.Writer, c *bitsback.Coder[string], freq bitsback.FrequencyMap[string], payload, seed []byte) error {
	aux, err := bitsback.AuxFor(freq, payload, seed)
	if err != nil {
		return errors.Wrap(err, "")
	}
	before := aux.Len()
	stream, err := c.Encode(freq, aux)
	if err != nil {
		return errors.Wrap(err, "")
	}
	payloadBits := uint(len(payload)) * 8

	// Only the part of the payload Encode did not consume needs to be stored.
	var keep uint
	if consumed := before - aux.Len(); consumed < payloadBits {
		keep = payloadBits - consumed
	}
	leftover, err := bitpool.FromBytes(aux.Bytes(), keep)
	if err != nil {
		return errors.Wrap(err, "")
	}
	f := &File{
		Header:      freq,
		Stream:      stream,
		Leftover:    leftover,
		PayloadBits: uint64(payloadBits),
	}
	if err := Write(w, f); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// A Result is what Decompress recovers from a container.
type Result struct {
	Multiset bitsback.FrequencyMap[string]
	Elements []string
	Payload  []byte
}

// Decompress reads a container from r, decodes the multiset and recovers the payload.
func Decompress(r io.Reader, c *bitsback.Coder[string]) (*Result, error) {
	f, err := Read(r)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	elements, recovered, err := c.Decode(f.Stream, f.Header)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	aux := bitpool.New()
	aux.AppendPool(recovered)
	aux.AppendPool(f.Leftover)
	if aux.Len() < uint(f.PayloadBits) {
		return nil, errors.Wrapf(bitsback.ErrCorruptStream, "payload of %d bits, %d auxiliary bits", f.PayloadBits, aux.Len())
	}
	payload, err := bitpool.FromBytes(aux.Bytes(), uint(f.PayloadBits))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	res := &Result{
		Multiset: bitsback.FromElements(elements),
		Elements: elements,
		Payload:  payload.Bytes(),
	}
	return res, nil
}
