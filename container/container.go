// Package container frames a compressed multiset into a self-contained byte stream.
//
// The layout is
//
//	"MSBB" | version | uvarint len(header) | header
//	| uvarint stream bits | stream bytes
//	| uvarint leftover bits | leftover bytes
//	| uvarint payload bits
//	| siphash-2-4 of everything before, 8 bytes little endian
//
// where header is produced by package header, stream is the arithmetic coded multiset,
// and leftover holds the payload bits Encode did not consume, if any.
// The bits Decode recovers followed by leftover start with the caller's payload.
package container

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dchest/siphash"
	"github.com/pkg/errors"

	"github.com/fumin/bitsback"
	"github.com/fumin/bitsback/bitpool"
	"github.com/fumin/bitsback/header"
)

const (
	magic   = "MSBB"
	version = 1

	// Fixed siphash keys, the checksum guards against corruption, not tampering.
	k0 = 0x6d756c7469736574
	k1 = 0x626974736261636b
)

var (
	// ErrBadMagic is returned when the input is not a container.
	ErrBadMagic = fmt.Errorf("not a multiset container")

	// ErrChecksum is returned when the checksum does not match the contents.
	ErrChecksum = fmt.Errorf("checksum mismatch")
)

// A File is the decoded form of a container.
type File struct {
	Header      bitsback.FrequencyMap[string]
	Stream      *bitpool.Pool
	Leftover    *bitpool.Pool
	PayloadBits uint64
}

func appendPool(b []byte, p *bitpool.Pool) []byte {
	b = binary.AppendUvarint(b, uint64(p.Len()))
	return append(b, p.Bytes()...)
}

// Write serializes f to w.
func Write(w io.Writer, f *File) error {
	hdr, err := header.Marshal(f.Header)
	if err != nil {
		return errors.Wrap(err, "")
	}

	b := make([]byte, 0, len(magic)+1+len(hdr)+int(f.Stream.Len()/8+f.Leftover.Len()/8)+32)
	b = append(b, magic...)
	b = append(b, version)
	b = binary.AppendUvarint(b, uint64(len(hdr)))
	b = append(b, hdr...)
	b = appendPool(b, f.Stream)
	b = appendPool(b, f.Leftover)
	b = binary.AppendUvarint(b, f.PayloadBits)
	b = binary.LittleEndian.AppendUint64(b, siphash.Hash(k0, k1, b))

	if _, err := w.Write(b); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func readPool(r *bytes.Reader) (*bitpool.Pool, error) {
	nbits, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	nbytes := (nbits + 7) / 8
	if nbytes > uint64(r.Len()) {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "%d bits", nbits)
	}
	buf := make([]byte, nbytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrap(err, "")
	}
	p, err := bitpool.FromBytes(buf, uint(nbits))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return p, nil
}

// Read parses a container written by Write.
func Read(r io.Reader) (*File, error) {
	data, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if len(data) < len(magic)+1+8 || string(data[:len(magic)]) != magic {
		return nil, ErrBadMagic
	}
	if data[len(magic)] != version {
		return nil, errors.Wrapf(ErrBadMagic, "version %d", data[len(magic)])
	}
	body, sum := data[:len(data)-8], binary.LittleEndian.Uint64(data[len(data)-8:])
	if siphash.Hash(k0, k1, body) != sum {
		return nil, ErrChecksum
	}

	br := bytes.NewReader(body[len(magic)+1:])
	hlen, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if hlen > uint64(br.Len()) {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "header of %d bytes", hlen)
	}
	hdr := make([]byte, hlen)
	if _, err := io.ReadFull(br, hdr); err != nil {
		return nil, errors.Wrap(err, "")
	}

	f := &File{}
	if f.Header, err = header.Unmarshal(hdr); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if f.Stream, err = readPool(br); err != nil {
		return nil, errors.Wrap(err, "stream")
	}
	if f.Leftover, err = readPool(br); err != nil {
		return nil, errors.Wrap(err, "leftover")
	}
	if f.PayloadBits, err = binary.ReadUvarint(br); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if br.Len() != 0 {
		return nil, errors.Errorf("%d trailing bytes", br.Len())
	}
	return f, nil
}
