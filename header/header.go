// Package header reads and writes the frequency maps that travel alongside a compressed multiset.
//
// Both sides of bits-back coding must build the same initial tree,
// so the symbols and their counts are sent as side information.
// On the wire a header is a list of (symbol, count) pairs in increasing symbol order,
// compressed with zstd.
package header

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/fumin/bitsback"
	"github.com/fumin/bitsback/msbst"
)

// ErrMalformed is returned when a header cannot be decoded.
var ErrMalformed = fmt.Errorf("malformed header")

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		panic(err)
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
}

// Marshal serializes freq, which must be valid.
func Marshal(freq bitsback.FrequencyMap[string]) ([]byte, error) {
	if err := freq.Validate(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	entries := freq.Entries()

	raw := make([]byte, 0, 16*len(entries))
	raw = binary.AppendUvarint(raw, uint64(len(entries)))
	for _, e := range entries {
		raw = binary.AppendUvarint(raw, uint64(len(e.Symbol)))
		raw = append(raw, e.Symbol...)
		raw = binary.AppendUvarint(raw, uint64(e.Count))
	}
	return encoder.EncodeAll(raw, nil), nil
}

// Unmarshal is the inverse of Marshal.
func Unmarshal(data []byte) (bitsback.FrequencyMap[string], error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformed, "%v", err)
	}
	r := bytes.NewReader(raw)

	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformed, "symbol count: %v", err)
	}
	if n > uint64(len(raw)) {
		return nil, errors.Wrapf(ErrMalformed, "%d symbols in %d bytes", n, len(raw))
	}
	entries := make([]msbst.Entry[string], 0, n)
	for i := uint64(0); i < n; i++ {
		l, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformed, "symbol %d length: %v", i, err)
		}
		if l > uint64(r.Len()) {
			return nil, errors.Wrapf(ErrMalformed, "symbol %d length %d", i, l)
		}
		sym := make([]byte, l)
		if _, err := r.Read(sym); err != nil && l > 0 {
			return nil, errors.Wrapf(ErrMalformed, "symbol %d: %v", i, err)
		}
		c, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformed, "symbol %d count: %v", i, err)
		}
		if c == 0 || c > 1<<62 {
			return nil, errors.Wrapf(ErrMalformed, "symbol %d count %d", i, c)
		}
		if i > 0 && string(sym) <= entries[i-1].Symbol {
			return nil, errors.Wrapf(ErrMalformed, "symbol %q out of order", sym)
		}
		entries = append(entries, msbst.Entry[string]{Symbol: string(sym), Count: int64(c)})
	}
	if r.Len() != 0 {
		return nil, errors.Wrapf(ErrMalformed, "%d trailing bytes", r.Len())
	}

	freq, err := bitsback.FromEntries(entries)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := freq.Validate(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return freq, nil
}

// Parse reads a YAML or JSON object mapping symbols to counts.
func Parse(data []byte) (bitsback.FrequencyMap[string], error) {
	var freq bitsback.FrequencyMap[string]
	if err := yaml.Unmarshal(data, &freq); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := freq.Validate(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return freq, nil
}

// Keys returns the multiset of object keys appearing anywhere in a JSON document.
func Keys(doc []byte) (bitsback.FrequencyMap[string], error) {
	var v interface{}
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, errors.Wrap(err, "")
	}
	freq := make(bitsback.FrequencyMap[string])
	countKeys(freq, v)
	return freq, nil
}

func countKeys(freq bitsback.FrequencyMap[string], v interface{}) {
	switch v := v.(type) {
	case map[string]interface{}:
		for k, child := range v {
			freq[k]++
			countKeys(freq, child)
		}
	case []interface{}:
		for _, child := range v {
			countKeys(freq, child)
		}
	}
}

// JSON renders freq as a JSON object with sorted keys.
func JSON(freq bitsback.FrequencyMap[string]) ([]byte, error) {
	b, err := json.MarshalIndent(map[string]int64(freq), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return b, nil
}
