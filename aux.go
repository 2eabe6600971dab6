package bitsback

import (
	"context"
	"log/slog"
	"math/bits"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"

	"github.com/fumin/bitsback/bitpool"
)

// AuxBound returns the most auxiliary bits Encode can consume for freq.
// At a step with total t and d live symbols a codeword is at most
// min(d-1, 2⌈log2 t⌉) bits long, and d never exceeds min(D, t).
// On average Encode consumes a little less than Log2Multinomial bits.
func AuxBound[S constraints.Ordered](freq FrequencyMap[S]) uint64 {
	d := uint64(len(freq))
	var b uint64
	for t := uint64(freq.Total()); t > 1; t-- {
		live := d
		if t < live {
			live = t
		}
		l := live - 1
		if k := 2 * uint64(bits.Len64(t-1)); k < l {
			l = k
		}
		b += l
	}
	return b
}

// AuxFor returns an auxiliary pool that starts with payload and is topped up
// with pseudo-random bits seeded by seed until it holds AuxBound(freq) bits.
func AuxFor[S constraints.Ordered](freq FrequencyMap[S], payload []byte, seed []byte) (*bitpool.Pool, error) {
	aux, err := bitpool.FromBytes(payload, uint(len(payload))*8)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	need := uint(AuxBound(freq))
	if aux.Len() < need {
		if err := aux.AppendRandom(seed, need-aux.Len()); err != nil {
			return nil, errors.Wrap(err, "")
		}
	}
	return aux, nil
}

// discardHandler drops every record.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
