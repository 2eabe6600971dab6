package bitpool

import (
	"crypto/sha256"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20"
)

// NewRandom returns a pool of nbits pseudo-random bits drawn from a chacha20 keystream
// keyed by the SHA-256 of seed. The same seed always yields the same bits.
func NewRandom(seed []byte, nbits uint) (*Pool, error) {
	p := New()
	if err := p.AppendRandom(seed, nbits); err != nil {
		return nil, err
	}
	return p, nil
}

// AppendRandom appends nbits pseudo-random bits keyed by seed, see NewRandom.
func (p *Pool) AppendRandom(seed []byte, nbits uint) error {
	key := sha256.Sum256(seed)
	nonce := make([]byte, chacha20.NonceSize)
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce)
	if err != nil {
		return errors.Wrap(err, "")
	}
	stream := make([]byte, (nbits+7)/8)
	c.XORKeyStream(stream, stream)

	q, err := FromBytes(stream, nbits)
	if err != nil {
		return errors.Wrap(err, "")
	}
	p.AppendPool(q)
	return nil
}
