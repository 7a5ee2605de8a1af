// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package entropy adapts a random byte stream into the fixed-length buffers
// and bounded integers consumed by polynomial sampling.
//
// A Source serializes all reads from its underlying reader, so a single
// Source may be shared between goroutines.  Independent operations that wish
// to avoid lock contention should each create their own Source.
package entropy

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/zeebo/blake3"
)

// Source is a synchronized random byte source.
type Source struct {
	mu  sync.Mutex
	r   io.Reader
	buf [4]byte
}

// New wraps r as a Source.  If r is already a *Source, it is returned as is.
func New(r io.Reader) *Source {
	if s, ok := r.(*Source); ok {
		return s
	}
	return &Source{r: r}
}

const seededContext = "ntrup entropy seeded source v1"

// NewSeeded returns a deterministic Source producing the blake3 extendable
// output keyed by seed.  Two sources created from the same seed produce the
// same stream.  It is intended for tests and reproducible simulations, or
// for expanding a secret seed into key material.
func NewSeeded(seed []byte) *Source {
	h := blake3.NewDeriveKey(seededContext)
	h.Write(seed)
	return &Source{r: h.Digest()}
}

// Read fills p entirely with random bytes.  A short read from the underlying
// reader is reported as an error.
func (s *Source) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := io.ReadFull(s.r, p)
	if err != nil {
		return n, fmt.Errorf("entropy: %w", err)
	}
	return n, nil
}

// Bytes returns a new buffer of n random bytes.
func (s *Source) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := s.Read(b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Uint32AtMost returns a uniformly distributed integer in [0, max].
//
// The 32-bit sample space is split into max+1 equally sized buckets and
// draws landing in the incomplete final bucket are rejected, so the result
// carries no modulo bias.
func (s *Source) Uint32AtMost(max uint32) (uint32, error) {
	span := uint64(max) + 1
	buckets := (uint64(1) << 32) / span
	limit := buckets * span

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.buf = [4]byte{} }()
	for {
		_, err := io.ReadFull(s.r, s.buf[:])
		if err != nil {
			return 0, fmt.Errorf("entropy: %w", err)
		}
		v := uint64(binary.LittleEndian.Uint32(s.buf[:]))
		if v < limit {
			return uint32(v / buckets), nil
		}
	}
}
