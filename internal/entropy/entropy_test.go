// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package entropy

import (
	"bytes"
	"crypto/rand"
	"io"
	"sync"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/require"
)

func TestSeededDeterministic(t *testing.T) {
	a, err := NewSeeded([]byte("seed")).Bytes(100)
	require.NoError(t, err)
	b, err := NewSeeded([]byte("seed")).Bytes(100)
	require.NoError(t, err)
	c, err := NewSeeded([]byte("other seed")).Bytes(100)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestNewReusesSource(t *testing.T) {
	s := New(rand.Reader)
	require.Same(t, s, New(s))
}

func TestShortRead(t *testing.T) {
	s := New(bytes.NewReader([]byte{1, 2, 3}))
	_, err := s.Bytes(4)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	s = New(bytes.NewReader(nil))
	_, err = s.Uint32AtMost(10)
	require.ErrorIs(t, err, io.EOF)
}

func TestUint32AtMostBounds(t *testing.T) {
	s := NewSeeded([]byte("bounds"))
	for _, max := range []uint32{0, 1, 2, 6, 546, 1<<31 + 1, 1<<32 - 1} {
		for i := 0; i < 1000; i++ {
			v, err := s.Uint32AtMost(max)
			require.NoError(t, err)
			require.LessOrEqual(t, v, max)
		}
	}
}

func TestUint32AtMostRejects(t *testing.T) {
	// With max = 2^31 there is a single bucket and draws above 2^31 are
	// rejected.
	r := bytes.NewReader([]byte{
		0xff, 0xff, 0xff, 0xff,
		0x05, 0x00, 0x00, 0x00,
	})
	v, err := New(r).Uint32AtMost(1 << 31)
	require.NoError(t, err)
	require.Equal(t, uint32(5), v)
}

func TestUint32AtMostUniform(t *testing.T) {
	s := NewSeeded([]byte("uniform"))
	const n = 100000
	draws := make([]float64, n)
	for i := range draws {
		v, err := s.Uint32AtMost(9)
		require.NoError(t, err)
		draws[i] = float64(v)
	}
	mean, err := stats.Mean(draws)
	require.NoError(t, err)
	require.InDelta(t, 4.5, mean, 0.05)
	dev, err := stats.StandardDeviation(draws)
	require.NoError(t, err)
	require.InDelta(t, 2.872, dev, 0.05)
}

func TestConcurrentReads(t *testing.T) {
	s := New(rand.Reader)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := s.Uint32AtMost(100); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
