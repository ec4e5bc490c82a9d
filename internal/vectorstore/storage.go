package vectorstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"ragqa/internal/domain"
)

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("no index has been saved")

// Store persists a corpus as one aligned unit.
// Save replaces any previous corpus atomically; readers never observe a partial write.
type Store interface {
	Save(ctx context.Context, c *domain.Corpus) error
	Load(ctx context.Context) (*domain.Corpus, error)
	Close() error
}

// EncodeVector packs a vector as little-endian float32 values.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob has %d bytes, not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
