package cache

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Codec is the storage-layer compression strategy. It is chosen at
// construction and never visible through the Get/Set contract: Get always
// returns the logical decompressed payload.
type Codec interface {
	// Encode returns the stored form of payload and whether it is compressed.
	Encode(payload []byte) ([]byte, bool, error)
	// Decode returns the logical payload for a stored blob.
	Decode(stored []byte, compressed bool) ([]byte, error)
}

// NewCodec returns the zstd codec when compression is enabled, otherwise the
// identity codec.
func NewCodec(compress bool) (Codec, error) {
	if !compress {
		return identityCodec{}, nil
	}
	return newZstdCodec()
}

type identityCodec struct{}

func (identityCodec) Encode(payload []byte) ([]byte, bool, error) { return payload, false, nil }

func (identityCodec) Decode(stored []byte, compressed bool) ([]byte, error) {
	if compressed {
		return nil, fmt.Errorf("compressed entry but compression is disabled")
	}
	return stored, nil
}

type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCodec() (*zstdCodec, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (c *zstdCodec) Encode(payload []byte) ([]byte, bool, error) {
	return c.enc.EncodeAll(payload, nil), true, nil
}

func (c *zstdCodec) Decode(stored []byte, compressed bool) ([]byte, error) {
	if !compressed {
		// Entries written before compression was switched on stay readable.
		return stored, nil
	}
	out, err := c.dec.DecodeAll(stored, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}
