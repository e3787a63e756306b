package cache

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZstdCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec(true)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte(`{"trash_id":"abc","name":"BR-DISK"},`), 200)

	stored, compressed, err := codec.Encode(payload)
	require.NoError(t, err)
	assert.True(t, compressed)
	assert.Less(t, len(stored), len(payload), "repetitive JSON should shrink")

	got, err := codec.Decode(stored, compressed)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestZstdCodec_ReadsUncompressedEntries(t *testing.T) {
	codec, err := NewCodec(true)
	require.NoError(t, err)

	got, err := codec.Decode([]byte("plain"), false)
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), got)
}

func TestIdentityCodec(t *testing.T) {
	codec, err := NewCodec(false)
	require.NoError(t, err)

	stored, compressed, err := codec.Encode([]byte("x"))
	require.NoError(t, err)
	assert.False(t, compressed)
	assert.Equal(t, []byte("x"), stored)

	_, err = codec.Decode([]byte("x"), true)
	require.Error(t, err, "compressed entry with identity codec is a config error")
}
