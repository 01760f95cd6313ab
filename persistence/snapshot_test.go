package persistence

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, compression Compression, payload []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, compression, func(w io.Writer) error {
		_, err := w.Write(payload)
		return err
	}))

	var got []byte
	require.NoError(t, Read(&buf, func(r io.Reader) error {
		var err error
		got, err = io.ReadAll(r)
		return err
	}))
	return got
}

func TestSnapshotRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("partitioned graph data "), 1000)

	tests := []struct {
		name        string
		compression Compression
	}{
		{name: "none", compression: CompressionNone},
		{name: "s2", compression: CompressionS2},
		{name: "lz4", compression: CompressionLZ4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, payload, roundTrip(t, tc.compression, payload))
		})
	}
}

func TestSnapshotEmptyPayload(t *testing.T) {
	assert.Empty(t, roundTrip(t, CompressionS2, nil))
}

func TestSnapshotCompresses(t *testing.T) {
	payload := bytes.Repeat([]byte("aaaaaaaabbbbbbbb"), 4096)

	var plain, compressed bytes.Buffer
	require.NoError(t, Write(&plain, CompressionNone, func(w io.Writer) error {
		_, err := w.Write(payload)
		return err
	}))
	require.NoError(t, Write(&compressed, CompressionS2, func(w io.Writer) error {
		_, err := w.Write(payload)
		return err
	}))

	assert.Less(t, compressed.Len(), plain.Len()/4)
}

func TestSnapshotBadMagic(t *testing.T) {
	err := Read(bytes.NewReader([]byte("NOPE..xxxx")), func(io.Reader) error { return nil })
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestSnapshotUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CompressionNone, func(w io.Writer) error {
		_, err := w.Write([]byte("x"))
		return err
	}))

	data := buf.Bytes()
	data[4] = 99
	err := Read(bytes.NewReader(data), func(io.Reader) error { return nil })
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestSnapshotChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CompressionNone, func(w io.Writer) error {
		_, err := w.Write([]byte("hello graph"))
		return err
	}))

	data := buf.Bytes()
	data[8] ^= 0xFF // flip a payload byte behind the header
	err := Read(bytes.NewReader(data), func(r io.Reader) error {
		_, err := io.ReadAll(r)
		return err
	})
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestSnapshotTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CompressionNone, func(w io.Writer) error {
		_, err := w.Write([]byte("hello graph"))
		return err
	}))

	data := buf.Bytes()[:8]
	err := Read(bytes.NewReader(data), func(r io.Reader) error {
		_, err := io.ReadAll(r)
		return err
	})
	assert.Error(t, err)
}
