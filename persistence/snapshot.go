// Package persistence frames graph snapshots: a small header (magic, format
// version, compression id) followed by a compressed payload and a CRC32
// trailer over the uncompressed bytes.
package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the payload codec of a snapshot.
type Compression uint8

const (
	// CompressionNone stores the payload verbatim.
	CompressionNone Compression = iota
	// CompressionS2 uses klauspost's s2 (snappy-compatible, default).
	CompressionS2
	// CompressionLZ4 uses lz4 block streaming.
	CompressionLZ4
)

const (
	magic         = "KNNG"
	formatVersion = 1
)

var (
	// ErrBadMagic is returned when the input does not start with a snapshot
	// header.
	ErrBadMagic = errors.New("persistence: bad snapshot magic")

	// ErrChecksum is returned when the payload checksum does not match.
	ErrChecksum = errors.New("persistence: snapshot checksum mismatch")

	// ErrUnsupportedVersion is returned for snapshots written by a newer
	// format revision.
	ErrUnsupportedVersion = errors.New("persistence: unsupported snapshot version")
)

type crcWriter struct {
	w   io.Writer
	crc hash.Hash32
}

func (cw *crcWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.crc.Write(p[:n])
	return n, err
}

// Write frames a snapshot: header, compressed payload produced by encode,
// CRC32 (Castagnoli) trailer over the uncompressed payload.
func Write(w io.Writer, compression Compression, encode func(io.Writer) error) error {
	header := make([]byte, 0, 6)
	header = append(header, magic...)
	header = append(header, formatVersion, byte(compression))
	if _, err := w.Write(header); err != nil {
		return err
	}

	var payload io.Writer
	var closer io.Closer
	switch compression {
	case CompressionNone:
		payload = w
	case CompressionS2:
		sw := s2.NewWriter(w)
		payload, closer = sw, sw
	case CompressionLZ4:
		lw := lz4.NewWriter(w)
		payload, closer = lw, lw
	default:
		return fmt.Errorf("persistence: unknown compression %d", compression)
	}

	cw := &crcWriter{w: payload, crc: crc32.New(crc32.MakeTable(crc32.Castagnoli))}
	if err := encode(cw); err != nil {
		return err
	}

	// The checksum travels inside the compressed stream so the trailer is
	// covered by the same framing.
	var sum [4]byte
	binary.LittleEndian.PutUint32(sum[:], cw.crc.Sum32())
	if _, err := payload.Write(sum[:]); err != nil {
		return err
	}

	if closer != nil {
		return closer.Close()
	}
	return nil
}

// Read unframes a snapshot written by Write and hands the payload reader to
// decode. The checksum is verified after decode returns.
func Read(r io.Reader, decode func(io.Reader) error) error {
	header := make([]byte, 6)
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("persistence: read header: %w", err)
	}
	if string(header[:4]) != magic {
		return ErrBadMagic
	}
	if header[4] != formatVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, header[4])
	}

	var payload io.Reader
	switch Compression(header[5]) {
	case CompressionNone:
		payload = r
	case CompressionS2:
		payload = s2.NewReader(r)
	case CompressionLZ4:
		payload = lz4.NewReader(r)
	default:
		return fmt.Errorf("persistence: unknown compression %d", header[5])
	}

	crc := crc32.New(crc32.MakeTable(crc32.Castagnoli))
	tee := &trailerReader{r: payload, crc: crc}
	if err := decode(tee); err != nil {
		return err
	}
	return tee.verify()
}

// trailerReader feeds decode everything except the trailing 4 checksum
// bytes, which it withholds in a sliding window.
type trailerReader struct {
	r      io.Reader
	crc    hash.Hash32
	window [4]byte
	filled int
}

func (tr *trailerReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	buf := make([]byte, len(p)+4-tr.filled)
	n, err := io.ReadFull(tr.r, buf)
	buf = buf[:n]

	combined := append(tr.window[:tr.filled], buf...)
	if len(combined) <= 4 {
		tr.filled = copy(tr.window[:], combined)
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			err = io.EOF
		}
		if err == io.EOF && len(combined) < 4 {
			return 0, fmt.Errorf("persistence: truncated snapshot")
		}
		return 0, err
	}

	out := combined[:len(combined)-4]
	tr.filled = copy(tr.window[:], combined[len(combined)-4:])

	m := copy(p, out)
	tr.crc.Write(p[:m])
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		err = io.EOF
	}
	if err == io.EOF && m > 0 {
		err = nil
	}
	return m, err
}

func (tr *trailerReader) verify() error {
	// Drain whatever decode left unread so the window ends on the trailer.
	if _, err := io.Copy(io.Discard, readerOnly{tr}); err != nil {
		return err
	}
	if tr.filled != 4 {
		return fmt.Errorf("persistence: truncated snapshot")
	}
	if binary.LittleEndian.Uint32(tr.window[:]) != tr.crc.Sum32() {
		return ErrChecksum
	}
	return nil
}

// readerOnly hides verify from io.Copy's interface upgrades.
type readerOnly struct{ r io.Reader }

func (ro readerOnly) Read(p []byte) (int, error) { return ro.r.Read(p) }
